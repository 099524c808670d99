package authserver

import (
	"crypto/rand"

	"github.com/kamekamek/googlecalendar-mcp/pkg/errors"
)

const secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const secretLength = 32

// generateClientSecret mints a 32-character alphanumeric client_secret
// (spec.md §4.6 DCR).
func generateClientSecret() (string, error) {
	buf := make([]byte, secretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.NewInternalError("failed to generate client secret", err)
	}
	out := make([]byte, secretLength)
	for i, b := range buf {
		out[i] = secretAlphabet[int(b)%len(secretAlphabet)]
	}
	return string(out), nil
}
