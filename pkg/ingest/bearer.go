// Package ingest implements Bearer Ingest: parsing Authorization and sidecar
// headers on an MCP tool request and reconciling them with the stored
// TokenInfo. Translated field-for-field from
// original_source/src/token_ingest.rs.
package ingest

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kamekamek/googlecalendar-mcp/pkg/errors"
	"github.com/kamekamek/googlecalendar-mcp/pkg/logger"
	"github.com/kamekamek/googlecalendar-mcp/pkg/revocation"
	"github.com/kamekamek/googlecalendar-mcp/pkg/tokenstore"
	"github.com/kamekamek/googlecalendar-mcp/pkg/tokeninfo"
)

// sidecar header alias pairs: "x-mcp-oauth-*" takes priority over "x-oauth-*",
// whichever is non-empty first.
var (
	refreshTokenHeaders = []string{"X-Mcp-Oauth-Refresh-Token", "X-Oauth-Refresh-Token"}
	scopeHeaders        = []string{"X-Mcp-Oauth-Scope", "X-Oauth-Scope"}
	expiresAtHeaders    = []string{"X-Mcp-Oauth-Expires-At", "X-Oauth-Expires-At"}
	expiresInHeaders    = []string{"X-Mcp-Oauth-Expires-In", "X-Oauth-Expires-In"}
	tokenTypeHeaders    = []string{"X-Mcp-Oauth-Token-Type", "X-Oauth-Token-Type"}
)

// Ingest runs Bearer Ingest against headers for userID, reading/writing
// through store and consulting ledger. Returns the resulting TokenInfo, or
// nil if no bearer header was present (not an error).
func Ingest(ctx context.Context, store tokenstore.Store, ledger *revocation.Ledger, headers http.Header, userID string) (*tokeninfo.TokenInfo, error) {
	token, present, err := extractBearerToken(headers)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}

	if ledger.Contains(userID, token) {
		logger.Infow("ignoring revoked bearer token from headers", "user_id", userID)
		return nil, nil
	}

	existing, err := store.Fetch(ctx, userID)
	if err != nil {
		return nil, errors.NewInternalError("failed to fetch existing token during bearer ingest", err)
	}

	record := existing
	needsPersist := record == nil
	if record == nil {
		record = &tokeninfo.TokenInfo{TokenType: tokeninfo.DefaultTokenType}
	}

	if record.AccessToken != token {
		record.AccessToken = token
		needsPersist = true
	}

	if v, ok := headerWithPresence(headers, refreshTokenHeaders); ok && v != record.RefreshToken {
		record.RefreshToken = v
		needsPersist = true
	}
	if v, ok := headerWithPresence(headers, scopeHeaders); ok && v != record.Scope {
		record.Scope = v
		needsPersist = true
	}

	expiresAtSet := false
	if v, ok := headerWithPresence(headers, expiresAtHeaders); ok {
		expiresAtSet = true
		if parsed, ok := parseExpiresAt(v); ok {
			if record.ExpiresAt == nil || !record.ExpiresAt.Equal(parsed) {
				record.ExpiresAt = &parsed
				needsPersist = true
			}
		}
	}
	if !expiresAtSet {
		if v, ok := headerWithPresence(headers, expiresInHeaders); ok {
			if seconds, ok := parseExpiresIn(v); ok {
				parsed := tokeninfo.NewFromExpiresIn(time.Now(), seconds)
				if record.ExpiresAt == nil || !record.ExpiresAt.Equal(parsed) {
					record.ExpiresAt = &parsed
					needsPersist = true
				}
			}
		}
	}

	if v, ok := headerWithPresence(headers, tokenTypeHeaders); ok && v != record.TokenType {
		record.TokenType = v
		needsPersist = true
	} else if record.TokenType == "" {
		record.TokenType = tokeninfo.DefaultTokenType
	}

	if needsPersist {
		if err := store.Persist(ctx, userID, record); err != nil {
			return nil, errors.NewInternalError("failed to persist token during bearer ingest", err)
		}
		ledger.Clear(userID)
		logger.Infow("stored bearer token from headers", "user_id", userID)
	}

	return record, nil
}

// extractBearerToken reads the Authorization header. Returns (token, true,
// nil) on a well-formed Bearer credential, (_, false, nil) when the header
// is absent or malformed (silently skipped, not an error), and a non-nil
// error only when the header bytes are not valid UTF-8.
func extractBearerToken(headers http.Header) (string, bool, error) {
	raw := headers.Values("Authorization")
	if len(raw) == 0 {
		return "", false, nil
	}
	value := raw[0]
	if !utf8.ValidString(value) {
		return "", false, errors.NewInvalidRequestError("Authorization header is not valid UTF-8", nil)
	}

	parts := strings.Fields(value)
	if len(parts) != 2 {
		return "", false, nil
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false, nil
	}
	if parts[1] == "" {
		return "", false, nil
	}
	return parts[1], true, nil
}

// headerWithPresence checks both alias names in order, returning the first
// non-empty (after trimming) value found, and whether any alias was present
// at all (even if its value trims to empty).
func headerWithPresence(headers http.Header, names []string) (string, bool) {
	present := false
	for _, name := range names {
		values, ok := headers[http.CanonicalHeaderKey(name)]
		if !ok || len(values) == 0 {
			continue
		}
		present = true
		if trimmed := strings.TrimSpace(values[0]); trimmed != "" {
			return trimmed, true
		}
	}
	return "", present
}

// parseExpiresAt tries RFC 3339 first, then decimal seconds-since-epoch.
func parseExpiresAt(v string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if seconds, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), true
	}
	return time.Time{}, false
}

// parseExpiresIn parses a decimal seconds offset; must be finite and >= 0.
func parseExpiresIn(v string) (float64, bool) {
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return seconds, true
}
