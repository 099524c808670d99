// Package tokenstore holds the per-user credential cabinet: concurrent
// fetch/persist/revoke over TokenInfo, with in-memory, file-backed, and
// Redis-backed variants.
package tokenstore

import (
	"context"

	"github.com/kamekamek/googlecalendar-mcp/pkg/tokeninfo"
)

// Store is the capability set every token store variant implements: fetch,
// persist, revoke. fetch never fails for an unknown key; it returns (nil, nil).
type Store interface {
	// Fetch returns the stored token for userID, or nil if none is stored.
	Fetch(ctx context.Context, userID string) (*tokeninfo.TokenInfo, error)
	// Persist overwrites the stored token for userID.
	Persist(ctx context.Context, userID string, token *tokeninfo.TokenInfo) error
	// Revoke removes the stored token for userID and returns it (nil if none existed).
	Revoke(ctx context.Context, userID string) (*tokeninfo.TokenInfo, error)
}
