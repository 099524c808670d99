package tokenstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamekamek/googlecalendar-mcp/pkg/tokeninfo"
)

func TestFileStore_PersistAndFetchRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")

	s, err := NewFileStore(path, false)
	require.NoError(t, err)

	tok := &tokeninfo.TokenInfo{AccessToken: "A", TokenType: "Bearer"}
	require.NoError(t, s.Persist(ctx, "u1", tok))

	got, err := s.Fetch(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A", got.AccessToken)

	// A fresh store pointed at the same path should observe the persisted write.
	s2, err := NewFileStore(path, false)
	require.NoError(t, err)
	got2, err := s2.Fetch(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got2)
	assert.Equal(t, "A", got2.AccessToken)
}

func TestFileStore_RevokeRewritesDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	s, err := NewFileStore(path, false)
	require.NoError(t, err)

	require.NoError(t, s.Persist(ctx, "u1", &tokeninfo.TokenInfo{AccessToken: "A"}))
	revoked, err := s.Revoke(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, revoked)

	s2, err := NewFileStore(path, false)
	require.NoError(t, err)
	got, err := s2.Fetch(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore_ExpiresAtSerializesAsEpochSeconds(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	s, err := NewFileStore(path, false)
	require.NoError(t, err)

	expiresAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Persist(ctx, "u1", &tokeninfo.TokenInfo{AccessToken: "A", ExpiresAt: &expiresAt}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Contains(t, onDisk, "u1")
	assert.Equal(t, float64(expiresAt.Unix()), onDisk["u1"]["expires_at"])

	s2, err := NewFileStore(path, false)
	require.NoError(t, err)
	got, err := s2.Fetch(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, expiresAt.Equal(*got.ExpiresAt))
}

func TestFileStore_EncryptFlagAcceptedButPlaintext(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tokens.json")

	s, err := NewFileStore(path, true)
	require.NoError(t, err)
	require.NoError(t, s.Persist(ctx, "u1", &tokeninfo.TokenInfo{AccessToken: "plain"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "plain")
}
