package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamekamek/googlecalendar-mcp/pkg/upstream"
)

func TestRegistry_InsertConsumeRoundtrip(t *testing.T) {
	r := NewRegistry()
	sess := AuthorizationSession{
		UserID:    "u1",
		Context:   upstream.AuthorizationContext{CSRFState: "state1", AuthorizeURL: "https://accounts.google.com/..."},
		CreatedAt: time.Now(),
	}
	r.Insert(sess)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Consume("state1")
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)

	_, ok = r.Consume("state1")
	assert.False(t, ok, "a session is consumable at most once")
}

func TestRegistry_ConsumeMiss(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Consume("nope")
	assert.False(t, ok)
}

func TestRegistry_SweepsExpiredOnInsert(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	r.Insert(AuthorizationSession{
		UserID:    "stale",
		Context:   upstream.AuthorizationContext{CSRFState: "old"},
		CreatedAt: base,
	})
	assert.Equal(t, 1, r.Len())

	r.now = func() time.Time { return base.Add(11 * time.Minute) }
	r.Insert(AuthorizationSession{
		UserID:    "fresh",
		Context:   upstream.AuthorizationContext{CSRFState: "new"},
		CreatedAt: base.Add(11 * time.Minute),
	})

	assert.Equal(t, 1, r.Len(), "the stale entry should have been swept")
	_, ok := r.Consume("old")
	assert.False(t, ok)
	_, ok = r.Consume("new")
	assert.True(t, ok)
}

func TestRegistry_RevokeUserPurgesAllTheirSessions(t *testing.T) {
	r := NewRegistry()
	r.Insert(AuthorizationSession{UserID: "u1", Context: upstream.AuthorizationContext{CSRFState: "s1"}, CreatedAt: time.Now()})
	r.Insert(AuthorizationSession{UserID: "u1", Context: upstream.AuthorizationContext{CSRFState: "s2"}, CreatedAt: time.Now()})
	r.Insert(AuthorizationSession{UserID: "u2", Context: upstream.AuthorizationContext{CSRFState: "s3"}, CreatedAt: time.Now()})

	r.RevokeUser("u1")

	assert.Equal(t, 1, r.Len())
	_, ok := r.Consume("s3")
	assert.True(t, ok)
}
