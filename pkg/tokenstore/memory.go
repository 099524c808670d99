package tokenstore

import (
	"context"
	"sync"

	"github.com/kamekamek/googlecalendar-mcp/pkg/tokeninfo"
)

// InMemoryStore keeps tokens only in process memory. Grounded on
// original_source/src/oauth/storage.rs's InMemoryTokenStorage.
type InMemoryStore struct {
	mu    sync.RWMutex
	cache map[string]tokeninfo.TokenInfo
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{cache: make(map[string]tokeninfo.TokenInfo)}
}

// Fetch implements Store.
func (s *InMemoryStore) Fetch(_ context.Context, userID string) (*tokeninfo.TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.cache[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// Persist implements Store.
func (s *InMemoryStore) Persist(_ context.Context, userID string, token *tokeninfo.TokenInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[userID] = *token
	return nil
}

// Revoke implements Store.
func (s *InMemoryStore) Revoke(_ context.Context, userID string) (*tokeninfo.TokenInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.cache[userID]
	delete(s.cache, userID)
	if !ok {
		return nil, nil
	}
	return &t, nil
}

var _ Store = (*InMemoryStore)(nil)
