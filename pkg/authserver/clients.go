package authserver

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kamekamek/googlecalendar-mcp/pkg/errors"
)

// clientStore is the DCR table: client_id -> RegisteredClient.
type clientStore struct {
	mu      sync.RWMutex
	clients map[string]RegisteredClient
}

func newClientStore() *clientStore {
	return &clientStore{clients: make(map[string]RegisteredClient)}
}

// Register validates redirectURIs and mints a fresh RegisteredClient.
func (s *clientStore) Register(redirectURIs []string, tokenEndpointAuthMethod string) (*RegisteredClient, error) {
	if len(redirectURIs) == 0 {
		return nil, errors.NewInvalidRequestError("redirect_uris must be non-empty", nil)
	}
	if tokenEndpointAuthMethod == "" {
		tokenEndpointAuthMethod = "client_secret_post"
	}

	secret, err := generateClientSecret()
	if err != nil {
		return nil, err
	}

	client := RegisteredClient{
		ClientID:                uuid.NewString(),
		ClientSecret:            secret,
		RedirectURIs:            redirectURIs,
		TokenEndpointAuthMethod: tokenEndpointAuthMethod,
		ClientIDIssuedAt:        time.Now().Unix(),
	}

	s.mu.Lock()
	s.clients[client.ClientID] = client
	s.mu.Unlock()

	return &client, nil
}

func (s *clientStore) Get(clientID string) (RegisteredClient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	return c, ok
}
