// Package metadata implements the Metadata Document Resolver: fetching,
// validating, and caching OAuth Client ID Metadata Documents for URL-form
// client_ids (draft-ietf-oauth-client-id-metadata-document). Grounded on
// pkg/auth/discovery/rfc9728.go's FetchResourceMetadata (HTTPS enforcement,
// response size cap, content-type check, timeout discipline) as the
// HTTP-fetch template, applied to the metadata-document branch spec.md §4.6
// describes.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/kamekamek/googlecalendar-mcp/pkg/errors"
)

// fetchTimeout is the hard deadline for a metadata document fetch (spec.md §4.6).
const fetchTimeout = 5 * time.Second

// cacheTTL is how long a successfully fetched document is trusted before refetch.
const cacheTTL = 24 * time.Hour

// maxBodyBytes bounds how much of a third-party-hosted document is read.
const maxBodyBytes = 1 << 20 // 1 MiB

// ClientMetadata mirrors draft-ietf-oauth-client-id-metadata-document.
type ClientMetadata struct {
	ClientID                string   `json:"client_id"`
	RedirectURIs             []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
}

type cacheEntry struct {
	metadata  ClientMetadata
	expiresAt time.Time
}

// HTTPDoer is the minimal interface Resolver needs from an HTTP client,
// satisfied by *retryablehttp.Client (via StandardClient) or any fake in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver fetches and caches Client ID Metadata Documents.
type Resolver struct {
	client HTTPDoer

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewResolver constructs a Resolver using a bounded-retry HTTP client.
func NewResolver() *Resolver {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.Logger = nil
	return NewResolverWithClient(rc.StandardClient())
}

// NewResolverWithClient constructs a Resolver using the supplied HTTP client,
// primarily for tests.
func NewResolverWithClient(client HTTPDoer) *Resolver {
	return &Resolver{client: client, cache: make(map[string]cacheEntry)}
}

// Resolve fetches (or returns cached) metadata for a client_id that begins
// with "https://". The document is expected at
// "{client_id}/.well-known/oauth-client".
func (r *Resolver) Resolve(ctx context.Context, clientID string) (*ClientMetadata, error) {
	if !strings.HasPrefix(clientID, "https://") {
		return nil, errors.NewInvalidRequestError("client id metadata documents must use https", nil)
	}

	if cached, ok := r.cachedIfFresh(clientID); ok {
		return &cached, nil
	}

	md, err := r.fetch(ctx, clientID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[clientID] = cacheEntry{metadata: *md, expiresAt: time.Now().Add(cacheTTL)}
	r.mu.Unlock()

	return md, nil
}

func (r *Resolver) cachedIfFresh(clientID string) (ClientMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[clientID]
	if !ok || time.Now().After(entry.expiresAt) {
		return ClientMetadata{}, false
	}
	return entry.metadata, true
}

func (r *Resolver) fetch(ctx context.Context, clientID string) (*ClientMetadata, error) {
	docURL := strings.TrimSuffix(clientID, "/") + "/.well-known/oauth-client"

	parsed, err := url.Parse(docURL)
	if err != nil || parsed.Scheme != "https" {
		return nil, errors.NewInvalidRequestError("invalid client id metadata document url", err)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, errors.NewInternalError("failed to build metadata document request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.NewInvalidRequestError("failed to fetch client id metadata document", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("client id metadata document returned status %d", resp.StatusCode), nil)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("client id metadata document has unexpected content-type %q", ct), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.NewInvalidRequestError("failed to read client id metadata document", err)
	}

	var md ClientMetadata
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, errors.NewInvalidRequestError("failed to parse client id metadata document", err)
	}

	if err := validate(clientID, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

func validate(clientID string, md *ClientMetadata) error {
	if md.ClientID != clientID {
		return errors.NewInvalidRequestError("metadata document client_id does not match the requested url", nil)
	}
	if len(md.RedirectURIs) == 0 {
		return errors.NewInvalidRequestError("metadata document declares no redirect_uris", nil)
	}
	return nil
}

// RequiresNoAuth reports whether md declares the "none" token endpoint auth
// method required for the metadata-document client variant (spec.md §4.6/§4.8).
func RequiresNoAuth(md *ClientMetadata) bool {
	return md.TokenEndpointAuthMethod == "none"
}
