package authserver

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kamekamek/googlecalendar-mcp/pkg/errors"
	"github.com/kamekamek/googlecalendar-mcp/pkg/metadata"
)

// Config bundles the bridge's own Google OAuth client, used by the proxy
// when it forwards the final exchange to Google (spec.md §4.6 Token).
type Config struct {
	GoogleClientID     string
	GoogleClientSecret string
	GoogleAuthURL      string
	GoogleTokenURL     string
	// BridgeRedirectURI is this server's own /proxy/oauth/callback URL,
	// registered with Google — distinct from the downstream client's
	// redirect_uri.
	BridgeRedirectURI string
	DefaultScope      string
}

// AuthServer is the downstream OAuth 2.1 Authorization Server.
type AuthServer struct {
	cfg      Config
	clients  *clientStore
	resolver *metadata.Resolver
	http     *http.Client

	mu      sync.Mutex
	pending map[string]AuthorizationRequest
	codes   map[string]AuthorizationCodeGrant
}

// New constructs an AuthServer.
func New(cfg Config, resolver *metadata.Resolver, httpClient *http.Client) *AuthServer {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AuthServer{
		cfg:      cfg,
		clients:  newClientStore(),
		resolver: resolver,
		http:     httpClient,
		pending:  make(map[string]AuthorizationRequest),
		codes:    make(map[string]AuthorizationCodeGrant),
	}
}

// RegisterClient handles DCR's register_client operation.
func (s *AuthServer) RegisterClient(redirectURIs []string) (*RegisteredClient, error) {
	return s.clients.Register(redirectURIs, "")
}

// resolvedClient is the outcome of resolving a client_id into either a
// registered client or a fetched metadata document.
type resolvedClient struct {
	redirectURIs            []string
	tokenEndpointAuthMethod string
	clientSecret            string
	isMetadataDocument      bool
}

func (s *AuthServer) resolveClient(ctx context.Context, clientID string) (*resolvedClient, error) {
	if strings.HasPrefix(clientID, "https://") {
		md, err := s.resolver.Resolve(ctx, clientID)
		if err != nil {
			return nil, err
		}
		return &resolvedClient{
			redirectURIs:            md.RedirectURIs,
			tokenEndpointAuthMethod: md.TokenEndpointAuthMethod,
			isMetadataDocument:      true,
		}, nil
	}

	rc, ok := s.clients.Get(clientID)
	if !ok {
		return nil, errors.NewInvalidRequestError("unknown client_id", nil)
	}
	return &resolvedClient{
		redirectURIs:            rc.RedirectURIs,
		tokenEndpointAuthMethod: rc.TokenEndpointAuthMethod,
		clientSecret:            rc.ClientSecret,
	}, nil
}

// AuthorizeParams is the downstream client's /proxy/oauth/authorize request.
type AuthorizeParams struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Scope               string
	Resource            string
}

// Authorize validates the request, remembers it keyed by a fresh proxy
// state, and returns the Google authorize URL to redirect the user-agent to.
func (s *AuthServer) Authorize(ctx context.Context, p AuthorizeParams) (string, error) {
	if p.ResponseType != "code" {
		return "", errors.NewInvalidRequestError("response_type must be \"code\"", nil)
	}

	client, err := s.resolveClient(ctx, p.ClientID)
	if err != nil {
		return "", err
	}
	if !containsString(client.redirectURIs, p.RedirectURI) {
		return "", errors.NewInvalidRequestError("redirect_uri does not match the client's registered redirect_uris", nil)
	}

	proxyState := uuid.NewString()

	s.sweepLocked()
	s.mu.Lock()
	s.pending[proxyState] = AuthorizationRequest{
		ClientID:            p.ClientID,
		RedirectURI:         p.RedirectURI,
		OriginalState:       p.State,
		CodeChallenge:       p.CodeChallenge,
		CodeChallengeMethod: p.CodeChallengeMethod,
		Scope:               p.Scope,
		Resource:            p.Resource,
		CreatedAt:           time.Now(),
	}
	s.mu.Unlock()

	scope := p.Scope
	if scope == "" {
		scope = s.cfg.DefaultScope
	}

	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", s.cfg.GoogleClientID)
	q.Set("redirect_uri", s.cfg.BridgeRedirectURI)
	q.Set("scope", scope)
	q.Set("state", proxyState)
	q.Set("prompt", "select_account")
	if p.Resource != "" {
		q.Set("resource", p.Resource)
	}
	if p.CodeChallenge != "" {
		q.Set("code_challenge", p.CodeChallenge)
		q.Set("code_challenge_method", p.CodeChallengeMethod)
	}

	return s.cfg.GoogleAuthURL + "?" + q.Encode(), nil
}

// Callback handles Google's redirect back to the bridge: looks up the
// pending request by state, mints a proxy code, and returns the redirect URL
// the bridge should send the original client's user-agent to.
func (s *AuthServer) Callback(state, googleCode string) (string, error) {
	s.sweepLocked()
	s.mu.Lock()
	req, ok := s.pending[state]
	if ok {
		delete(s.pending, state)
	}
	s.mu.Unlock()

	if !ok {
		return "", errors.NewInvalidRequestError("unknown or expired state", nil)
	}

	proxyCode := uuid.NewString()
	s.mu.Lock()
	s.codes[proxyCode] = AuthorizationCodeGrant{
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		GoogleCode:  googleCode,
		Resource:    req.Resource,
		CreatedAt:   time.Now(),
	}
	s.mu.Unlock()

	redirectURL := req.RedirectURI + "?code=" + url.QueryEscape(proxyCode)
	if req.OriginalState != "" {
		redirectURL += "&state=" + url.QueryEscape(req.OriginalState)
	}
	return redirectURL, nil
}

// TokenParams is the downstream client's /proxy/oauth/token request.
type TokenParams struct {
	GrantType    string
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
	Resource     string
}

// TokenResult carries Google's token response forwarded verbatim, along with
// the status code it was received with.
type TokenResult struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Token validates the client and the proxy code, then forwards the exchange
// to Google using the bridge's own credentials. consumes codes on first
// sight; codes are rejected once past their 300-second TTL.
func (s *AuthServer) Token(ctx context.Context, p TokenParams) (*TokenResult, error) {
	if p.GrantType != "authorization_code" {
		return nil, errors.NewInvalidRequestError("grant_type must be \"authorization_code\"", nil)
	}

	client, err := s.resolveClient(ctx, p.ClientID)
	if err != nil {
		return nil, err
	}
	if client.isMetadataDocument {
		if client.tokenEndpointAuthMethod != "none" {
			return nil, errors.NewInvalidRequestError("metadata document client must declare token_endpoint_auth_method \"none\"", nil)
		}
	} else if client.clientSecret != p.ClientSecret {
		return nil, errors.NewInvalidRequestError("client_secret does not match", nil)
	}

	s.sweepLocked()
	s.mu.Lock()
	grant, ok := s.codes[p.Code]
	if ok {
		delete(s.codes, p.Code)
	}
	s.mu.Unlock()

	if !ok {
		return nil, errors.NewInvalidRequestError("unknown, already-consumed, or expired code", nil)
	}
	if time.Since(grant.CreatedAt) > codeTTL {
		return nil, errors.NewInvalidRequestError("authorization code expired", nil)
	}
	if grant.ClientID != p.ClientID {
		return nil, errors.NewInvalidRequestError("code was not issued to this client", nil)
	}
	if grant.RedirectURI != p.RedirectURI {
		return nil, errors.NewInvalidRequestError("redirect_uri does not match the original request", nil)
	}

	return s.exchangeWithGoogle(ctx, grant, p)
}

func (s *AuthServer) exchangeWithGoogle(ctx context.Context, grant AuthorizationCodeGrant, p TokenParams) (*TokenResult, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", grant.GoogleCode)
	form.Set("redirect_uri", s.cfg.BridgeRedirectURI)
	form.Set("client_id", s.cfg.GoogleClientID)
	form.Set("client_secret", s.cfg.GoogleClientSecret)
	if p.CodeVerifier != "" {
		form.Set("code_verifier", p.CodeVerifier)
	}
	resource := p.Resource
	if resource == "" {
		resource = grant.Resource
	}
	if resource != "" {
		form.Set("resource", resource)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.GoogleTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.NewInternalError("failed to build upstream token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.NewInvalidRequestError("failed to reach upstream token endpoint", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewInternalError("failed to read upstream token response", err)
	}

	return &TokenResult{StatusCode: resp.StatusCode, Body: body, Header: resp.Header.Clone()}, nil
}

func (s *AuthServer) sweepLocked() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for state, req := range s.pending {
		if now.Sub(req.CreatedAt) > pendingTTL {
			delete(s.pending, state)
		}
	}
	for code, grant := range s.codes {
		if now.Sub(grant.CreatedAt) > codeTTL {
			delete(s.codes, code)
		}
	}
}

func containsString(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}
