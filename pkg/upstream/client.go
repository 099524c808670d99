package upstream

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/kamekamek/googlecalendar-mcp/pkg/errors"
	"github.com/kamekamek/googlecalendar-mcp/pkg/tokeninfo"
)

// AuthorizationContext is produced per downstream authorize request: the
// caller-facing Google authorize URL, the CSRF state, and the PKCE verifier
// (opaque, and never leaves the process in the normal, non-proxy flow).
// Immutable once created.
type AuthorizationContext struct {
	AuthorizeURL string
	CSRFState    string
	PKCEVerifier string
}

// resourceParam is the RFC 8707 query parameter name.
const resourceParam = "resource"

// Client is the bridge's own OAuth 2.0 client against Google. Authentication
// method is client_secret_post (oauth2.AuthStyleInParams).
type Client struct {
	oauth2Config *oauth2.Config
	httpClient   *http.Client
}

// New constructs a Client from Config.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.DefaultScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

// AuthorizeURL generates a fresh PKCE S256 pair and CSRF state, and builds
// the Google authorize URL. When resource is non-empty, it is forwarded
// verbatim as the RFC 8707 resource indicator.
func (c *Client) AuthorizeURL(redirectURI, resource string) (*AuthorizationContext, error) {
	pkce, err := GeneratePKCEParams()
	if err != nil {
		return nil, errors.NewInternalError("failed to generate PKCE parameters", err)
	}
	state, err := GenerateState()
	if err != nil {
		return nil, errors.NewInternalError("failed to generate CSRF state", err)
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("redirect_uri", redirectURI),
		oauth2.SetAuthURLParam("code_challenge", pkce.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	}
	if resource != "" {
		opts = append(opts, oauth2.SetAuthURLParam(resourceParam, resource))
	}

	authorizeURL := c.oauth2Config.AuthCodeURL(state, opts...)

	return &AuthorizationContext{
		AuthorizeURL: authorizeURL,
		CSRFState:    state,
		PKCEVerifier: pkce.CodeVerifier,
	}, nil
}

// ExchangeCode performs the authorization-code grant and maps the response
// into a TokenInfo.
func (c *Client) ExchangeCode(ctx context.Context, redirectURI, code, verifier, resource string) (*tokeninfo.TokenInfo, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("redirect_uri", redirectURI),
		oauth2.SetAuthURLParam("code_verifier", verifier),
	}
	if resource != "" {
		opts = append(opts, oauth2.SetAuthURLParam(resourceParam, resource))
	}

	tok, err := c.oauth2Config.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, errors.NewInvalidRequestError("failed to exchange authorization code with upstream", err)
	}
	return c.mapToken(tok), nil
}

// RefreshAccessToken exchanges a refresh token for a fresh access token. The
// response's refresh_token is optional; if Google omits it, the caller must
// preserve the prior one (the TokenInfo returned here carries refreshToken
// unchanged when Google's response is silent on it).
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken, resource string) (*tokeninfo.TokenInfo, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	ts := c.oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	if resource != "" {
		ts = newResourceTokenSource(ts, c.oauth2Config, refreshToken, resource, c.httpClient)
	}

	tok, err := ts.Token()
	if err != nil {
		return nil, errors.NewUnauthorizedError("failed to refresh upstream access token", err)
	}

	info := c.mapToken(tok)
	if info.RefreshToken == "" {
		info.RefreshToken = refreshToken
	}
	return info, nil
}

func (c *Client) mapToken(tok *oauth2.Token) *tokeninfo.TokenInfo {
	info := &tokeninfo.TokenInfo{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if info.TokenType == "" {
		info.TokenType = tokeninfo.DefaultTokenType
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		info.ExpiresAt = &expiry
	}
	if scope := tok.Extra("scope"); scope != nil {
		if s, ok := scope.(string); ok {
			info.Scope = s
		}
	}
	return info
}
