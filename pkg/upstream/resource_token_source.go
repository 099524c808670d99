package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// resourceTokenSource wraps an oauth2.TokenSource to add the RFC 8707
// resource parameter on refresh, since golang.org/x/oauth2 has no native
// support for it. Adapted from pkg/auth/oauth/resource_token_source.go.
type resourceTokenSource struct {
	base         oauth2.TokenSource
	config       *oauth2.Config
	refreshToken string
	resource     string
	httpClient   *http.Client
}

func newResourceTokenSource(base oauth2.TokenSource, config *oauth2.Config, refreshToken, resource string, httpClient *http.Client) oauth2.TokenSource {
	return &resourceTokenSource{
		base:         base,
		config:       config,
		refreshToken: refreshToken,
		resource:     resource,
		httpClient:   httpClient,
	}
}

// Token performs the refresh-token grant directly via a raw form POST so the
// resource parameter can be included, rather than delegating to the base
// TokenSource (which would omit it).
func (s *resourceTokenSource) Token() (*oauth2.Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.refreshToken},
		"client_id":     {s.config.ClientID},
		"client_secret": {s.config.ClientSecret},
		"resource":      {s.resource},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := s.httpClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream refresh failed with status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		TokenType:    body.TokenType,
	}
	if body.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	if body.Scope != "" {
		tok = tok.WithExtra(map[string]interface{}{"scope": body.Scope})
	}
	return tok, nil
}
