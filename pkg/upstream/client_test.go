package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_AuthorizeURL(t *testing.T) {
	c := New(Config{
		ClientID:      "client-1",
		ClientSecret:  "secret-1",
		AuthURL:       "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:      "https://oauth2.googleapis.com/token",
		DefaultScopes: []string{"https://www.googleapis.com/auth/calendar.events"},
	}, nil)

	ctx, err := c.AuthorizeURL("https://bridge.example/oauth/callback", "https://bridge.example/")
	require.NoError(t, err)

	u, err := url.Parse(ctx.AuthorizeURL)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "select_account", q.Get("prompt"))
	assert.Equal(t, "https://bridge.example/", q.Get("resource"))
	assert.Equal(t, ctx.CSRFState, q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.NotEmpty(t, ctx.PKCEVerifier)
}

func TestClient_ExchangeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		assert.Equal(t, "client-1", r.FormValue("client_id"))
		assert.Equal(t, "secret-1", r.FormValue("client_secret"))
		assert.Equal(t, "verifier-xyz", r.FormValue("code_verifier"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "A",
			"refresh_token": "R",
			"expires_in":    3600,
			"token_type":    "Bearer",
		})
	}))
	defer srv.Close()

	c := New(Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
	}, srv.Client())

	info, err := c.ExchangeCode(context.Background(), "https://bridge.example/cb", "code-1", "verifier-xyz", "")
	require.NoError(t, err)
	assert.Equal(t, "A", info.AccessToken)
	assert.Equal(t, "R", info.RefreshToken)
	require.NotNil(t, info.ExpiresAt)
}

func TestClient_RefreshAccessToken_PreservesRefreshTokenWhenAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.FormValue("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "A2",
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
	}))
	defer srv.Close()

	c := New(Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		AuthURL:      srv.URL + "/auth",
		TokenURL:     srv.URL + "/token",
	}, srv.Client())

	info, err := c.RefreshAccessToken(context.Background(), "R-original", "")
	require.NoError(t, err)
	assert.Equal(t, "A2", info.AccessToken)
	assert.Equal(t, "R-original", info.RefreshToken, "absent refresh_token in response must preserve the prior one")
}
