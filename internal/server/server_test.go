package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamekamek/googlecalendar-mcp/internal/appstate"
	"github.com/kamekamek/googlecalendar-mcp/internal/config"
	"github.com/kamekamek/googlecalendar-mcp/pkg/mcptool"
	"github.com/kamekamek/googlecalendar-mcp/pkg/tokeninfo"
)

func newGoogleTokenStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"A","expires_in":3600,"refresh_token":"R","token_type":"Bearer"}`))
	}))
}

func newTestBridge(t *testing.T, googleTokenURL string, proxyEnabled bool) *httptest.Server {
	t.Helper()

	bridge := httptest.NewUnstartedServer(nil)
	bridge.Start()

	cfg := &config.Config{
		Server: config.ServerConfig{BindAddress: "127.0.0.1:0", PublicURL: bridge.URL},
		OAuth: config.OAuthConfig{
			ClientID:     "bridge-client",
			ClientSecret: "bridge-secret",
			AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:     googleTokenURL,
			RedirectURI:  bridge.URL + "/oauth/callback",
			Scopes:       []string{"https://www.googleapis.com/auth/calendar.events"},
		},
		Google:   config.GoogleConfig{APIBase: "https://www.googleapis.com/calendar/v3"},
		Security: config.SecurityConfig{UseInMemory: true},
		Proxy:    config.ProxyConfig{Enabled: proxyEnabled},
	}

	state, err := appstate.New(cfg)
	require.NoError(t, err)
	bridge.Config.Handler = New(state)

	return bridge
}

// newTestBridgeWithCalendar is newTestBridge plus access to the wired
// AppState, so a test can seed a token directly and point Google.APIBase at
// a stub calendar server.
func newTestBridgeWithCalendar(t *testing.T, googleTokenURL, googleAPIBase string) (*httptest.Server, *appstate.AppState) {
	t.Helper()

	bridge := httptest.NewUnstartedServer(nil)
	bridge.Start()

	cfg := &config.Config{
		Server: config.ServerConfig{BindAddress: "127.0.0.1:0", PublicURL: bridge.URL},
		OAuth: config.OAuthConfig{
			ClientID:     "bridge-client",
			ClientSecret: "bridge-secret",
			AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:     googleTokenURL,
			RedirectURI:  bridge.URL + "/oauth/callback",
			Scopes:       []string{"https://www.googleapis.com/auth/calendar.events"},
		},
		Google:   config.GoogleConfig{APIBase: googleAPIBase},
		Security: config.SecurityConfig{UseInMemory: true},
	}

	state, err := appstate.New(cfg)
	require.NoError(t, err)
	bridge.Config.Handler = New(state)

	return bridge, state
}

func TestServer_S1_ToolCallWithNoTokenYieldsChallenge(t *testing.T) {
	googleSrv := newGoogleTokenStub(t)
	defer googleSrv.Close()
	bridge := newTestBridge(t, googleSrv.URL, false)
	defer bridge.Close()

	body := `{"operation":"list","user_id":"u1","params":{}}`
	resp, err := http.Post(bridge.URL+"/mcp/tool", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	wwwAuth := resp.Header.Get("WWW-Authenticate")
	assert.True(t, strings.HasPrefix(wwwAuth, `Bearer resource="`))
	assert.Contains(t, wwwAuth, "resource_metadata=")
	assert.Contains(t, wwwAuth, "scope=")

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "ERROR", decoded["status"])
	data := decoded["data"].(map[string]any)
	assert.NotEmpty(t, data["authorize_url"])
}

func TestServer_S2_AuthorizeCallbackThenAuthorized(t *testing.T) {
	googleSrv := newGoogleTokenStub(t)
	defer googleSrv.Close()
	bridge := newTestBridge(t, googleSrv.URL, false)
	defer bridge.Close()

	resp, err := http.Get(bridge.URL + "/oauth/authorize?user_id=u1")
	require.NoError(t, err)
	var authCtx struct {
		AuthorizeURL string
		CSRFState    string
		PKCEVerifier string
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&authCtx))
	resp.Body.Close()
	require.NotEmpty(t, authCtx.CSRFState)

	cbResp, err := http.Get(bridge.URL + "/oauth/callback?state=" + authCtx.CSRFState + "&code=googlecode")
	require.NoError(t, err)
	defer cbResp.Body.Close()
	assert.Equal(t, http.StatusOK, cbResp.StatusCode)

	var cbBody map[string]string
	require.NoError(t, json.NewDecoder(cbResp.Body).Decode(&cbBody))
	assert.Equal(t, "authorized", cbBody["status"])
}

func TestServer_S4_RevokeThenReplayIsRejected(t *testing.T) {
	googleSrv := newGoogleTokenStub(t)
	defer googleSrv.Close()
	bridge := newTestBridge(t, googleSrv.URL, false)
	defer bridge.Close()

	req, err := http.NewRequest(http.MethodPost, bridge.URL+"/mcp/tool", strings.NewReader(`{"operation":"list","user_id":"u2","params":{}}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer B1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	delReq, err := http.NewRequest(http.MethodDelete, bridge.URL+"/oauth/token/u2", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(delReq)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, delResp.StatusCode)
	delResp.Body.Close()

	replay, err := http.NewRequest(http.MethodPost, bridge.URL+"/mcp/tool", strings.NewReader(`{"operation":"list","user_id":"u2","params":{}}`))
	require.NoError(t, err)
	replay.Header.Set("Authorization", "Bearer B1")
	replayResp, err := http.DefaultClient.Do(replay)
	require.NoError(t, err)
	defer replayResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, replayResp.StatusCode)
}

func TestServer_DiscoveryDocuments(t *testing.T) {
	googleSrv := newGoogleTokenStub(t)
	defer googleSrv.Close()
	bridge := newTestBridge(t, googleSrv.URL, false)
	defer bridge.Close()

	resp, err := http.Get(bridge.URL + "/.well-known/oauth-authorization-server")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var md map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&md))
	assert.Equal(t, bridge.URL, md["issuer"])
}

func TestServer_ProxyRegisterAndAuthorizeRedirects(t *testing.T) {
	googleSrv := newGoogleTokenStub(t)
	defer googleSrv.Close()
	bridge := newTestBridge(t, googleSrv.URL, true)
	defer bridge.Close()

	client := &http.Client{CheckRedirect: func(_ *http.Request, _ []*http.Request) error { return http.ErrUseLastResponse }}

	regResp, err := client.Post(bridge.URL+"/proxy/oauth/register", "application/json", strings.NewReader(`{"redirect_uris":["https://cli.example/cb"]}`))
	require.NoError(t, err)
	defer regResp.Body.Close()
	require.Equal(t, http.StatusOK, regResp.StatusCode)

	var reg struct {
		ClientID string
	}
	require.NoError(t, json.NewDecoder(regResp.Body).Decode(&reg))
	require.NotEmpty(t, reg.ClientID)

	authResp, err := client.Get(bridge.URL + "/proxy/oauth/authorize?response_type=code&client_id=" + reg.ClientID + "&redirect_uri=https://cli.example/cb")
	require.NoError(t, err)
	defer authResp.Body.Close()
	assert.Equal(t, http.StatusFound, authResp.StatusCode)
	assert.Contains(t, authResp.Header.Get("Location"), "state=")
}

// TestServer_ToolCallSurfacesInsufficientScope exercises the
// __mcp_oauth_error:"insufficient_scope" marker end to end: a token is
// already on file, but Google rejects the call on scope grounds.
func TestServer_ToolCallSurfacesInsufficientScope(t *testing.T) {
	googleTokenSrv := newGoogleTokenStub(t)
	defer googleTokenSrv.Close()

	googleCalendarSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"Insufficient Permission","errors":[{"reason":"insufficientPermissions","message":"Request had insufficient authentication scopes."}]}}`))
	}))
	defer googleCalendarSrv.Close()

	bridge, state := newTestBridgeWithCalendar(t, googleTokenSrv.URL, googleCalendarSrv.URL)
	defer bridge.Close()

	require.NoError(t, state.TokenStore.Persist(context.Background(), "u3", &tokeninfo.TokenInfo{
		AccessToken: "A3",
	}))

	req, err := http.NewRequest(http.MethodPost, bridge.URL+"/mcp/tool", strings.NewReader(`{"operation":"list","user_id":"u3","params":{}}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var decoded mcptool.ToolResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, mcptool.StatusError, decoded.Status)
	data, ok := decoded.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "insufficient_scope", data["__mcp_oauth_error"])
	assert.Equal(t, "list", data["operation"])
	assert.NotEmpty(t, data["required_scope"])
}
