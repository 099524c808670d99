package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET", "OAUTH_REDIRECT_URI", "PROXY_ENABLED",
		"OAUTH__AUTH_URL", "OAUTH__TOKEN_URL", "SERVER__PUBLIC_URL", "SECURITY__USE_IN_MEMORY",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_MissingRequiredFieldsFails(t *testing.T) {
	clearEnv(t)
	_, err := Load(t.TempDir())
	require.Error(t, err)
}

func TestLoad_AppliesDefaultsAndSucceeds(t *testing.T) {
	clearEnv(t)
	t.Setenv("OAUTH_CLIENT_ID", "client-1")
	t.Setenv("OAUTH_CLIENT_SECRET", "secret-1")
	t.Setenv("OAUTH_REDIRECT_URI", "https://bridge.example/oauth/callback")
	t.Setenv("OAUTH__AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth")
	t.Setenv("OAUTH__TOKEN_URL", "https://oauth2.googleapis.com/token")
	t.Setenv("SERVER__PUBLIC_URL", "https://bridge.example")
	t.Setenv("SECURITY__USE_IN_MEMORY", "true")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "client-1", cfg.OAuth.ClientID)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/calendar.events"}, cfg.OAuth.Scopes)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.BindAddress)
	assert.True(t, cfg.Security.UseInMemory)
	assert.False(t, cfg.Proxy.Enabled)
}

func TestLoad_ProxyEnabledFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OAUTH_CLIENT_ID", "client-1")
	t.Setenv("OAUTH_CLIENT_SECRET", "secret-1")
	t.Setenv("OAUTH_REDIRECT_URI", "https://bridge.example/oauth/callback")
	t.Setenv("OAUTH__AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth")
	t.Setenv("OAUTH__TOKEN_URL", "https://oauth2.googleapis.com/token")
	t.Setenv("SERVER__PUBLIC_URL", "https://bridge.example")
	t.Setenv("SECURITY__USE_IN_MEMORY", "true")
	t.Setenv("PROXY_ENABLED", "true")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.Proxy.Enabled)
}
