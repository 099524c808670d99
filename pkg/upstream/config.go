// Package upstream is the bridge's own OAuth 2.0 client against Google:
// authorize-URL construction, authorization-code exchange, and refresh.
// Grounded on pkg/auth/oauth/config.go (Config shape) and
// original_source/src/oauth/mod.rs (OAuthClient).
package upstream

// Config is the pure, fully-resolved configuration for the upstream OAuth
// client. All values must already be resolved; no file paths or env vars.
type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	DefaultScopes []string
}
