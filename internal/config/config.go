// Package config loads the bridge's layered configuration (file + env),
// grounded on original_source/src/config/mod.rs's AppConfig/ServerConfig/
// OAuthConfig/GoogleConfig/SecurityConfig shape (adapted to this field-set's
// actual env var names per SPEC_FULL.md §10.3/§6) and on
// pkg/authserver/config.go's Validate()/applyDefaults() idiom (field-by-field
// checks with logger.Debugw breadcrumbs, defaults applied only when unset).
// Uses Viper for file+env layering and Cobra flag binding.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/kamekamek/googlecalendar-mcp/pkg/logger"
)

// Config is the bridge's fully-resolved runtime configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	Google   GoogleConfig   `mapstructure:"google"`
	Security SecurityConfig `mapstructure:"security"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
}

// ServerConfig controls the HTTP listener and this service's own identity.
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	PublicURL   string `mapstructure:"public_url"`
}

// OAuthConfig is the bridge's own OAuth 2.0 client registration with Google.
type OAuthConfig struct {
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	RedirectURI  string   `mapstructure:"redirect_uri"`
	Scopes       []string `mapstructure:"scopes"`
}

// GoogleConfig addresses the Calendar REST API itself.
type GoogleConfig struct {
	APIBase    string `mapstructure:"api_base"`
	CalendarID string `mapstructure:"calendar_id"`
}

// SecurityConfig controls the Token Store backend.
type SecurityConfig struct {
	TokenStorePath string `mapstructure:"token_store_path"`
	EncryptTokens  bool   `mapstructure:"encrypt_tokens"`
	UseInMemory    bool   `mapstructure:"use_in_memory"`
	RedisAddr      string `mapstructure:"redis_addr"`
}

// ProxyConfig controls the downstream OAuth AS.
type ProxyConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func defaultScopes() []string {
	return []string{"https://www.googleapis.com/auth/calendar.events"}
}

// Load builds a Viper instance layered as: defaults, optional config files,
// environment variables (SECTION__KEY, double-underscore separated, no
// prefix — matching the deployment's OAUTH_CLIENT_ID-style bare env names
// plus SERVER__BIND_ADDRESS/SECURITY__USE_IN_MEMORY-style nested ones per
// spec.md §6), then unmarshals and validates.
func Load(configPaths ...string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	v.SetDefault("server.bind_address", "127.0.0.1:8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("oauth.scopes", defaultScopes())
	v.SetDefault("google.api_base", "https://www.googleapis.com/calendar/v3")
	v.SetDefault("security.token_store_path", "config/tokens.json")
	v.SetDefault("security.encrypt_tokens", false)
	v.SetDefault("security.use_in_memory", false)
	v.SetDefault("proxy.enabled", false)

	// spec.md §6's bare (unprefixed) secret env vars are bound explicitly,
	// since AutomaticEnv alone only covers the nested SECTION__KEY form.
	bindings := map[string]string{
		"oauth.client_id":     "OAUTH_CLIENT_ID",
		"oauth.client_secret": "OAUTH_CLIENT_SECRET",
		"oauth.redirect_uri":  "OAUTH_REDIRECT_URI",
		"proxy.enabled":       "PROXY_ENABLED",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Debug("no config file found, relying on environment and defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in values Viper's own SetDefault can't express
// (computed or conditional defaults).
func (c *Config) applyDefaults() {
	if len(c.OAuth.Scopes) == 0 {
		c.OAuth.Scopes = defaultScopes()
		logger.Debugw("applied default oauth scopes", "scopes", c.OAuth.Scopes)
	}
}

// Validate checks that required fields are present and internally
// consistent.
func (c *Config) Validate() error {
	logger.Debugw("validating config", "public_url", c.Server.PublicURL, "proxy_enabled", c.Proxy.Enabled)

	if c.OAuth.ClientID == "" {
		return fmt.Errorf("oauth.client_id is required")
	}
	if c.OAuth.ClientSecret == "" {
		return fmt.Errorf("oauth.client_secret is required")
	}
	if c.OAuth.RedirectURI == "" {
		return fmt.Errorf("oauth.redirect_uri is required")
	}
	if c.OAuth.AuthURL == "" {
		return fmt.Errorf("oauth.auth_url is required")
	}
	if c.OAuth.TokenURL == "" {
		return fmt.Errorf("oauth.token_url is required")
	}
	if c.Server.PublicURL == "" {
		return fmt.Errorf("server.public_url is required")
	}
	if !c.Security.UseInMemory && c.Security.TokenStorePath == "" && c.Security.RedisAddr == "" {
		return fmt.Errorf("security.token_store_path or security.redis_addr is required unless security.use_in_memory is set")
	}

	logger.Debugw("config validation passed", "proxy_enabled", c.Proxy.Enabled)
	return nil
}
