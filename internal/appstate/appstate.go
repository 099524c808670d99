// Package appstate bundles the bridge's shared, process-wide state: the
// resolved config, the Upstream OAuth Client, the Token Store, the Session
// Registry, the Revocation Ledger, a Calendar client, and (when enabled) the
// downstream Authorization Server. Grounded on original_source/src/lib.rs's
// AppState.
package appstate

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kamekamek/googlecalendar-mcp/internal/config"
	"github.com/kamekamek/googlecalendar-mcp/pkg/authserver"
	"github.com/kamekamek/googlecalendar-mcp/pkg/calendar"
	"github.com/kamekamek/googlecalendar-mcp/pkg/discovery"
	"github.com/kamekamek/googlecalendar-mcp/pkg/gate"
	"github.com/kamekamek/googlecalendar-mcp/pkg/metadata"
	"github.com/kamekamek/googlecalendar-mcp/pkg/revocation"
	"github.com/kamekamek/googlecalendar-mcp/pkg/session"
	"github.com/kamekamek/googlecalendar-mcp/pkg/tokenstore"
	"github.com/kamekamek/googlecalendar-mcp/pkg/upstream"
)

const redisKeyPrefix = "calbridge:tokens:"

// upstreamHTTPTimeout bounds every outbound call the bridge makes to Google.
const upstreamHTTPTimeout = 15 * time.Second

// AppState is the root shared-immutable bundle wired once at startup and
// passed by reference to every HTTP handler.
type AppState struct {
	Config     *config.Config
	Upstream   *upstream.Client
	TokenStore tokenstore.Store
	Sessions   *session.Registry
	Ledger     *revocation.Ledger
	Calendar   *calendar.Client
	Gate       *gate.Gate
	Metadata   *metadata.Resolver
	Discovery  discovery.Params
	AuthServer *authserver.AuthServer
}

// New wires an AppState from a resolved Config.
func New(cfg *config.Config) (*AppState, error) {
	httpClient := &http.Client{Timeout: upstreamHTTPTimeout}

	store, err := newTokenStore(cfg)
	if err != nil {
		return nil, err
	}

	upstreamClient := upstream.New(upstream.Config{
		ClientID:      cfg.OAuth.ClientID,
		ClientSecret:  cfg.OAuth.ClientSecret,
		AuthURL:       cfg.OAuth.AuthURL,
		TokenURL:      cfg.OAuth.TokenURL,
		DefaultScopes: cfg.OAuth.Scopes,
	}, httpClient)

	sessions := session.NewRegistry()
	ledger := revocation.New()
	resolver := metadata.NewResolver()
	calendarClient := calendar.New(cfg.Google.APIBase, httpClient).WithDefaultCalendar(cfg.Google.CalendarID)

	discoveryParams := discovery.Params{
		PublicURL:    cfg.Server.PublicURL,
		ProxyEnabled: cfg.Proxy.Enabled,
	}

	g := &gate.Gate{
		Store:               store,
		Ledger:              ledger,
		Sessions:            sessions,
		Upstream:            upstreamClient,
		PublicURL:           cfg.Server.PublicURL,
		ResourceMetadataURL: discovery.ResourceMetadataURL(cfg.Server.PublicURL),
		RedirectURI:         cfg.OAuth.RedirectURI,
	}

	state := &AppState{
		Config:     cfg,
		Upstream:   upstreamClient,
		TokenStore: store,
		Sessions:   sessions,
		Ledger:     ledger,
		Calendar:   calendarClient,
		Gate:       g,
		Metadata:   resolver,
		Discovery:  discoveryParams,
	}

	if cfg.Proxy.Enabled {
		state.AuthServer = authserver.New(authserver.Config{
			GoogleClientID:     cfg.OAuth.ClientID,
			GoogleClientSecret: cfg.OAuth.ClientSecret,
			GoogleAuthURL:      cfg.OAuth.AuthURL,
			GoogleTokenURL:     cfg.OAuth.TokenURL,
			BridgeRedirectURI:  cfg.Server.PublicURL + "/proxy/oauth/callback",
			DefaultScope:       firstOrDefault(cfg.OAuth.Scopes, "https://www.googleapis.com/auth/calendar.events"),
		}, resolver, httpClient)
	}

	return state, nil
}

func newTokenStore(cfg *config.Config) (tokenstore.Store, error) {
	switch {
	case cfg.Security.UseInMemory:
		return tokenstore.NewInMemoryStore(), nil
	case cfg.Security.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.Security.RedisAddr})
		return tokenstore.NewRedisStore(client, redisKeyPrefix), nil
	default:
		return tokenstore.NewFileStore(cfg.Security.TokenStorePath, cfg.Security.EncryptTokens)
	}
}

func firstOrDefault(scopes []string, def string) string {
	if len(scopes) > 0 {
		return scopes[0]
	}
	return def
}
