// Package server wires the bridge's HTTP surface: chi router, middleware
// stack, and graceful shutdown. Grounded on
// cmd/thv-registry-api/app/serve.go's middleware/timeout constants and
// original_source/src/handlers/mod.rs's build_router route table (non-proxy
// routes) plus original_source/src/proxy/mod.rs's route table (proxy routes,
// added only when Config.Proxy.Enabled).
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kamekamek/googlecalendar-mcp/internal/appstate"
)

// serverRequestTimeout bounds how long any single handler may run.
const serverRequestTimeout = 10 * time.Second

// New builds the bridge's chi router over state.
func New(state *appstate.AppState) http.Handler {
	h := &handlers{state: state}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Timeout(serverRequestTimeout))

	r.Get("/health", h.health)
	r.Get("/oauth/authorize", h.authorize)
	r.Get("/oauth/callback", h.callback)
	r.Delete("/oauth/token/{userID}", h.revokeToken)
	r.Post("/mcp/tool", h.mcpTool)

	r.Get("/.well-known/oauth-authorization-server", h.authorizationServerMetadata)
	r.Get("/.well-known/oauth-protected-resource", h.protectedResourceMetadata)
	r.Get("/.well-known/oauth-protected-resource/*", h.protectedResourceMetadata)
	r.Get("/.well-known/openid-configuration", h.openIDConfiguration)

	if state.AuthServer != nil {
		r.Post("/proxy/oauth/register", h.proxyRegister)
		r.Get("/proxy/oauth/authorize", h.proxyAuthorize)
		r.Get("/proxy/oauth/callback", h.proxyCallback)
		r.Post("/proxy/oauth/token", h.proxyToken)
	}

	return r
}
