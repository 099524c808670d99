// Package gate implements the Authorization Gate: the per-tool-call policy
// that ingests bearer credentials, refreshes expired tokens, and otherwise
// emits a discovery-pointing 401 challenge. Grounded on
// original_source/src/handlers/mod.rs's /mcp/tool unauthorized branch and
// pkg/auth/middleware/auth.go's buildWWWAuthenticate construction, adapted
// from JWT-validation failure to "no stored token".
package gate

import (
	"context"
	"net/http"
	"time"

	"github.com/kamekamek/googlecalendar-mcp/pkg/discovery"
	"github.com/kamekamek/googlecalendar-mcp/pkg/errors"
	"github.com/kamekamek/googlecalendar-mcp/pkg/ingest"
	"github.com/kamekamek/googlecalendar-mcp/pkg/logger"
	"github.com/kamekamek/googlecalendar-mcp/pkg/revocation"
	"github.com/kamekamek/googlecalendar-mcp/pkg/session"
	"github.com/kamekamek/googlecalendar-mcp/pkg/tokeninfo"
	"github.com/kamekamek/googlecalendar-mcp/pkg/tokenstore"
	"github.com/kamekamek/googlecalendar-mcp/pkg/upstream"
)

// Gate bundles everything a tool call needs to authorize.
type Gate struct {
	Store    tokenstore.Store
	Ledger   *revocation.Ledger
	Sessions *session.Registry
	Upstream *upstream.Client
	// PublicURL is this service's own canonical resource identifier
	// (RFC 8707), trailing slashes trimmed.
	PublicURL string
	// ResourceMetadataURL is the protected-resource metadata document URL
	// advertised in the WWW-Authenticate challenge.
	ResourceMetadataURL string
	// RedirectURI is used when seeding a fresh Session Registry entry.
	RedirectURI string
}

// Challenge is the payload returned on an unauthorized tool call: a 401 with
// a synthetic authorize link the caller can drive, plus a WWW-Authenticate
// header string to set.
type Challenge struct {
	AuthorizeURL    string
	State           string
	PKCEVerifier    string
	WWWAuthenticate string
}

// Authorize runs the gate for a single tool call. headers carries the
// request's HTTP headers (for Bearer Ingest); userID is the MCP-level
// caller identity. Returns either a usable token or a Challenge (never
// both).
func (g *Gate) Authorize(ctx context.Context, headers http.Header, userID string) (*tokeninfo.TokenInfo, *Challenge, error) {
	if userID != "" {
		if _, err := ingest.Ingest(ctx, g.Store, g.Ledger, headers, userID); err != nil {
			return nil, nil, err
		}
	}

	token, err := g.Store.Fetch(ctx, userID)
	if err != nil {
		return nil, nil, errors.NewInternalError("failed to fetch stored token", err)
	}

	if token != nil && token.IsExpired(time.Now()) {
		token, err = g.refresh(ctx, userID, token)
		if err != nil {
			token = nil
		}
	}

	if token != nil {
		return token, nil, nil
	}

	challenge, err := g.buildChallenge(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return nil, challenge, nil
}

func (g *Gate) refresh(ctx context.Context, userID string, token *tokeninfo.TokenInfo) (*tokeninfo.TokenInfo, error) {
	if token.RefreshToken == "" {
		return nil, errors.NewUnauthorizedError("token expired and no refresh token available", nil)
	}

	fresh, err := g.Upstream.RefreshAccessToken(ctx, token.RefreshToken, g.PublicURL)
	if err != nil {
		logger.Warnw("upstream refresh failed, degrading to unauthorized", "user_id", userID, "error", err)
		return nil, err
	}

	if err := g.Store.Persist(ctx, userID, fresh); err != nil {
		return nil, errors.NewInternalError("failed to persist refreshed token", err)
	}
	return fresh, nil
}

func (g *Gate) buildChallenge(ctx context.Context, userID string) (*Challenge, error) {
	authCtx, err := g.Upstream.AuthorizeURL(g.RedirectURI, g.PublicURL)
	if err != nil {
		return nil, err
	}

	g.Sessions.Insert(session.AuthorizationSession{
		UserID:    userID,
		Context:   *authCtx,
		CreatedAt: time.Now(),
	})

	return &Challenge{
		AuthorizeURL: authCtx.AuthorizeURL,
		State:        authCtx.CSRFState,
		PKCEVerifier: authCtx.PKCEVerifier,
		WWWAuthenticate: discovery.WWWAuthenticate(
			g.PublicURL, g.ResourceMetadataURL, []string{defaultScope},
		),
	}, nil
}

// defaultScope is advertised in the WWW-Authenticate challenge's scope
// attribute (SPEC_FULL.md §9: canonical default scope for this deployment).
const defaultScope = "https://www.googleapis.com/auth/calendar.events"
