// Package authserver implements the downstream OAuth 2.1 Authorization
// Server (the "proxy"): dynamic client registration, authorize/callback/token
// endpoints, and the state machine tracking a client through a downstream
// authorization. Grounded on original_source/src/proxy/mod.rs
// (ProxyState/RegisteredClient/AuthorizationRequest/AuthorizationCodeGrant)
// as the structural template, enriched to the richer metadata-document-aware
// variant per SPEC_FULL.md §9. Exported-type and doc-comment conventions
// follow pkg/authserver/authserver.go / client.go in the broader retrieval
// pack, though that package's fosite-based implementation is not reused.
package authserver

import "time"

// RegisteredClient is the record created by Dynamic Client Registration.
type RegisteredClient struct {
	ClientID                string
	ClientSecret            string
	RedirectURIs            []string
	TokenEndpointAuthMethod string
	ClientIDIssuedAt        int64
}

// AuthorizationRequest is the state remembered between Authorize and
// Callback, keyed by the bridge's own proxy state.
type AuthorizationRequest struct {
	ClientID            string
	RedirectURI         string
	OriginalState       string
	CodeChallenge       string
	CodeChallengeMethod string
	Scope               string
	Resource            string
	CreatedAt           time.Time
}

// AuthorizationCodeGrant is the state remembered between Callback and Token,
// keyed by the bridge-minted proxy code. GoogleCode is Google's own
// authorization code, exchanged only once the client completes Token.
type AuthorizationCodeGrant struct {
	ClientID    string
	RedirectURI string
	GoogleCode  string
	Resource    string
	CreatedAt   time.Time
}

// codeTTL is the single-consumption window for a minted proxy code
// (spec.md §4.6 state machine: code_issued -> expired after 300s).
const codeTTL = 300 * time.Second

// pendingTTL bounds how long an authorize_pending entry survives without a
// matching callback, swept opportunistically like the Session Registry.
const pendingTTL = 10 * time.Minute
