// Package discovery builds the RFC 8414, RFC 9728, and OpenID Connect
// discovery documents the bridge advertises at its well-known URLs, plus the
// shared WWW-Authenticate challenge header. Field shapes mirror
// github.com/coreos/go-oidc/v3's oidc.ProviderConfig tags (the bridge plays
// the issuer/AS role here, so only the json-tag shape is borrowed, not the
// relying-party client). Grounded on
// pkg/auth/discovery/{discovery.go,rfc9728.go,www_authenticate.go} and
// original_source/src/handlers/mod.rs's
// authorization_server_metadata/protected_resource_metadata_*/openid_configuration
// handlers.
package discovery

import (
	"fmt"
	"strings"
)

// AuthorizationServerMetadata is the RFC 8414 document.
type AuthorizationServerMetadata struct {
	Issuer                             string   `json:"issuer"`
	AuthorizationEndpoint              string   `json:"authorization_endpoint"`
	TokenEndpoint                      string   `json:"token_endpoint"`
	ResponseTypesSupported             []string `json:"response_types_supported"`
	GrantTypesSupported                []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported      []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported  []string `json:"token_endpoint_auth_methods_supported"`
	RegistrationEndpoint               string   `json:"registration_endpoint,omitempty"`
	ClientIDMetadataDocumentSupported  bool     `json:"client_id_metadata_document_supported,omitempty"`
	ScopesSupported                    []string `json:"scopes_supported,omitempty"`
}

// ProtectedResourceMetadata is the RFC 9728 document.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource"`
	AuthorizationServers   []string `json:"authorization_servers"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
}

// OpenIDConfiguration is the OIDC Discovery document. Field names mirror
// go-oidc's ProviderConfig JSON shape.
type OpenIDConfiguration struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported,omitempty"`
}

// defaultScopes is the canonical scope set advertised in discovery documents
// (SPEC_FULL.md §9: calendar.events chosen as the canonical default).
var defaultScopes = []string{"https://www.googleapis.com/auth/calendar.events"}

// Params describes the deployment-specific values needed to render the
// discovery documents: publicURL is this service's own canonical base URL
// (trailing slash trimmed), proxyEnabled toggles the downstream-AS-specific
// fields.
type Params struct {
	PublicURL    string
	ProxyEnabled bool
}

func (p Params) base() string {
	return strings.TrimRight(p.PublicURL, "/")
}

// AuthorizationServer renders the RFC 8414 document. When proxy is disabled,
// the authorization/token endpoints describe the bridge's own
// /oauth/authorize and /oauth/callback-adjacent non-proxy surface; when
// enabled, they point at the downstream AS's /proxy/oauth/* endpoints and
// registration_endpoint/client_id_metadata_document_supported are populated.
func AuthorizationServer(p Params) AuthorizationServerMetadata {
	base := p.base()
	md := AuthorizationServerMetadata{
		Issuer:                             base,
		ResponseTypesSupported:             []string{"code"},
		GrantTypesSupported:                []string{"authorization_code"},
		CodeChallengeMethodsSupported:      []string{"S256"},
		TokenEndpointAuthMethodsSupported:  []string{"client_secret_post"},
		ScopesSupported:                    defaultScopes,
	}
	if p.ProxyEnabled {
		md.AuthorizationEndpoint = base + "/proxy/oauth/authorize"
		md.TokenEndpoint = base + "/proxy/oauth/token"
		md.RegistrationEndpoint = base + "/proxy/oauth/register"
		md.ClientIDMetadataDocumentSupported = true
	} else {
		md.AuthorizationEndpoint = base + "/oauth/authorize"
		md.TokenEndpoint = base + "/oauth/callback"
	}
	return md
}

// ProtectedResource renders the RFC 9728 document. subPath, if non-empty, is
// appended to the resource identifier (the "[/*rest]" suffix route).
func ProtectedResource(p Params, subPath string) ProtectedResourceMetadata {
	resource := p.base()
	if subPath != "" {
		resource = resource + "/" + strings.TrimLeft(subPath, "/")
	}
	return ProtectedResourceMetadata{
		Resource:               resource,
		AuthorizationServers:   []string{p.base()},
		ScopesSupported:        defaultScopes,
		BearerMethodsSupported: []string{"header"},
	}
}

// OpenIDConfigurationFor renders the OIDC Discovery document.
func OpenIDConfigurationFor(p Params) OpenIDConfiguration {
	base := p.base()
	cfg := OpenIDConfiguration{
		Issuer:                           base,
		JWKSURI:                          base + "/.well-known/jwks.json",
		ResponseTypesSupported:           []string{"code"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		ScopesSupported:                  defaultScopes,
	}
	if p.ProxyEnabled {
		cfg.AuthorizationEndpoint = base + "/proxy/oauth/authorize"
		cfg.TokenEndpoint = base + "/proxy/oauth/token"
	} else {
		cfg.AuthorizationEndpoint = base + "/oauth/authorize"
		cfg.TokenEndpoint = base + "/oauth/callback"
	}
	return cfg
}

// ResourceMetadataURL is the protected-resource metadata document URL
// advertised in a 401's WWW-Authenticate challenge.
func ResourceMetadataURL(publicURL string) string {
	return strings.TrimRight(publicURL, "/") + "/.well-known/oauth-protected-resource"
}

// WWWAuthenticate renders the RFC 6750 / RFC 9728 challenge header for an
// unauthorized tool call.
func WWWAuthenticate(resource, resourceMetadataURL string, scopes []string) string {
	parts := []string{fmt.Sprintf(`resource="%s"`, escapeQuotes(strings.TrimRight(resource, "/")))}
	if resourceMetadataURL != "" {
		parts = append(parts, fmt.Sprintf(`resource_metadata="%s"`, escapeQuotes(resourceMetadataURL)))
	}
	if len(scopes) > 0 {
		parts = append(parts, fmt.Sprintf(`scope="%s"`, escapeQuotes(strings.Join(scopes, " "))))
	}
	return "Bearer " + strings.Join(parts, ", ")
}

func escapeQuotes(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
