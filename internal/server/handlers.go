package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kamekamek/googlecalendar-mcp/internal/appstate"
	"github.com/kamekamek/googlecalendar-mcp/pkg/authserver"
	"github.com/kamekamek/googlecalendar-mcp/pkg/discovery"
	apierrors "github.com/kamekamek/googlecalendar-mcp/pkg/errors"
	"github.com/kamekamek/googlecalendar-mcp/pkg/mcptool"
	"github.com/kamekamek/googlecalendar-mcp/pkg/session"
)

type handlers struct {
	state *appstate.AppState
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorize mirrors original_source/src/handlers/mod.rs's authorize handler:
// it builds a fresh AuthorizationContext directly (bypassing the Gate, which
// is reserved for tool-call time), seeds the Session Registry, and returns
// the context as JSON for the caller to drive.
func (h *handlers) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	redirectURI := q.Get("redirect_uri")
	if redirectURI == "" {
		redirectURI = h.state.Config.OAuth.RedirectURI
	}

	authCtx, err := h.state.Upstream.AuthorizeURL(redirectURI, h.state.Config.Server.PublicURL)
	if err != nil {
		writeError(w, err)
		return
	}

	h.state.Sessions.Insert(session.AuthorizationSession{
		UserID:    userID,
		Context:   *authCtx,
		CreatedAt: time.Now(),
	})

	writeJSON(w, http.StatusOK, authCtx)
}

func (h *handlers) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")
	code := q.Get("code")

	sess, ok := h.state.Sessions.Consume(state)
	if !ok {
		writeError(w, apierrors.NewUnauthorizedError("invalid or expired state", nil))
		return
	}

	token, err := h.state.Upstream.ExchangeCode(
		r.Context(), h.state.Config.OAuth.RedirectURI, code, sess.Context.PKCEVerifier, h.state.Config.Server.PublicURL,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.state.TokenStore.Persist(r.Context(), sess.UserID, token); err != nil {
		writeError(w, apierrors.NewInternalError("failed to persist token", err))
		return
	}
	h.state.Ledger.Clear(sess.UserID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "authorized"})
}

// revokeToken implements spec scenario S4: revoking clears the store and
// records the revoked access token in the ledger so it cannot be re-adopted
// via Bearer Ingest.
func (h *handlers) revokeToken(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	token, err := h.state.TokenStore.Revoke(r.Context(), userID)
	if err != nil {
		writeError(w, apierrors.NewInternalError("failed to revoke token", err))
		return
	}
	if token != nil {
		h.state.Ledger.Record(userID, token.AccessToken)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) mcpTool(w http.ResponseWriter, r *http.Request) {
	var req mcptool.ToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, mcptool.Error("malformed tool request: "+err.Error()))
		return
	}

	token, challenge, err := h.state.Gate.Authorize(r.Context(), r.Header, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	if challenge != nil {
		w.Header().Set("WWW-Authenticate", challenge.WWWAuthenticate)
		writeJSON(w, http.StatusUnauthorized, mcptool.ToolResponse{
			Status: mcptool.StatusError,
			Error:  "authorization required",
			Data: map[string]any{
				"authorize_url": challenge.AuthorizeURL,
				"state":         challenge.State,
				"pkce_verifier": challenge.PKCEVerifier,
			},
		})
		return
	}

	data, err := h.dispatchTool(r, req, token.AccessToken)
	if err != nil {
		if apierrors.IsInsufficientScope(err) {
			writeJSON(w, apierrors.Code(err), mcptool.ToolResponse{
				Status: mcptool.StatusError,
				Error:  err.Error(),
				Data:   mcptool.InsufficientScopeData(req.Operation, apierrors.Message(err)),
			})
			return
		}
		writeJSON(w, apierrors.Code(err), mcptool.Error(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, mcptool.Success(data))
}

func (h *handlers) dispatchTool(r *http.Request, req mcptool.ToolRequest, accessToken string) (any, error) {
	ctx := r.Context()
	switch req.Operation {
	case mcptool.OperationList:
		req.Params.CalendarID = firstNonEmpty(req.Params.CalendarID, req.CalendarID)
		return h.state.Calendar.ListEvents(ctx, accessToken, req.Params)
	case mcptool.OperationGet:
		return h.state.Calendar.GetEvent(ctx, accessToken, req.CalendarID, req.EventID)
	case mcptool.OperationCreate:
		req.Payload.CalendarID = firstNonEmpty(req.Payload.CalendarID, req.CalendarID)
		return h.state.Calendar.CreateEvent(ctx, accessToken, req.Payload)
	case mcptool.OperationUpdate:
		req.Payload.CalendarID = firstNonEmpty(req.Payload.CalendarID, req.CalendarID)
		return h.state.Calendar.UpdateEvent(ctx, accessToken, req.EventID, req.Payload)
	default:
		return nil, apierrors.NewInvalidRequestError("unknown operation", nil)
	}
}

func (h *handlers) authorizationServerMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, discovery.AuthorizationServer(h.state.Discovery))
}

func (h *handlers) protectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	rest := chi.URLParam(r, "*")
	writeJSON(w, http.StatusOK, discovery.ProtectedResource(h.state.Discovery, rest))
}

func (h *handlers) openIDConfiguration(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	writeJSON(w, http.StatusOK, discovery.OpenIDConfigurationFor(h.state.Discovery))
}

func (h *handlers) proxyRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RedirectURIs []string `json:"redirect_uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierrors.NewInvalidRequestError("malformed registration request", err))
		return
	}

	client, err := h.state.AuthServer.RegisterClient(body.RedirectURIs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (h *handlers) proxyAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirectURL, err := h.state.AuthServer.Authorize(r.Context(), authserver.AuthorizeParams{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		Scope:               q.Get("scope"),
		Resource:            q.Get("resource"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (h *handlers) proxyCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	redirectURL, err := h.state.AuthServer.Callback(q.Get("state"), q.Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (h *handlers) proxyToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, apierrors.NewInvalidRequestError("malformed token request body", err))
		return
	}

	result, err := h.state.AuthServer.Token(r.Context(), authserver.TokenParams{
		GrantType:    r.FormValue("grant_type"),
		Code:         r.FormValue("code"),
		RedirectURI:  r.FormValue("redirect_uri"),
		ClientID:     r.FormValue("client_id"),
		ClientSecret: r.FormValue("client_secret"),
		CodeVerifier: r.FormValue("code_verifier"),
		Resource:     r.FormValue("resource"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if ct := result.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(result.StatusCode)
	_, _ = w.Write(result.Body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apierrors.Code(err), map[string]string{"error": err.Error()})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
