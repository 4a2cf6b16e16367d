package app

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/copp1723/final-seo-hub-sub007/internal/authctx"
	"github.com/copp1723/final-seo-hub-sub007/internal/connections"
	"github.com/copp1723/final-seo-hub-sub007/internal/csrf"
	"github.com/copp1723/final-seo-hub-sub007/internal/identity"
	apperrors "github.com/copp1723/final-seo-hub-sub007/internal/platform/errors"
	"github.com/copp1723/final-seo-hub-sub007/internal/session"
	"github.com/copp1723/final-seo-hub-sub007/internal/storage/sqlite"
)

// dummyHash equalizes bcrypt work between unknown emails and wrong passwords.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Handler serves the credential-core HTTP surface. All cookie parsing goes
// through the resolver; handlers only see resolved identities.
type Handler struct {
	store       *sqlite.Store
	sessions    *session.Manager
	csrf        *csrf.Service
	connections *connections.Manager
	resolver    *authctx.Resolver
	appURL      string
	secure      bool
}

// NewHandler wires the HTTP surface over its backing services.
func NewHandler(store *sqlite.Store, sessions *session.Manager, csrfService *csrf.Service, conns *connections.Manager, appURL string, secure bool) *Handler {
	return &Handler{
		store:       store,
		sessions:    sessions,
		csrf:        csrfService,
		connections: conns,
		resolver:    authctx.NewResolver(sessions),
		appURL:      appURL,
		secure:      secure,
	}
}

// Routes builds the route table wrapped in identity resolution.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /signin", h.handleSignin)
	mux.HandleFunc("POST /signout", h.requireCSRF(h.handleSignout))
	mux.HandleFunc("GET /me", h.handleMe)
	mux.HandleFunc("GET /connect/{provider}", h.handleConnect)
	mux.HandleFunc("GET /callback/{provider}", h.handleCallback)
	mux.HandleFunc("POST /disconnect/{provider}", h.requireCSRF(h.handleDisconnect))
	mux.HandleFunc("GET /status/{provider}", h.handleStatus)
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return h.resolver.Middleware(mux)
}

// writeError renders a domain error as JSON. Internal messages stay in logs;
// clients only see the code.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		log.Printf("internal error: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(code)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// requireCSRF guards a mutating handler with the double-submit check. The
// caller must be authenticated and echo the canonical token in the header.
func (h *Handler) requireCSRF(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ident, err := authctx.RequireAuthenticated(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		ok, err := h.csrf.Validate(r.Context(), ident.UserID, r.Header.Get(csrf.Header))
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			writeError(w, csrf.ErrForbidden)
			return
		}
		next(w, r)
	}
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type identityResponse struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email,omitempty"`
	Role              string `json:"role"`
	OrganizationID    string `json:"organization_id,omitempty"`
	SubOrganizationID string `json:"dealership_id,omitempty"`
	DisplayName       string `json:"display_name,omitempty"`
}

// handleSignin verifies credentials and issues a fresh session. Signing in
// from an already-signed-in browser simply overwrites the cookie with a new
// fixed-TTL session.
func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeUnauthenticated, "malformed sign-in request"))
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	hash := dummyHash
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	// Unknown email and wrong password take the same bcrypt path.
	if bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil || user == nil {
		writeError(w, apperrors.New(apperrors.CodeUnauthenticated, "invalid credentials"))
		return
	}

	role, ok := identity.ParseRole(user.Role)
	if !ok {
		writeError(w, apperrors.New(apperrors.CodeIdentityInvalidRole, "stored user role is invalid"))
		return
	}
	ident := identity.Identity{
		UserID:            user.ID,
		Email:             user.Email,
		Role:              role,
		OrganizationID:    user.OrganizationID,
		SubOrganizationID: user.SubOrganizationID,
		DisplayName:       user.DisplayName,
	}
	token, _, err := h.sessions.Issue(ident)
	if err != nil {
		writeError(w, err)
		return
	}
	csrfToken, err := h.csrf.GetOrCreate(r.Context(), ident.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	session.WriteCookie(w, token, h.secure)
	w.Header().Set(csrf.Header, csrfToken)
	writeJSON(w, http.StatusOK, identityResponse{
		UserID:            ident.UserID,
		Email:             ident.Email,
		Role:              string(ident.Role),
		OrganizationID:    ident.OrganizationID,
		SubOrganizationID: ident.SubOrganizationID,
		DisplayName:       ident.DisplayName,
	})
}

// handleSignout revokes the current session and clears the cookie.
func (h *Handler) handleSignout(w http.ResponseWriter, r *http.Request) {
	if token, ok := session.ReadCookie(r); ok {
		if err := h.sessions.Revoke(r.Context(), token); err != nil {
			writeError(w, err)
			return
		}
	}
	session.ClearCookie(w, h.secure)
	w.WriteHeader(http.StatusNoContent)
}

// handleMe echoes the resolved identity and hands out the CSRF token.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ident, err := authctx.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	csrfToken, err := h.csrf.GetOrCreate(r.Context(), ident.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(csrf.Header, csrfToken)
	writeJSON(w, http.StatusOK, identityResponse{
		UserID:            ident.UserID,
		Email:             ident.Email,
		Role:              string(ident.Role),
		OrganizationID:    ident.OrganizationID,
		SubOrganizationID: ident.SubOrganizationID,
		DisplayName:       ident.DisplayName,
	})
}

// pathProvider parses the {provider} path segment.
func pathProvider(r *http.Request) (connections.Provider, error) {
	provider, ok := connections.ParseProvider(r.PathValue("provider"))
	if !ok {
		return "", apperrors.New(apperrors.CodeProviderUnknown, "unknown provider")
	}
	return provider, nil
}

// connectionOwner resolves the dealership a caller is acting for. Members act
// only for their own dealership; agency and super admins may name any
// dealership via the query parameter.
func connectionOwner(ident identity.Identity, requested string) (string, error) {
	own := ident.SubOrganizationID
	if own == "" {
		own = ident.OrganizationID
	}
	requested = strings.TrimSpace(requested)
	if requested == "" || requested == own {
		if own == "" {
			return "", apperrors.New(apperrors.CodeForbiddenRole, "caller has no dealership to act for")
		}
		return own, nil
	}
	if err := authctx.RequireRole(ident, identity.RoleAgencyAdmin); err != nil {
		return "", err
	}
	return requested, nil
}

// handleConnect starts the provider authorization flow and redirects the
// browser to the provider.
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	ident, err := authctx.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	provider, err := pathProvider(r)
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := connectionOwner(ident, r.URL.Query().Get("dealership"))
	if err != nil {
		writeError(w, err)
		return
	}
	redirect, err := h.connections.Initiate(r.Context(), provider, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// handleCallback finishes the provider authorization flow and sends the
// browser back to the app. Failures redirect with a generic error flag so
// provider internals never leak into the query string.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ident, err := authctx.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	provider, err := pathProvider(r)
	if err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	if query.Get("error") != "" || query.Get("code") == "" {
		h.redirectToApp(w, r, url.Values{"connect_error": {"1"}})
		return
	}

	_, err = h.connections.Complete(r.Context(), provider, query.Get("state"), query.Get("code"),
		func(ownerID string) error {
			_, err := connectionOwner(ident, ownerID)
			return err
		})
	if err != nil {
		log.Printf("oauth callback for %s failed: %v", provider, err)
		h.redirectToApp(w, r, url.Values{"connect_error": {"1"}})
		return
	}
	h.redirectToApp(w, r, url.Values{"connected": {string(provider)}})
}

func (h *Handler) redirectToApp(w http.ResponseWriter, r *http.Request, params url.Values) {
	target := h.appURL
	if target == "" {
		target = "/"
	}
	if encoded := params.Encode(); encoded != "" {
		if strings.Contains(target, "?") {
			target += "&" + encoded
		} else {
			target += "?" + encoded
		}
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleDisconnect removes a stored connection after the owner check.
func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	ident, err := authctx.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	provider, err := pathProvider(r)
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := connectionOwner(ident, r.URL.Query().Get("dealership"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.connections.Disconnect(r.Context(), provider, owner); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus reports connection presence without any token material.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ident, err := authctx.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	provider, err := pathProvider(r)
	if err != nil {
		writeError(w, err)
		return
	}
	owner, err := connectionOwner(ident, r.URL.Query().Get("dealership"))
	if err != nil {
		writeError(w, err)
		return
	}
	connected, _, err := h.connections.Status(r.Context(), provider, owner)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": connected})
}
