// Package authctx resolves the authenticated caller for incoming requests and
// carries it through the request context.
package authctx

import (
	"context"
	"net/http"

	"github.com/copp1723/final-seo-hub-sub007/internal/identity"
	apperrors "github.com/copp1723/final-seo-hub-sub007/internal/platform/errors"
	"github.com/copp1723/final-seo-hub-sub007/internal/session"
)

type contextKey struct{}

// WithIdentity attaches a resolved identity to the context.
func WithIdentity(ctx context.Context, ident identity.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, ident)
}

// IdentityFrom returns the identity attached to the context, if any.
func IdentityFrom(ctx context.Context) (identity.Identity, bool) {
	ident, ok := ctx.Value(contextKey{}).(identity.Identity)
	return ident, ok
}

// Resolver is the single place request cookies are turned into identities.
// Handlers never parse the session cookie themselves.
type Resolver struct {
	sessions *session.Manager
}

// NewResolver builds a resolver over a session manager.
func NewResolver(sessions *session.Manager) *Resolver {
	return &Resolver{sessions: sessions}
}

// Resolve extracts and verifies the session cookie from a request. A missing
// cookie and an invalid token both report UNAUTHENTICATED.
func (r *Resolver) Resolve(req *http.Request) (identity.Identity, error) {
	token, ok := session.ReadCookie(req)
	if !ok {
		return identity.Identity{}, session.ErrUnauthenticated
	}
	return r.sessions.Verify(req.Context(), token)
}

// Middleware resolves the caller when a session cookie is present and attaches
// the identity to the request context. Requests without a valid session pass
// through unauthenticated; route handlers decide whether that is acceptable.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ident, err := r.Resolve(req)
		if err == nil {
			req = req.WithContext(WithIdentity(req.Context(), ident))
		}
		next.ServeHTTP(w, req)
	})
}

// RequireAuthenticated returns the caller's identity from the context or
// UNAUTHENTICATED when the request carried no valid session.
func RequireAuthenticated(ctx context.Context) (identity.Identity, error) {
	ident, ok := IdentityFrom(ctx)
	if !ok {
		return identity.Identity{}, session.ErrUnauthenticated
	}
	return ident, nil
}

// roleRank orders roles for minimum-role checks.
func roleRank(role identity.Role) int {
	switch role {
	case identity.RoleSuperAdmin:
		return 3
	case identity.RoleAgencyAdmin:
		return 2
	case identity.RoleMember:
		return 1
	default:
		return 0
	}
}

// RequireRole checks that an identity holds at least the given role.
// An insufficient role reports FORBIDDEN_ROLE.
func RequireRole(ident identity.Identity, minimum identity.Role) error {
	if roleRank(ident.Role) < roleRank(minimum) {
		return apperrors.WithMetadata(
			apperrors.CodeForbiddenRole,
			"caller role is insufficient",
			map[string]string{
				"Role":     string(ident.Role),
				"Required": string(minimum),
			},
		)
	}
	return nil
}
