// Package session issues and verifies self-contained first-party session tokens.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/copp1723/final-seo-hub-sub007/internal/identity"
	apperrors "github.com/copp1723/final-seo-hub-sub007/internal/platform/errors"
	"github.com/copp1723/final-seo-hub-sub007/internal/platform/id"
)

// ErrUnauthenticated is the single externally visible verification failure.
// Malformed tokens, bad signatures and expired sessions all collapse to it so
// callers cannot distinguish why verification failed.
var ErrUnauthenticated = apperrors.New(apperrors.CodeUnauthenticated, "session is invalid")

// DenyList records revoked session ids until their natural expiry. It is the
// optional server-side revocation alternative to purely stateless tokens.
type DenyList interface {
	RevokeSession(ctx context.Context, jti string, expiresAt time.Time) error
	IsSessionRevoked(ctx context.Context, jti string) (bool, error)
}

// Manager issues, verifies and revokes signed session tokens.
//
// Tokens are self-contained HS256 JWTs, so verification is stateless across
// instances. Without a deny list, revocation before natural expiry is
// best-effort: the cookie is cleared client-side but a leaked token stays
// cryptographically valid until it expires. The fixed TTL bounds that window.
type Manager struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	clock    func() time.Time
	denyList DenyList
}

// claims is the internal claims type used for JWT encoding.
type claims struct {
	jwt.RegisteredClaims
	Email             string `json:"email,omitempty"`
	Role              string `json:"role"`
	OrganizationID    string `json:"org_id,omitempty"`
	SubOrganizationID string `json:"sub_org_id,omitempty"`
	DisplayName       string `json:"display_name,omitempty"`
}

// NewManager builds a session manager. denyList may be nil, in which case
// Revoke only invalidates the client-side cookie.
func NewManager(cfg Config, denyList DenyList) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	clock := cfg.Now
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		secret:   cfg.Secret,
		issuer:   cfg.Issuer,
		ttl:      cfg.TTL,
		clock:    clock,
		denyList: denyList,
	}, nil
}

// Issue creates a signed session token carrying an identity snapshot.
// Every sign-in issues a fresh fixed-TTL token; expiry does not slide.
func (m *Manager) Issue(ident identity.Identity) (string, time.Time, error) {
	if err := ident.Validate(); err != nil {
		return "", time.Time{}, err
	}
	jti, err := id.NewID()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate session id: %w", err)
	}

	now := m.clock().UTC()
	expiresAt := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.UserID,
			Issuer:    m.issuer,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:             ident.Email,
		Role:              string(ident.Role),
		OrganizationID:    ident.OrganizationID,
		SubOrganizationID: ident.SubOrganizationID,
		DisplayName:       ident.DisplayName,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify decodes and validates a session token, returning the identity
// snapshot captured at issuance.
func (m *Manager) Verify(ctx context.Context, token string) (identity.Identity, error) {
	parsed, err := m.parse(token)
	if err != nil {
		return identity.Identity{}, ErrUnauthenticated
	}

	if m.denyList != nil && parsed.ID != "" {
		revoked, err := m.denyList.IsSessionRevoked(ctx, parsed.ID)
		if err != nil {
			return identity.Identity{}, fmt.Errorf("check deny list: %w", err)
		}
		if revoked {
			return identity.Identity{}, ErrUnauthenticated
		}
	}

	role, ok := identity.ParseRole(parsed.Role)
	if !ok {
		return identity.Identity{}, ErrUnauthenticated
	}
	return identity.Identity{
		UserID:            parsed.Subject,
		Email:             parsed.Email,
		Role:              role,
		OrganizationID:    parsed.OrganizationID,
		SubOrganizationID: parsed.SubOrganizationID,
		DisplayName:       parsed.DisplayName,
	}, nil
}

// Revoke invalidates a session server-side when a deny list is configured.
// Unparseable tokens are ignored; the caller clears the cookie regardless.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if m.denyList == nil {
		return nil
	}
	parsed, err := m.parse(token)
	if err != nil || parsed.ID == "" || parsed.ExpiresAt == nil {
		return nil
	}
	if err := m.denyList.RevokeSession(ctx, parsed.ID, parsed.ExpiresAt.Time.UTC()); err != nil {
		return fmt.Errorf("record revoked session: %w", err)
	}
	return nil
}

func (m *Manager) parse(token string) (*claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.clock().UTC() }),
	)
	if err != nil {
		return nil, err
	}
	if parsed.Subject == "" {
		return nil, fmt.Errorf("missing subject")
	}
	return &parsed, nil
}
