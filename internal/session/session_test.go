package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/copp1723/final-seo-hub-sub007/internal/identity"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testIdentity() identity.Identity {
	return identity.Identity{
		UserID:            "u1",
		Email:             "dealer@example.test",
		Role:              identity.RoleAgencyAdmin,
		OrganizationID:    "org1",
		SubOrganizationID: "dealer-1",
		DisplayName:       "Dealer Admin",
	}
}

func testManager(t *testing.T, clock func() time.Time, denyList DenyList) *Manager {
	t.Helper()
	mgr, err := NewManager(Config{
		Secret: testSecret,
		Issuer: "seo-hub-test",
		TTL:    time.Hour,
		Now:    clock,
	}, denyList)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return mgr
}

// memoryDenyList is an in-memory DenyList for tests.
type memoryDenyList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (m *memoryDenyList) RevokeSession(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = make(map[string]time.Time)
	}
	m.revoked[jti] = expiresAt
	return nil
}

func (m *memoryDenyList) IsSessionRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	mgr := testManager(t, nil, nil)
	want := testIdentity()

	token, expiresAt, err := mgr.Issue(want)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	got, err := mgr.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != want {
		t.Fatalf("identity mismatch: %+v != %+v", got, want)
	}
}

func TestIssueRejectsInvalidIdentity(t *testing.T) {
	mgr := testManager(t, nil, nil)
	if _, _, err := mgr.Issue(identity.Identity{Role: identity.RoleMember}); err == nil {
		t.Fatal("expected error for identity without user id")
	}
	if _, _, err := mgr.Issue(identity.Identity{UserID: "u1", Role: "owner"}); err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestVerifyFailuresCollapseToUnauthenticated(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	mgr := testManager(t, clock, nil)

	valid, _, err := mgr.Issue(testIdentity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	otherMgr := testManager(t, clock, nil)
	otherSecret, err := NewManager(Config{
		Secret: []byte("ffffffffffffffffffffffffffffffff"),
		TTL:    time.Hour,
		Now:    clock,
	}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	wrongKey, _, err := otherSecret.Issue(testIdentity())
	if err != nil {
		t.Fatalf("issue with other secret: %v", err)
	}

	// A token with a valid signature but no exp claim must also be rejected.
	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"})
	noExpirySigned, err := noExpiry.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign no-expiry token: %v", err)
	}

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"truncated":      valid[:len(valid)/2],
		"tampered":       valid + "x",
		"wrong key":      wrongKey,
		"missing expiry": noExpirySigned,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := otherMgr.Verify(context.Background(), token)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	mgr := testManager(t, clock, nil)

	token, _, err := mgr.Issue(testIdentity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Still valid just before expiry.
	now = now.Add(time.Hour - time.Second)
	if _, err := mgr.Verify(context.Background(), token); err != nil {
		t.Fatalf("verify before expiry: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := mgr.Verify(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after expiry, got %v", err)
	}
}

func TestVerifyRejectsUnsignedAlgorithm(t *testing.T) {
	mgr := testManager(t, nil, nil)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := mgr.Verify(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for alg=none, got %v", err)
	}
}

func TestRevokeWithDenyList(t *testing.T) {
	denyList := &memoryDenyList{}
	mgr := testManager(t, nil, denyList)

	token, _, err := mgr.Issue(testIdentity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := mgr.Verify(context.Background(), token); err != nil {
		t.Fatalf("verify before revoke: %v", err)
	}

	if err := mgr.Revoke(context.Background(), token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := mgr.Verify(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated after revoke, got %v", err)
	}

	// Revoking one session leaves others intact.
	other, _, err := mgr.Issue(testIdentity())
	if err != nil {
		t.Fatalf("issue other: %v", err)
	}
	if _, err := mgr.Verify(context.Background(), other); err != nil {
		t.Fatalf("verify other session: %v", err)
	}
}

func TestRevokeWithoutDenyListIsNoop(t *testing.T) {
	mgr := testManager(t, nil, nil)
	token, _, err := mgr.Issue(testIdentity())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := mgr.Revoke(context.Background(), token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	// Stateless token remains valid until expiry; only the cookie is cleared.
	if _, err := mgr.Verify(context.Background(), token); err != nil {
		t.Fatalf("verify after best-effort revoke: %v", err)
	}
}

func TestRevokeIgnoresGarbageTokens(t *testing.T) {
	mgr := testManager(t, nil, &memoryDenyList{})
	if err := mgr.Revoke(context.Background(), "garbage"); err != nil {
		t.Fatalf("revoke garbage: %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{Secret: []byte("short"), TTL: time.Hour}, nil); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewManager(Config{Secret: testSecret}, nil); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestCookieRoundTrip(t *testing.T) {
	w := httptest.NewRecorder()
	WriteCookie(w, "token-value", true)

	resp := w.Result()
	cookies := resp.Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	cookie := cookies[0]
	if cookie.Name != CookieName || cookie.Value != "token-value" {
		t.Fatalf("unexpected cookie %+v", cookie)
	}
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	value, ok := ReadCookie(req)
	if !ok || value != "token-value" {
		t.Fatalf("expected cookie round trip, got %q %v", value, ok)
	}
}

func TestClearCookie(t *testing.T) {
	w := httptest.NewRecorder()
	ClearCookie(w, false)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge >= 0 || cookies[0].Value != "" {
		t.Fatalf("expected expired empty cookie, got %+v", cookies[0])
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SEO_HUB_SESSION_SECRET", strings.Repeat("ab", 32))
	t.Setenv("SEO_HUB_SESSION_TTL", "24h")
	t.Setenv("SEO_HUB_SESSION_DENYLIST", "true")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.TTL != 24*time.Hour {
		t.Fatalf("expected 24h ttl, got %v", cfg.TTL)
	}
	if !cfg.UseDenyList {
		t.Fatal("expected deny list enabled")
	}
	if len(cfg.Secret) != 32 {
		t.Fatalf("expected 32-byte secret, got %d", len(cfg.Secret))
	}
}

func TestLoadConfigFromEnvRejectsWeakSecret(t *testing.T) {
	t.Setenv("SEO_HUB_SESSION_SECRET", "abcd")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected error for short secret")
	}

	t.Setenv("SEO_HUB_SESSION_SECRET", "not-hex")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected error for non-hex secret")
	}
}
