package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/copp1723/final-seo-hub-sub007/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "core.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestUserRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	u := storage.User{
		ID:             "u1",
		Email:          "Dealer@Example.Test",
		PasswordHash:   "hash",
		Role:           "member",
		OrganizationID: "org1",
		DisplayName:    "Dealer One",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.PutUser(ctx, u); err != nil {
		t.Fatalf("put user: %v", err)
	}

	got, err := store.GetUserByEmail(ctx, " dealer@example.test ")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil {
		t.Fatal("expected user by normalized email")
	}
	if got.Email != "dealer@example.test" {
		t.Fatalf("expected lowercased email, got %q", got.Email)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created at mismatch: %v != %v", got.CreatedAt, now)
	}

	byID, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID == nil || byID.DisplayName != "Dealer One" {
		t.Fatalf("unexpected user %+v", byID)
	}

	missing, err := store.GetUser(ctx, "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatal("expected nil for missing user")
	}
}

func TestOAuthConnectionUpsertIsUniquePerProviderOwner(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	conn := storage.OAuthConnection{
		ID:                    "c1",
		Provider:              "ga4",
		OwnerID:               "dealer-1",
		EncryptedAccessToken:  "enc-a1",
		AccessKeyVersion:      "v1",
		EncryptedRefreshToken: "enc-r1",
		RefreshKeyVersion:     "v1",
		AccessTokenExpiresAt:  now.Add(time.Hour),
		Scope:                 "analytics.readonly",
		ProviderAccountID:     "acct-1",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := store.UpsertOAuthConnection(ctx, conn); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	conn.EncryptedAccessToken = "enc-a2"
	conn.UpdatedAt = now.Add(time.Minute)
	if err := store.UpsertOAuthConnection(ctx, conn); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := store.GetOAuthConnection(ctx, "ga4", "dealer-1")
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	if got == nil {
		t.Fatal("expected connection")
	}
	if got.EncryptedAccessToken != "enc-a2" {
		t.Fatalf("expected updated token, got %q", got.EncryptedAccessToken)
	}

	var count int
	if err := store.DB().QueryRow(
		`SELECT COUNT(*) FROM oauth_connections WHERE provider = 'ga4' AND owner_id = 'dealer-1'`,
	).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row, got %d", count)
	}
}

func TestUpdateOAuthConnectionTokens(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	conn := storage.OAuthConnection{
		ID: "c1", Provider: "search-console", OwnerID: "dealer-2",
		EncryptedAccessToken: "old-a", AccessKeyVersion: "v1",
		EncryptedRefreshToken: "old-r", RefreshKeyVersion: "v1",
		AccessTokenExpiresAt: now, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.UpsertOAuthConnection(ctx, conn); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	conn.EncryptedAccessToken = "new-a"
	conn.AccessKeyVersion = "v2"
	conn.EncryptedRefreshToken = "new-r"
	conn.RefreshKeyVersion = "v2"
	conn.AccessTokenExpiresAt = now.Add(time.Hour)
	conn.UpdatedAt = now.Add(time.Minute)
	if err := store.UpdateOAuthConnectionTokens(ctx, conn); err != nil {
		t.Fatalf("update tokens: %v", err)
	}

	got, err := store.GetOAuthConnection(ctx, "search-console", "dealer-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EncryptedAccessToken != "new-a" || got.AccessKeyVersion != "v2" {
		t.Fatalf("unexpected access token state %+v", got)
	}
	if !got.AccessTokenExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expiry not updated: %v", got.AccessTokenExpiresAt)
	}
}

func TestDeleteOAuthConnection(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	conn := storage.OAuthConnection{
		ID: "c1", Provider: "ga4", OwnerID: "dealer-3",
		EncryptedAccessToken: "a", AccessKeyVersion: "v1",
		EncryptedRefreshToken: "r", RefreshKeyVersion: "v1",
		AccessTokenExpiresAt: now, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.UpsertOAuthConnection(ctx, conn); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.DeleteOAuthConnection(ctx, "ga4", "dealer-3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := store.GetOAuthConnection(ctx, "ga4", "dealer-3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatal("expected connection to be gone")
	}
}

func TestTakeOAuthStateConsumesRow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	state := storage.OAuthState{
		State: "abc123", Provider: "ga4", OwnerID: "dealer-1",
		CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}
	if err := store.CreateOAuthState(ctx, state); err != nil {
		t.Fatalf("create state: %v", err)
	}

	taken, err := store.TakeOAuthState(ctx, "abc123")
	if err != nil {
		t.Fatalf("take state: %v", err)
	}
	if taken == nil || taken.OwnerID != "dealer-1" {
		t.Fatalf("unexpected state %+v", taken)
	}

	again, err := store.TakeOAuthState(ctx, "abc123")
	if err != nil {
		t.Fatalf("take again: %v", err)
	}
	if again != nil {
		t.Fatal("expected state to be consumed")
	}
}

func TestCSRFTokenLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := store.InsertCSRFTokenIfAbsent(ctx, storage.CSRFToken{UserID: "u1", Secret: "first", CreatedAt: now}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// A concurrent second insert must not overwrite the winner.
	if err := store.InsertCSRFTokenIfAbsent(ctx, storage.CSRFToken{UserID: "u1", Secret: "second", CreatedAt: now}); err != nil {
		t.Fatalf("insert if absent: %v", err)
	}

	got, err := store.GetCSRFToken(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Secret != "first" {
		t.Fatalf("expected first secret to win, got %+v", got)
	}

	if err := store.ReplaceCSRFToken(ctx, storage.CSRFToken{UserID: "u1", Secret: "rotated", CreatedAt: now}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err = store.GetCSRFToken(ctx, "u1")
	if err != nil {
		t.Fatalf("get after rotate: %v", err)
	}
	if got.Secret != "rotated" {
		t.Fatalf("expected rotated secret, got %q", got.Secret)
	}
}

func TestRevokedSessions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.RevokeSession(ctx, "jti-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := store.IsSessionRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("check revoked: %v", err)
	}
	if !revoked {
		t.Fatal("expected session to be revoked")
	}
	other, err := store.IsSessionRevoked(ctx, "jti-2")
	if err != nil {
		t.Fatalf("check other: %v", err)
	}
	if other {
		t.Fatal("expected other session not revoked")
	}
}

func TestCleanupExpired(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	expired := storage.OAuthState{State: "old", Provider: "ga4", OwnerID: "d1", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute)}
	live := storage.OAuthState{State: "new", Provider: "ga4", OwnerID: "d1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := store.CreateOAuthState(ctx, expired); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	if err := store.CreateOAuthState(ctx, live); err != nil {
		t.Fatalf("create live: %v", err)
	}
	if err := store.RevokeSession(ctx, "stale", now.Add(-time.Minute)); err != nil {
		t.Fatalf("revoke stale: %v", err)
	}

	store.CleanupExpired(now)

	gone, err := store.TakeOAuthState(ctx, "old")
	if err != nil {
		t.Fatalf("take old: %v", err)
	}
	if gone != nil {
		t.Fatal("expected expired state removed")
	}
	kept, err := store.TakeOAuthState(ctx, "new")
	if err != nil {
		t.Fatalf("take new: %v", err)
	}
	if kept == nil {
		t.Fatal("expected live state kept")
	}
	revoked, err := store.IsSessionRevoked(ctx, "stale")
	if err != nil {
		t.Fatalf("check stale: %v", err)
	}
	if revoked {
		t.Fatal("expected stale deny-list row swept")
	}
}
