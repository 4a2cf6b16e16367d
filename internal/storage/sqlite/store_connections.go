package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/copp1723/final-seo-hub-sub007/internal/storage"
)

// UpsertOAuthConnection stores a connection, keyed by (provider, owner_id).
// Concurrent authorization callbacks for the same pair resolve last-writer-wins
// without duplicate rows.
func (s *Store) UpsertOAuthConnection(ctx context.Context, conn storage.OAuthConnection) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO oauth_connections
		(id, provider, owner_id, encrypted_access_token, access_key_version,
		 encrypted_refresh_token, refresh_key_version, access_token_expires_at,
		 scope, provider_account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, owner_id) DO UPDATE SET
			encrypted_access_token = excluded.encrypted_access_token,
			access_key_version = excluded.access_key_version,
			encrypted_refresh_token = excluded.encrypted_refresh_token,
			refresh_key_version = excluded.refresh_key_version,
			access_token_expires_at = excluded.access_token_expires_at,
			scope = excluded.scope,
			provider_account_id = excluded.provider_account_id,
			updated_at = excluded.updated_at`,
		conn.ID, conn.Provider, conn.OwnerID,
		conn.EncryptedAccessToken, conn.AccessKeyVersion,
		conn.EncryptedRefreshToken, conn.RefreshKeyVersion,
		toMillis(conn.AccessTokenExpiresAt), conn.Scope, conn.ProviderAccountID,
		toMillis(conn.CreatedAt), toMillis(conn.UpdatedAt),
	)
	return err
}

// GetOAuthConnection returns the connection for (provider, owner), or nil.
func (s *Store) GetOAuthConnection(ctx context.Context, provider, ownerID string) (*storage.OAuthConnection, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var conn storage.OAuthConnection
	var expiresAt, createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, provider, owner_id, encrypted_access_token, access_key_version,
			encrypted_refresh_token, refresh_key_version, access_token_expires_at,
			scope, provider_account_id, created_at, updated_at
		FROM oauth_connections WHERE provider = ? AND owner_id = ?`,
		provider, ownerID,
	).Scan(
		&conn.ID, &conn.Provider, &conn.OwnerID,
		&conn.EncryptedAccessToken, &conn.AccessKeyVersion,
		&conn.EncryptedRefreshToken, &conn.RefreshKeyVersion,
		&expiresAt, &conn.Scope, &conn.ProviderAccountID, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	conn.AccessTokenExpiresAt = fromMillis(expiresAt)
	conn.CreatedAt = fromMillis(createdAt)
	conn.UpdatedAt = fromMillis(updatedAt)
	return &conn, nil
}

// UpdateOAuthConnectionTokens replaces the token material for an existing
// connection in place after a refresh or a re-encryption.
func (s *Store) UpdateOAuthConnectionTokens(ctx context.Context, conn storage.OAuthConnection) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`UPDATE oauth_connections SET
			encrypted_access_token = ?,
			access_key_version = ?,
			encrypted_refresh_token = ?,
			refresh_key_version = ?,
			access_token_expires_at = ?,
			updated_at = ?
		WHERE provider = ? AND owner_id = ?`,
		conn.EncryptedAccessToken, conn.AccessKeyVersion,
		conn.EncryptedRefreshToken, conn.RefreshKeyVersion,
		toMillis(conn.AccessTokenExpiresAt), toMillis(conn.UpdatedAt),
		conn.Provider, conn.OwnerID,
	)
	return err
}

// DeleteOAuthConnection removes the connection for (provider, owner).
func (s *Store) DeleteOAuthConnection(ctx context.Context, provider, ownerID string) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM oauth_connections WHERE provider = ? AND owner_id = ?`,
		provider, ownerID,
	)
	return err
}

// CreateOAuthState stores a pending authorization state.
func (s *Store) CreateOAuthState(ctx context.Context, state storage.OAuthState) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO oauth_states (state, provider, owner_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		state.State, state.Provider, state.OwnerID,
		toMillis(state.CreatedAt), toMillis(state.ExpiresAt),
	)
	return err
}

// TakeOAuthState retrieves and deletes a pending authorization state in one
// step so each state value completes at most one callback.
func (s *Store) TakeOAuthState(ctx context.Context, stateValue string) (*storage.OAuthState, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var state storage.OAuthState
	var createdAt, expiresAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`DELETE FROM oauth_states WHERE state = ?
		RETURNING state, provider, owner_id, created_at, expires_at`,
		stateValue,
	).Scan(&state.State, &state.Provider, &state.OwnerID, &createdAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	state.CreatedAt = fromMillis(createdAt)
	state.ExpiresAt = fromMillis(expiresAt)
	return &state, nil
}

// CleanupExpired deletes expired transient rows.
func (s *Store) CleanupExpired(now time.Time) {
	if s == nil || s.sqlDB == nil {
		return
	}
	millis := toMillis(now)
	_, _ = s.sqlDB.Exec(`DELETE FROM oauth_states WHERE expires_at <= ?`, millis)
	_, _ = s.sqlDB.Exec(`DELETE FROM revoked_sessions WHERE expires_at <= ?`, millis)
}
