package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/copp1723/final-seo-hub-sub007/internal/storage"
)

// GetCSRFToken returns the stored CSRF token for a user, or nil when absent.
func (s *Store) GetCSRFToken(ctx context.Context, userID string) (*storage.CSRFToken, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var token storage.CSRFToken
	var createdAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT user_id, secret, created_at FROM csrf_tokens WHERE user_id = ?`,
		userID,
	).Scan(&token.UserID, &token.Secret, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	token.CreatedAt = fromMillis(createdAt)
	return &token, nil
}

// InsertCSRFTokenIfAbsent stores a token only when the user has none yet.
// Concurrent first requests keep the row that landed first.
func (s *Store) InsertCSRFTokenIfAbsent(ctx context.Context, token storage.CSRFToken) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO csrf_tokens (user_id, secret, created_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		token.UserID, token.Secret, toMillis(token.CreatedAt),
	)
	return err
}

// ReplaceCSRFToken rotates the stored token unconditionally.
func (s *Store) ReplaceCSRFToken(ctx context.Context, token storage.CSRFToken) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO csrf_tokens (user_id, secret, created_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			secret = excluded.secret,
			created_at = excluded.created_at`,
		token.UserID, token.Secret, toMillis(token.CreatedAt),
	)
	return err
}

// RevokeSession records a session id on the deny list until its natural expiry.
func (s *Store) RevokeSession(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO revoked_sessions (jti, expires_at) VALUES (?, ?)
		ON CONFLICT(jti) DO UPDATE SET expires_at = excluded.expires_at`,
		jti, toMillis(expiresAt),
	)
	return err
}

// IsSessionRevoked reports whether a session id is on the deny list.
func (s *Store) IsSessionRevoked(ctx context.Context, jti string) (bool, error) {
	if err := s.ensureDB(); err != nil {
		return false, err
	}
	var found int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM revoked_sessions WHERE jti = ?`, jti,
	).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
