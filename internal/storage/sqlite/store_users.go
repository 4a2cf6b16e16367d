package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/copp1723/final-seo-hub-sub007/internal/storage"
)

// PutUser persists a user record, replacing any existing row with the same id.
func (s *Store) PutUser(ctx context.Context, u storage.User) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO users
		(id, email, password_hash, role, organization_id, sub_organization_id, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			password_hash = excluded.password_hash,
			role = excluded.role,
			organization_id = excluded.organization_id,
			sub_organization_id = excluded.sub_organization_id,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`,
		u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.PasswordHash, u.Role,
		u.OrganizationID, u.SubOrganizationID, u.DisplayName,
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	return err
}

// GetUser returns a user by id, or nil when missing.
func (s *Store) GetUser(ctx context.Context, userID string) (*storage.User, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	return s.scanUser(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, organization_id, sub_organization_id, display_name, created_at, updated_at
		FROM users WHERE id = ?`, userID))
}

// GetUserByEmail returns a user by email, or nil when missing.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	return s.scanUser(s.sqlDB.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, organization_id, sub_organization_id, display_name, created_at, updated_at
		FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) scanUser(row *sql.Row) (*storage.User, error) {
	var u storage.User
	var createdAt, updatedAt int64
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role,
		&u.OrganizationID, &u.SubOrganizationID, &u.DisplayName,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}
