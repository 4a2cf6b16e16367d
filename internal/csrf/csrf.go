// Package csrf implements per-user anti-forgery tokens with the double-submit
// pattern: the server holds the canonical value, the client echoes it back on
// mutating requests through a header a cross-site page cannot read.
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/copp1723/final-seo-hub-sub007/internal/platform/errors"
	"github.com/copp1723/final-seo-hub-sub007/internal/storage"
)

// Header carries the token in both directions.
const Header = "X-CSRF-Token"

// ErrForbidden reports a missing or mismatched token on a mutating request.
var ErrForbidden = apperrors.New(apperrors.CodeForbiddenCSRF, "csrf token is missing or invalid")

const secretBytes = 32

// TokenStore persists the canonical per-user token.
type TokenStore interface {
	GetCSRFToken(ctx context.Context, userID string) (*storage.CSRFToken, error)
	InsertCSRFTokenIfAbsent(ctx context.Context, token storage.CSRFToken) error
	ReplaceCSRFToken(ctx context.Context, token storage.CSRFToken) error
}

// Service issues and validates anti-forgery tokens.
type Service struct {
	store TokenStore
	clock func() time.Time
}

// NewService builds a CSRF token service over a token store.
func NewService(store TokenStore) *Service {
	return &Service{store: store, clock: time.Now}
}

// GetOrCreate returns the user's canonical token, lazily creating one on the
// first request that needs protection. The token stays stable until rotated so
// concurrent tabs keep working.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (string, error) {
	existing, err := s.store.GetCSRFToken(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load csrf token: %w", err)
	}
	if existing != nil {
		return existing.Secret, nil
	}

	secret, err := newSecret()
	if err != nil {
		return "", err
	}
	if err := s.store.InsertCSRFTokenIfAbsent(ctx, storage.CSRFToken{
		UserID:    userID,
		Secret:    secret,
		CreatedAt: s.clock().UTC(),
	}); err != nil {
		return "", fmt.Errorf("store csrf token: %w", err)
	}

	// A concurrent request may have won the insert; the stored row is canonical.
	stored, err := s.store.GetCSRFToken(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("reload csrf token: %w", err)
	}
	if stored == nil {
		return "", fmt.Errorf("csrf token missing after insert")
	}
	return stored.Secret, nil
}

// Validate compares a supplied token against the canonical value in constant
// time. Wrong-length and wrong-content inputs are indistinguishable by timing
// because both sides are hashed to fixed width before comparison.
func (s *Service) Validate(ctx context.Context, userID, supplied string) (bool, error) {
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return false, nil
	}
	stored, err := s.store.GetCSRFToken(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load csrf token: %w", err)
	}
	if stored == nil {
		return false, nil
	}
	expected := sha256.Sum256([]byte(stored.Secret))
	got := sha256.Sum256([]byte(supplied))
	return subtle.ConstantTimeCompare(expected[:], got[:]) == 1, nil
}

// Rotate replaces the user's token on demand and returns the new value.
func (s *Service) Rotate(ctx context.Context, userID string) (string, error) {
	secret, err := newSecret()
	if err != nil {
		return "", err
	}
	if err := s.store.ReplaceCSRFToken(ctx, storage.CSRFToken{
		UserID:    userID,
		Secret:    secret,
		CreatedAt: s.clock().UTC(),
	}); err != nil {
		return "", fmt.Errorf("rotate csrf token: %w", err)
	}
	return secret, nil
}

func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
