// Package storage defines the persisted record types shared by the stores.
package storage

import "time"

// User is the backing record an identity snapshot is derived from at sign-in.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Role              string
	OrganizationID    string
	SubOrganizationID string
	DisplayName       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OAuthConnection is the encrypted record of a provider's access grant for an
// owner. At most one row exists per (provider, owner) pair.
type OAuthConnection struct {
	ID                    string
	Provider              string
	OwnerID               string
	EncryptedAccessToken  string
	AccessKeyVersion      string
	EncryptedRefreshToken string
	RefreshKeyVersion     string
	AccessTokenExpiresAt  time.Time
	Scope                 string
	ProviderAccountID     string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// OAuthState is a pending authorization awaiting the provider redirect.
type OAuthState struct {
	State     string
	Provider  string
	OwnerID   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CSRFToken is the canonical per-user anti-forgery secret.
type CSRFToken struct {
	UserID    string
	Secret    string
	CreatedAt time.Time
}
