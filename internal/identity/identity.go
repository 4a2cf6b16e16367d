// Package identity defines the resolved, authenticated caller representation.
package identity

import (
	"strings"

	apperrors "github.com/copp1723/final-seo-hub-sub007/internal/platform/errors"
)

// Role is the authorization level attached to an identity.
type Role string

const (
	// RoleMember is a regular dealership user.
	RoleMember Role = "member"
	// RoleAgencyAdmin administers every dealership inside one agency.
	RoleAgencyAdmin Role = "agency-admin"
	// RoleSuperAdmin administers the whole hub.
	RoleSuperAdmin Role = "super-admin"
)

// ParseRole validates and normalizes a role string.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.TrimSpace(value)) {
	case RoleMember:
		return RoleMember, true
	case RoleAgencyAdmin:
		return RoleAgencyAdmin, true
	case RoleSuperAdmin:
		return RoleSuperAdmin, true
	default:
		return "", false
	}
}

// Identity is the authenticated representation of a caller. It is captured
// once when a session is issued and stays immutable for the session lifetime.
type Identity struct {
	UserID            string
	Email             string
	Role              Role
	OrganizationID    string
	SubOrganizationID string
	DisplayName       string
}

// Validate checks the invariants a session-issuable identity must satisfy.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.UserID) == "" {
		return apperrors.New(apperrors.CodeIdentityEmptyUserID, "identity user id is required")
	}
	if _, ok := ParseRole(string(i.Role)); !ok {
		return apperrors.WithMetadata(
			apperrors.CodeIdentityInvalidRole,
			"identity role is invalid",
			map[string]string{"Role": string(i.Role)},
		)
	}
	return nil
}
