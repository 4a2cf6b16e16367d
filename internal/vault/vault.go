// Package vault encrypts and decrypts secrets at rest with a versioned keyring.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	apperrors "github.com/copp1723/final-seo-hub-sub007/internal/platform/errors"
)

// Vault seals and opens secrets using AES-GCM under a versioned keyring.
type Vault struct {
	keyring *Keyring
}

// New builds a vault bound to a keyring.
func New(keyring *Keyring) (*Vault, error) {
	if keyring == nil {
		return nil, fmt.Errorf("keyring is required")
	}
	return &Vault{keyring: keyring}, nil
}

// ActiveKeyVersion returns the version new ciphertext is written with.
func (v *Vault) ActiveKeyVersion() string {
	if v == nil {
		return ""
	}
	return v.keyring.ActiveVersion()
}

// Encrypt seals one plaintext value under the active key and returns a
// base64-encoded payload plus the key version it was sealed with.
func (v *Vault) Encrypt(plaintext string) (string, string, error) {
	if v == nil || v.keyring == nil {
		return "", "", fmt.Errorf("vault is not configured")
	}
	version := v.keyring.ActiveVersion()
	aead, ok := v.keyring.aead(version)
	if !ok {
		return "", "", fmt.Errorf("active vault key is missing")
	}

	// AES-GCM requires a unique nonce per encryption under the same key.
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", fmt.Errorf("read nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), nil)
	// Persist as nonce || ciphertext, encoded in raw base64 for storage.
	payload := append(nonce, ciphertext...)
	return base64.RawStdEncoding.EncodeToString(payload), version, nil
}

// Decrypt opens one previously sealed value. A key version that is no longer
// in the keyring, or a payload that fails authentication, reports KEY_MISMATCH;
// callers must treat the secret as unusable and require re-authorization.
func (v *Vault) Decrypt(sealed, keyVersion string) (string, error) {
	if v == nil || v.keyring == nil {
		return "", fmt.Errorf("vault is not configured")
	}
	aead, ok := v.keyring.aead(keyVersion)
	if !ok {
		return "", apperrors.WithMetadata(
			apperrors.CodeKeyMismatch,
			"vault key version is not in the keyring",
			map[string]string{"KeyVersion": keyVersion},
		)
	}

	payload, err := base64.RawStdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}
	nonceSize := aead.NonceSize()
	if len(payload) < nonceSize {
		return "", fmt.Errorf("sealed value is too short")
	}
	// Payload format is nonce || ciphertext.
	nonce := payload[:nonceSize]
	ciphertext := payload[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeKeyMismatch, "sealed value failed authentication", err)
	}
	return string(plaintext), nil
}

// IsKeyMismatch reports whether err means the ciphertext cannot be recovered
// with the current keyring.
func IsKeyMismatch(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeKeyMismatch)
}
