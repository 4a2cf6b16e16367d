package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"strings"
)

// Keyring stores versioned AES keys and the active key version. It is built
// once at startup and read-only afterwards; rotated-out versions stay in the
// ring only to decrypt pre-rotation ciphertext.
type Keyring struct {
	aeads         map[string]cipher.AEAD
	activeVersion string
}

// NewKeyring constructs a keyring from raw AES keys indexed by version.
// Each key must be a valid AES length (16/24/32 bytes).
func NewKeyring(keys map[string][]byte, activeVersion string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("vault keys are required")
	}
	activeVersion = strings.TrimSpace(activeVersion)
	if activeVersion == "" {
		return nil, fmt.Errorf("active vault key version is required")
	}
	if _, ok := keys[activeVersion]; !ok {
		return nil, fmt.Errorf("active vault key version is not configured")
	}

	aeads := make(map[string]cipher.AEAD, len(keys))
	for version, key := range keys {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("new cipher for key %s: %w", version, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("new gcm for key %s: %w", version, err)
		}
		aeads[version] = aead
	}
	return &Keyring{aeads: aeads, activeVersion: activeVersion}, nil
}

// ActiveVersion returns the version new ciphertext is encrypted under.
func (k *Keyring) ActiveVersion() string {
	if k == nil {
		return ""
	}
	return k.activeVersion
}

// aead returns the AEAD for a key version when present.
func (k *Keyring) aead(version string) (cipher.AEAD, bool) {
	if k == nil {
		return nil, false
	}
	aead, ok := k.aeads[version]
	return aead, ok
}
