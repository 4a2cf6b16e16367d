package vault

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/copp1723/final-seo-hub-sub007/internal/platform/config"
)

// vaultEnv holds raw env values before post-parse validation.
type vaultEnv struct {
	Keys      []string `env:"SEO_HUB_VAULT_KEYS" envSeparator:","`
	ActiveKey string   `env:"SEO_HUB_VAULT_ACTIVE_KEY"`
}

// LoadKeyringFromEnv reads the vault keyring configuration.
//
// SEO_HUB_VAULT_KEYS is a comma-separated list of version:hexkey pairs, e.g.
// "v1:4f2d...,v2:9a1c...". SEO_HUB_VAULT_ACTIVE_KEY names the version used for
// new ciphertext; older versions stay available for decryption only.
func LoadKeyringFromEnv() (*Keyring, error) {
	var raw vaultEnv
	if err := config.ParseEnv(&raw); err != nil {
		return nil, fmt.Errorf("parse vault env: %w", err)
	}

	keys := make(map[string][]byte)
	for _, entry := range raw.Keys {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		version, hexKey, found := strings.Cut(entry, ":")
		version = strings.TrimSpace(version)
		if !found || version == "" {
			return nil, fmt.Errorf("vault key entry %q must be version:hexkey", entry)
		}
		key, err := hex.DecodeString(strings.TrimSpace(hexKey))
		if err != nil {
			return nil, fmt.Errorf("decode vault key %s: %w", version, err)
		}
		keys[version] = key
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("SEO_HUB_VAULT_KEYS is required")
	}
	if strings.TrimSpace(raw.ActiveKey) == "" {
		return nil, fmt.Errorf("SEO_HUB_VAULT_ACTIVE_KEY is required")
	}
	return NewKeyring(keys, raw.ActiveKey)
}
