package session

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/copp1723/final-seo-hub-sub007/internal/platform/config"
)

// sessionEnv holds raw env values before post-parse validation.
type sessionEnv struct {
	Secret      string        `env:"SEO_HUB_SESSION_SECRET"`
	Issuer      string        `env:"SEO_HUB_SESSION_ISSUER"   envDefault:"seo-hub"`
	TTL         time.Duration `env:"SEO_HUB_SESSION_TTL"      envDefault:"720h"`
	UseDenyList bool          `env:"SEO_HUB_SESSION_DENYLIST" envDefault:"false"`
}

// Config defines how session tokens are signed and validated.
type Config struct {
	Secret      []byte
	Issuer      string
	TTL         time.Duration
	UseDenyList bool
	Now         func() time.Time
}

// LoadConfigFromEnv reads session signing configuration.
//
// SEO_HUB_SESSION_SECRET is a hex-encoded signing key of at least 32 bytes.
// The default TTL is 30 days; each sign-in issues a fresh fixed-TTL token.
func LoadConfigFromEnv() (Config, error) {
	var raw sessionEnv
	if err := config.ParseEnv(&raw); err != nil {
		return Config{}, fmt.Errorf("parse session env: %w", err)
	}
	secretHex := strings.TrimSpace(raw.Secret)
	if secretHex == "" {
		return Config{}, fmt.Errorf("SEO_HUB_SESSION_SECRET is required")
	}
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return Config{}, fmt.Errorf("decode session secret: %w", err)
	}
	if len(secret) < 32 {
		return Config{}, fmt.Errorf("session secret must be at least 32 bytes")
	}
	return Config{
		Secret:      secret,
		Issuer:      raw.Issuer,
		TTL:         raw.TTL,
		UseDenyList: raw.UseDenyList,
	}, nil
}
