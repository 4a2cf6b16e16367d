package app

import (
	"time"

	"github.com/copp1723/final-seo-hub-sub007/internal/platform/config"
)

// Config holds HTTP server composition settings.
type Config struct {
	HTTPAddr        string        `env:"SEO_HUB_HTTP_ADDR"        envDefault:"localhost:8090"`
	DBPath          string        `env:"SEO_HUB_DB_PATH"          envDefault:"seo-hub.db"`
	AppURL          string        `env:"SEO_HUB_APP_URL"          envDefault:"/"`
	SecureCookies   bool          `env:"SEO_HUB_SECURE_COOKIES"   envDefault:"true"`
	CleanupInterval time.Duration `env:"SEO_HUB_CLEANUP_INTERVAL" envDefault:"5m"`
}

// LoadConfigFromEnv reads server composition settings.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
