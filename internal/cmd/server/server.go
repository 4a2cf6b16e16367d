// Package server wires flags and environment into the HTTP server.
package server

import (
	"context"
	"flag"
	"strings"

	"github.com/copp1723/final-seo-hub-sub007/internal/app"
)

// Config holds server command configuration.
type Config struct {
	HTTPAddr string
	DBPath   string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config. Flags win over environment values.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		HTTPAddr: envOrDefault(lookup, "SEO_HUB_HTTP_ADDR", "localhost:8090"),
		DBPath:   envOrDefault(lookup, "SEO_HUB_DB_PATH", "seo-hub.db"),
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The HTTP server address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The SQLite database path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the server.
func Run(ctx context.Context, cfg Config) error {
	appConfig, err := app.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	appConfig.HTTPAddr = cfg.HTTPAddr
	appConfig.DBPath = cfg.DBPath
	return app.Run(ctx, appConfig)
}

func envOrDefault(lookup EnvLookup, key, fallback string) string {
	if lookup == nil {
		return fallback
	}
	value, ok := lookup(key)
	if !ok {
		return fallback
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
