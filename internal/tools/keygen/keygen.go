// Package keygen generates secret material for the vault keyring and session
// signing.
package keygen

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// Config holds configuration for key generation.
type Config struct {
	Purpose string
	Version string
	Bytes   int
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Purpose: "vault", Version: "v1", Bytes: 32}
	fs.StringVar(&cfg.Purpose, "purpose", cfg.Purpose, "what the key is for: vault or session")
	fs.StringVar(&cfg.Version, "version", cfg.Version, "key version label for vault keys")
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (default: 32)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key and writes it as an env assignment to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes <= 0 {
		return errors.New("bytes must be greater than zero")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	encoded := hex.EncodeToString(buf)

	switch strings.TrimSpace(cfg.Purpose) {
	case "vault":
		version := strings.TrimSpace(cfg.Version)
		if version == "" {
			return errors.New("version is required for vault keys")
		}
		_, err := fmt.Fprintf(out, "SEO_HUB_VAULT_KEYS=%s:%s\nSEO_HUB_VAULT_ACTIVE_KEY=%s\n", version, encoded, version)
		return err
	case "session":
		_, err := fmt.Fprintf(out, "SEO_HUB_SESSION_SECRET=%s\n", encoded)
		return err
	default:
		return fmt.Errorf("unknown purpose %q", cfg.Purpose)
	}
}
