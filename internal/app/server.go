// Package app composes the credential-core HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/copp1723/final-seo-hub-sub007/internal/connections"
	"github.com/copp1723/final-seo-hub-sub007/internal/csrf"
	"github.com/copp1723/final-seo-hub-sub007/internal/session"
	"github.com/copp1723/final-seo-hub-sub007/internal/storage/sqlite"
	"github.com/copp1723/final-seo-hub-sub007/internal/vault"
)

// Server hosts the credential-core HTTP surface.
type Server struct {
	config     Config
	listener   net.Listener
	httpServer *http.Server
	store      *sqlite.Store
}

// New creates a configured server listening on the configured address.
func New(cfg Config) (*Server, error) {
	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	keyring, err := vault.LoadKeyringFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	tokenVault, err := vault.New(keyring)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	sessionConfig, err := session.LoadConfigFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	var denyList session.DenyList
	if sessionConfig.UseDenyList {
		denyList = store
	}
	sessions, err := session.NewManager(sessionConfig, denyList)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	connectionsConfig, err := connections.LoadConfigFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	conns, err := connections.NewManager(connectionsConfig, store, tokenVault)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}

	handler := NewHandler(store, sessions, csrf.NewService(store), conns, cfg.AppURL, cfg.SecureCookies)
	return &Server{
		config:     cfg,
		listener:   listener,
		httpServer: &http.Server{Handler: handler.Routes()},
		store:      store,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the server and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() { _ = s.store.Close() }()

	s.startCleanup(serverCtx, s.config.CleanupInterval)

	log.Printf("server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		<-serveErr
		return nil
	}
}

// startCleanup sweeps expired transient rows on a timer. This keeps pending
// authorization states and spent deny-list entries from accumulating without a
// separate maintenance process.
func (s *Server) startCleanup(ctx context.Context, interval time.Duration) {
	if s == nil || s.store == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.store.CleanupExpired(time.Now().UTC())
			}
		}
	}()
}
