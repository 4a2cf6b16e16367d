package connections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/copp1723/final-seo-hub-sub007/internal/platform/errors"
	"github.com/copp1723/final-seo-hub-sub007/internal/platform/id"
	"github.com/copp1723/final-seo-hub-sub007/internal/storage"
	"github.com/copp1723/final-seo-hub-sub007/internal/vault"
)

// Store is the persistence surface the manager needs.
type Store interface {
	UpsertOAuthConnection(ctx context.Context, conn storage.OAuthConnection) error
	GetOAuthConnection(ctx context.Context, provider, ownerID string) (*storage.OAuthConnection, error)
	UpdateOAuthConnectionTokens(ctx context.Context, conn storage.OAuthConnection) error
	DeleteOAuthConnection(ctx context.Context, provider, ownerID string) error
	CreateOAuthState(ctx context.Context, state storage.OAuthState) error
	TakeOAuthState(ctx context.Context, stateValue string) (*storage.OAuthState, error)
}

// Manager drives the authorization-code flow for external providers and hands
// out decrypted access tokens, refreshing them behind the scenes. Plaintext
// tokens never touch the store; they are sealed by the vault on the way in.
type Manager struct {
	config     Config
	store      Store
	vault      *vault.Vault
	clock      func() time.Time
	httpClient *http.Client
	refreshes  singleflight.Group
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) { m.httpClient = client }
}

// NewManager builds a connection manager.
func NewManager(config Config, store Store, v *vault.Vault, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if v == nil {
		return nil, fmt.Errorf("vault is required")
	}
	if config.StateTTL <= 0 {
		config.StateTTL = 10 * time.Minute
	}
	if config.RefreshSkew <= 0 {
		config.RefreshSkew = 2 * time.Minute
	}
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = 15 * time.Second
	}
	m := &Manager{
		config:     config,
		store:      store,
		vault:      v,
		clock:      time.Now,
		httpClient: &http.Client{Timeout: config.ProviderTimeout},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Initiate starts the authorization-code flow for (provider, owner). It stores
// a single-use state value and returns the provider URL to redirect the user
// to.
func (m *Manager) Initiate(ctx context.Context, provider Provider, ownerID string) (string, error) {
	oc, ok := m.config.oauth2Config(provider)
	if !ok {
		return "", apperrors.New(apperrors.CodeProviderUnknown, "provider is not configured")
	}
	if ownerID == "" {
		return "", fmt.Errorf("owner id is required")
	}

	now := m.clock()
	state, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	err = m.store.CreateOAuthState(ctx, storage.OAuthState{
		State:     state,
		Provider:  string(provider),
		OwnerID:   ownerID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.config.StateTTL),
	})
	if err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}

	url := oc.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	return url, nil
}

// Complete finishes the authorization-code flow after the provider redirect.
// The state value is consumed exactly once; a state that is unknown, expired,
// or bound to a different provider reports STATE_INVALID and no connection is
// written. The authorize callback sees the owner the state was created for and
// rejects callers not allowed to act for that owner; a nil callback accepts
// any owner. Complete returns the owner the connection was written for.
func (m *Manager) Complete(ctx context.Context, provider Provider, stateValue, code string, authorize func(ownerID string) error) (string, error) {
	oc, ok := m.config.oauth2Config(provider)
	if !ok {
		return "", apperrors.New(apperrors.CodeProviderUnknown, "provider is not configured")
	}

	state, err := m.store.TakeOAuthState(ctx, stateValue)
	if err != nil {
		return "", fmt.Errorf("take oauth state: %w", err)
	}
	if state == nil || state.Provider != string(provider) {
		return "", apperrors.New(apperrors.CodeStateInvalid, "authorization state is unknown or bound to another provider")
	}
	now := m.clock()
	if !now.Before(state.ExpiresAt) {
		return "", apperrors.New(apperrors.CodeStateInvalid, "authorization state has expired")
	}
	if authorize != nil {
		if err := authorize(state.OwnerID); err != nil {
			return "", err
		}
	}

	callCtx, cancel := m.providerContext(ctx)
	defer cancel()
	token, err := oc.Exchange(callCtx, code)
	if err != nil {
		return "", m.providerError("code exchange", err)
	}

	accountID := m.fetchProviderAccountID(ctx, provider, token.AccessToken)

	conn, err := m.sealConnection(provider, state.OwnerID, token, now)
	if err != nil {
		return "", err
	}
	conn.ID, err = id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate connection id: %w", err)
	}
	conn.ProviderAccountID = accountID
	conn.CreatedAt = now
	if err := m.store.UpsertOAuthConnection(ctx, conn); err != nil {
		return "", fmt.Errorf("store connection: %w", err)
	}
	return state.OwnerID, nil
}

// GetValidAccessToken returns a decrypted access token for (provider, owner)
// that is valid for at least the configured skew. A token past that margin is
// refreshed first; concurrent callers for the same pair share one refresh.
// An undecryptable stored token deletes the connection and reports
// KEY_MISMATCH.
func (m *Manager) GetValidAccessToken(ctx context.Context, provider Provider, ownerID string) (string, error) {
	conn, err := m.store.GetOAuthConnection(ctx, string(provider), ownerID)
	if err != nil {
		return "", fmt.Errorf("load connection: %w", err)
	}
	if conn == nil {
		return "", apperrors.New(apperrors.CodeConnectionNotFound, "no connection for provider and owner")
	}

	access, err := m.openOrDiscard(ctx, conn, conn.EncryptedAccessToken, conn.AccessKeyVersion)
	if err != nil {
		return "", err
	}

	now := m.clock()
	if conn.AccessTokenExpiresAt.After(now.Add(m.config.RefreshSkew)) {
		if conn.AccessKeyVersion != m.vault.ActiveKeyVersion() {
			m.reseal(ctx, conn, access)
		}
		return access, nil
	}

	key := string(provider) + "/" + ownerID
	result, err, _ := m.refreshes.Do(key, func() (any, error) {
		return m.refresh(ctx, provider, ownerID)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Disconnect removes the stored connection for (provider, owner). Removing a
// connection that does not exist is not an error.
func (m *Manager) Disconnect(ctx context.Context, provider Provider, ownerID string) error {
	return m.store.DeleteOAuthConnection(ctx, string(provider), ownerID)
}

// Status reports whether a connection exists for (provider, owner), with its
// provider account id when known.
func (m *Manager) Status(ctx context.Context, provider Provider, ownerID string) (bool, string, error) {
	conn, err := m.store.GetOAuthConnection(ctx, string(provider), ownerID)
	if err != nil {
		return false, "", fmt.Errorf("load connection: %w", err)
	}
	if conn == nil {
		return false, "", nil
	}
	return true, conn.ProviderAccountID, nil
}

// refresh exchanges the stored refresh token for fresh token material and
// re-seals the row. The row is left untouched when the provider call fails.
func (m *Manager) refresh(ctx context.Context, provider Provider, ownerID string) (string, error) {
	// Re-read inside the flight: a caller that lost the race to an earlier
	// refresh sees the already-renewed row here.
	conn, err := m.store.GetOAuthConnection(ctx, string(provider), ownerID)
	if err != nil {
		return "", fmt.Errorf("load connection: %w", err)
	}
	if conn == nil {
		return "", apperrors.New(apperrors.CodeConnectionNotFound, "no connection for provider and owner")
	}
	now := m.clock()
	if conn.AccessTokenExpiresAt.After(now.Add(m.config.RefreshSkew)) {
		return m.openOrDiscard(ctx, conn, conn.EncryptedAccessToken, conn.AccessKeyVersion)
	}

	refreshToken, err := m.openOrDiscard(ctx, conn, conn.EncryptedRefreshToken, conn.RefreshKeyVersion)
	if err != nil {
		return "", err
	}

	oc, ok := m.config.oauth2Config(provider)
	if !ok {
		return "", apperrors.New(apperrors.CodeProviderUnknown, "provider is not configured")
	}
	callCtx, cancel := m.providerContext(ctx)
	defer cancel()
	token, err := oc.TokenSource(callCtx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", m.providerError("token refresh", err)
	}
	// Providers may omit the refresh token on renewal; keep the one we have.
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}

	updated, err := m.sealConnection(provider, ownerID, token, now)
	if err != nil {
		return "", err
	}
	if err := m.store.UpdateOAuthConnectionTokens(ctx, updated); err != nil {
		return "", fmt.Errorf("store refreshed tokens: %w", err)
	}
	return token.AccessToken, nil
}

// sealConnection encrypts token material into a storable connection row.
func (m *Manager) sealConnection(provider Provider, ownerID string, token *oauth2.Token, now time.Time) (storage.OAuthConnection, error) {
	sealedAccess, accessVersion, err := m.vault.Encrypt(token.AccessToken)
	if err != nil {
		return storage.OAuthConnection{}, fmt.Errorf("seal access token: %w", err)
	}
	sealedRefresh, refreshVersion, err := m.vault.Encrypt(token.RefreshToken)
	if err != nil {
		return storage.OAuthConnection{}, fmt.Errorf("seal refresh token: %w", err)
	}
	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		// Providers that omit expiry get a conservative one hour.
		expiresAt = now.Add(time.Hour)
	}
	scope := ""
	if pc, ok := m.config.Providers[provider]; ok {
		scope = strings.Join(pc.Scopes, " ")
	}
	return storage.OAuthConnection{
		Provider:              string(provider),
		OwnerID:               ownerID,
		EncryptedAccessToken:  sealedAccess,
		AccessKeyVersion:      accessVersion,
		EncryptedRefreshToken: sealedRefresh,
		RefreshKeyVersion:     refreshVersion,
		AccessTokenExpiresAt:  expiresAt,
		Scope:                 scope,
		UpdatedAt:             now,
	}, nil
}

// openOrDiscard decrypts one sealed value from a connection row. On
// KEY_MISMATCH the connection is deleted so the owner is prompted to
// reconnect, and the mismatch is reported to the caller.
func (m *Manager) openOrDiscard(ctx context.Context, conn *storage.OAuthConnection, sealed, keyVersion string) (string, error) {
	plaintext, err := m.vault.Decrypt(sealed, keyVersion)
	if err != nil {
		if vault.IsKeyMismatch(err) {
			if delErr := m.store.DeleteOAuthConnection(ctx, conn.Provider, conn.OwnerID); delErr != nil {
				return "", fmt.Errorf("discard unreadable connection: %w", delErr)
			}
		}
		return "", err
	}
	return plaintext, nil
}

// reseal re-encrypts a still-valid connection under the active key. Failures
// are ignored; the row stays readable and the next access retries.
func (m *Manager) reseal(ctx context.Context, conn *storage.OAuthConnection, access string) {
	refreshToken, err := m.vault.Decrypt(conn.EncryptedRefreshToken, conn.RefreshKeyVersion)
	if err != nil {
		return
	}
	sealedAccess, accessVersion, err := m.vault.Encrypt(access)
	if err != nil {
		return
	}
	sealedRefresh, refreshVersion, err := m.vault.Encrypt(refreshToken)
	if err != nil {
		return
	}
	updated := *conn
	updated.EncryptedAccessToken = sealedAccess
	updated.AccessKeyVersion = accessVersion
	updated.EncryptedRefreshToken = sealedRefresh
	updated.RefreshKeyVersion = refreshVersion
	updated.UpdatedAt = m.clock()
	_ = m.store.UpdateOAuthConnectionTokens(ctx, updated)
}

// fetchProviderAccountID asks the provider's userinfo endpoint for the
// account's stable subject id. Best effort; an empty id is stored when the
// endpoint is unavailable.
func (m *Manager) fetchProviderAccountID(ctx context.Context, provider Provider, accessToken string) string {
	pc, ok := m.config.Providers[provider]
	if !ok || pc.UserInfoURL == "" {
		return ""
	}
	callCtx, cancel := m.providerContext(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, pc.UserInfoURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	var info struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ""
	}
	return info.Sub
}

// providerContext bounds a provider call and routes it through the manager's
// HTTP client.
func (m *Manager) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	return context.WithTimeout(ctx, m.config.ProviderTimeout)
}

// providerError classifies a failed provider call.
func (m *Manager) providerError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.CodeProviderTimeout, op+" timed out", err)
	}
	return apperrors.Wrap(apperrors.CodeProviderError, op+" failed", err)
}
