package connections

import (
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/copp1723/final-seo-hub-sub007/internal/platform/config"
)

// ProviderConfig describes one external OAuth provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
}

// Config describes the connection manager configuration.
type Config struct {
	Providers       map[Provider]ProviderConfig
	StateTTL        time.Duration
	RefreshSkew     time.Duration
	ProviderTimeout time.Duration
}

// connectionsEnv holds raw env values for connection configuration.
type connectionsEnv struct {
	StateTTL        time.Duration `env:"SEO_HUB_OAUTH_STATE_TTL"        envDefault:"10m"`
	RefreshSkew     time.Duration `env:"SEO_HUB_OAUTH_REFRESH_SKEW"     envDefault:"2m"`
	ProviderTimeout time.Duration `env:"SEO_HUB_OAUTH_PROVIDER_TIMEOUT" envDefault:"15s"`

	GA4ClientID     string   `env:"SEO_HUB_OAUTH_GA4_CLIENT_ID"`
	GA4ClientSecret string   `env:"SEO_HUB_OAUTH_GA4_CLIENT_SECRET"`
	GA4RedirectURI  string   `env:"SEO_HUB_OAUTH_GA4_REDIRECT_URI"`
	GA4Scopes       []string `env:"SEO_HUB_OAUTH_GA4_SCOPES" envSeparator:","`

	SearchConsoleClientID     string   `env:"SEO_HUB_OAUTH_SEARCH_CONSOLE_CLIENT_ID"`
	SearchConsoleClientSecret string   `env:"SEO_HUB_OAUTH_SEARCH_CONSOLE_CLIENT_SECRET"`
	SearchConsoleRedirectURI  string   `env:"SEO_HUB_OAUTH_SEARCH_CONSOLE_REDIRECT_URI"`
	SearchConsoleScopes       []string `env:"SEO_HUB_OAUTH_SEARCH_CONSOLE_SCOPES" envSeparator:","`
}

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// LoadConfigFromEnv loads connection manager configuration from environment
// variables. A provider is registered only when its client id, secret and
// redirect URI are all present.
func LoadConfigFromEnv() (Config, error) {
	var raw connectionsEnv
	if err := config.ParseEnv(&raw); err != nil {
		return Config{}, err
	}

	providers := make(map[Provider]ProviderConfig)
	if raw.GA4ClientID != "" && raw.GA4ClientSecret != "" && raw.GA4RedirectURI != "" {
		scopes := trimCSV(raw.GA4Scopes)
		if len(scopes) == 0 {
			scopes = []string{"https://www.googleapis.com/auth/analytics.readonly"}
		}
		providers[ProviderGA4] = ProviderConfig{
			ClientID:     raw.GA4ClientID,
			ClientSecret: raw.GA4ClientSecret,
			RedirectURI:  raw.GA4RedirectURI,
			AuthURL:      googleAuthURL,
			TokenURL:     googleTokenURL,
			UserInfoURL:  googleUserInfoURL,
			Scopes:       scopes,
		}
	}
	if raw.SearchConsoleClientID != "" && raw.SearchConsoleClientSecret != "" && raw.SearchConsoleRedirectURI != "" {
		scopes := trimCSV(raw.SearchConsoleScopes)
		if len(scopes) == 0 {
			scopes = []string{"https://www.googleapis.com/auth/webmasters.readonly"}
		}
		providers[ProviderSearchConsole] = ProviderConfig{
			ClientID:     raw.SearchConsoleClientID,
			ClientSecret: raw.SearchConsoleClientSecret,
			RedirectURI:  raw.SearchConsoleRedirectURI,
			AuthURL:      googleAuthURL,
			TokenURL:     googleTokenURL,
			UserInfoURL:  googleUserInfoURL,
			Scopes:       scopes,
		}
	}

	return Config{
		Providers:       providers,
		StateTTL:        raw.StateTTL,
		RefreshSkew:     raw.RefreshSkew,
		ProviderTimeout: raw.ProviderTimeout,
	}, nil
}

// oauth2Config builds the x/oauth2 client configuration for a provider.
func (c Config) oauth2Config(provider Provider) (*oauth2.Config, bool) {
	pc, ok := c.Providers[provider]
	if !ok {
		return nil, false
	}
	return &oauth2.Config{
		ClientID:     pc.ClientID,
		ClientSecret: pc.ClientSecret,
		RedirectURL:  pc.RedirectURI,
		Scopes:       pc.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  pc.AuthURL,
			TokenURL: pc.TokenURL,
		},
	}, true
}

// trimCSV removes empty entries from a string slice.
func trimCSV(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
