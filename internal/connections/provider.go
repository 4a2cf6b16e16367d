// Package connections manages third-party OAuth connections: the
// authorization-code dance, encrypted token persistence, and transparent
// refresh.
package connections

import "strings"

// Provider identifies a supported third-party OAuth provider.
type Provider string

const (
	// ProviderGA4 is the analytics provider.
	ProviderGA4 Provider = "ga4"
	// ProviderSearchConsole is the search-console provider.
	ProviderSearchConsole Provider = "search-console"
)

// ParseProvider validates and normalizes a provider string.
func ParseProvider(value string) (Provider, bool) {
	switch Provider(strings.TrimSpace(value)) {
	case ProviderGA4:
		return ProviderGA4, true
	case ProviderSearchConsole:
		return ProviderSearchConsole, true
	default:
		return "", false
	}
}
