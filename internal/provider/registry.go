package provider

import (
	"fmt"
	"strings"

	"bluereach_backend/internal/reconcile"
)

// Registry maps providers to their clients.
type Registry struct {
	sources map[reconcile.Provider]Source
}

// NewRegistry creates a registry over the given clients.
func NewRegistry(sources map[reconcile.Provider]Source) *Registry {
	copied := make(map[reconcile.Provider]Source, len(sources))
	for p, s := range sources {
		copied[p] = s
	}
	return &Registry{sources: copied}
}

// For returns the client for t. It fails with ErrNotConfigured when t has
// no API key and ErrUnknownProvider when no client is registered.
func (r *Registry) For(t Target) (Source, error) {
	src, ok := r.sources[t.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, t.Provider)
	}
	if strings.TrimSpace(t.APIKey) == "" || strings.TrimSpace(t.ProviderCampaignID) == "" {
		return nil, ErrNotConfigured
	}
	return src, nil
}
