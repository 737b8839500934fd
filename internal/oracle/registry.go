package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cosmossdk.io/math"

	"metastablePool/internal/model"
)

// Registry is an in-process Querier keyed by provider address.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register binds a provider to an address, replacing any previous one.
func (r *Registry) Register(address string, provider Provider) {
	r.mu.Lock()
	r.providers[normalizeAddress(address)] = provider
	r.mu.Unlock()
}

// Provider returns the provider registered at address.
func (r *Registry) Provider(address string) (Provider, bool) {
	r.mu.RLock()
	p, ok := r.providers[normalizeAddress(address)]
	r.mu.RUnlock()
	return p, ok
}

// CheckAddress succeeds when a provider is registered at address.
func (r *Registry) CheckAddress(address string) error {
	if strings.TrimSpace(address) == "" {
		return ErrInvalidProvider
	}
	if _, ok := r.Provider(address); !ok {
		return fmt.Errorf("%s: %w", address, ErrInvalidProvider)
	}
	return nil
}

func (r *Registry) QueryExchangeRate(ctx context.Context, address string, offer, ask model.AssetInfo) (math.LegacyDec, error) {
	provider, ok := r.Provider(address)
	if !ok {
		return math.LegacyDec{}, fmt.Errorf("%w: %s: %w", ErrQueryFailed, address, ErrUnknownProvider)
	}
	rate, err := provider.ExchangeRate(ctx, offer, ask)
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	if err := validateRate(rate); err != nil {
		return math.LegacyDec{}, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return rate, nil
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
