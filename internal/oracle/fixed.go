package oracle

import (
	"context"
	"sync"

	"cosmossdk.io/math"

	"metastablePool/internal/model"
)

// Fixed is a provider that serves an operator-set rate for one pair.
type Fixed struct {
	mu     sync.RWMutex
	assets [2]model.AssetInfo
	rate   math.LegacyDec
}

// FixedConfig mirrors the provider's config query.
type FixedConfig struct {
	AssetInfos   [2]model.AssetInfo `json:"asset_infos"`
	ExchangeRate math.LegacyDec     `json:"exchange_rate"`
}

// NewFixed creates a provider quoting rate for assets[0] in units of assets[1].
func NewFixed(assets [2]model.AssetInfo, rate math.LegacyDec) (*Fixed, error) {
	if assets[0] == assets[1] {
		return nil, ErrDoublingAssets
	}
	if err := validateRate(rate); err != nil {
		return nil, err
	}
	return &Fixed{assets: assets, rate: rate}, nil
}

// ExchangeRate returns the stored rate, or its truncated inverse for the reversed pair.
func (f *Fixed) ExchangeRate(_ context.Context, offer, ask model.AssetInfo) (math.LegacyDec, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	switch {
	case offer == f.assets[0] && ask == f.assets[1]:
		return f.rate, nil
	case offer == f.assets[1] && ask == f.assets[0]:
		return math.LegacyOneDec().QuoTruncate(f.rate), nil
	default:
		return math.LegacyDec{}, ErrForeignAsset
	}
}

// UpdateExchangeRate replaces the stored rate.
func (f *Fixed) UpdateExchangeRate(rate math.LegacyDec) error {
	if err := validateRate(rate); err != nil {
		return err
	}
	f.mu.Lock()
	f.rate = rate
	f.mu.Unlock()
	return nil
}

// Config returns the pair and the stored rate.
func (f *Fixed) Config() FixedConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return FixedConfig{AssetInfos: f.assets, ExchangeRate: f.rate}
}
