// Package ratecache keeps the last observed exchange rate of a pool's asset
// pair together with its blocks-to-live window.
package ratecache

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/math"

	"metastablePool/internal/model"
)

var (
	ErrInvalidRate = errors.New("exchange rate must be greater than zero")
	ErrInvalidTTL  = errors.New("exchange rate cache blocks-to-live must be greater than zero")
	ErrEmpty       = errors.New("exchange rate cache is empty")
)

// Fetcher loads the rate of offer in units of ask from the rate oracle.
type Fetcher func(ctx context.Context, offer, ask model.AssetInfo) (math.LegacyDec, error)

// Entry is the cached rate of AssetInfos[0] expressed in AssetInfos[1].
type Entry struct {
	AssetInfos   [2]model.AssetInfo `json:"asset_infos"`
	ExchangeRate math.LegacyDec     `json:"exchange_rate"`
	Height       uint64             `json:"height"`
	BTL          uint64             `json:"btl"`
}

// New returns an empty entry for the pair.
func New(assets [2]model.AssetInfo, btl uint64) (Entry, error) {
	if btl == 0 {
		return Entry{}, ErrInvalidTTL
	}
	return Entry{AssetInfos: assets, ExchangeRate: math.LegacyZeroDec(), BTL: btl}, nil
}

// IsExpired reports whether the rate observed at Height is stale at height.
func (e Entry) IsExpired(height uint64) bool {
	return height >= e.Height+e.BTL
}

// IsEmpty reports whether no rate was ever stored.
func (e Entry) IsEmpty() bool {
	return e.ExchangeRate.IsNil() || !e.ExchangeRate.IsPositive()
}

// NeedsRefresh reports whether the oracle must be queried at height.
func (e Entry) NeedsRefresh(height uint64) bool {
	return e.IsEmpty() || e.IsExpired(height)
}

// UpdateRate stores rate as observed at height.
func (e *Entry) UpdateRate(rate math.LegacyDec, height uint64) error {
	if rate.IsNil() || !rate.IsPositive() {
		return ErrInvalidRate
	}
	e.ExchangeRate = rate
	e.Height = height
	return nil
}

// UpdateTTL replaces the blocks-to-live.
func (e *Entry) UpdateTTL(btl uint64) error {
	if btl == 0 {
		return ErrInvalidTTL
	}
	e.BTL = btl
	return nil
}

// Invalidate drops the cached rate so that the next lookup refreshes it.
func (e *Entry) Invalidate() {
	e.ExchangeRate = math.LegacyZeroDec()
	e.Height = 0
}

// Rate returns the cached rate of offer in units of ask. The reversed pair
// yields the truncated inverse.
func (e Entry) Rate(offer, ask model.AssetInfo) (math.LegacyDec, error) {
	direct, err := e.direction(offer, ask)
	if err != nil {
		return math.LegacyDec{}, err
	}
	if e.IsEmpty() {
		return math.LegacyDec{}, ErrEmpty
	}
	if direct {
		return e.ExchangeRate, nil
	}
	return math.LegacyOneDec().QuoTruncate(e.ExchangeRate), nil
}

// Get returns the rate of offer in units of ask at height, refreshing the
// canonical rate through fetch when the entry is empty or expired. The
// boolean reports whether a refresh happened.
func (e *Entry) Get(ctx context.Context, offer, ask model.AssetInfo, height uint64, fetch Fetcher) (math.LegacyDec, bool, error) {
	if _, err := e.direction(offer, ask); err != nil {
		return math.LegacyDec{}, false, err
	}

	refreshed := false
	if e.NeedsRefresh(height) {
		if fetch == nil {
			return math.LegacyDec{}, false, ErrEmpty
		}
		rate, err := fetch(ctx, e.AssetInfos[0], e.AssetInfos[1])
		if err != nil {
			return math.LegacyDec{}, false, err
		}
		if err := e.UpdateRate(rate, height); err != nil {
			return math.LegacyDec{}, false, fmt.Errorf("refresh rate: %w", err)
		}
		refreshed = true
	}

	rate, err := e.Rate(offer, ask)
	return rate, refreshed, err
}

func (e Entry) direction(offer, ask model.AssetInfo) (bool, error) {
	switch {
	case offer == e.AssetInfos[0] && ask == e.AssetInfos[1]:
		return true, nil
	case offer == e.AssetInfos[1] && ask == e.AssetInfos[0]:
		return false, nil
	default:
		return false, fmt.Errorf("pair %s/%s is not cached: %w", offer, ask, model.ErrAssetMismatch)
	}
}
