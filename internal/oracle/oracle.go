// Package oracle resolves exchange rates from rate provider contracts.
package oracle

import (
	"context"
	"errors"

	"cosmossdk.io/math"

	"metastablePool/internal/model"
)

var (
	ErrQueryFailed     = errors.New("exchange rate query failed")
	ErrInvalidProvider = errors.New("exchange rate provider address is invalid")
	ErrUnknownProvider = errors.New("exchange rate provider not found")
	ErrDoublingAssets  = errors.New("doubling assets in asset infos")
	ErrForeignAsset    = errors.New("given ask asset doesn't belong to pairs")
	ErrNonPositiveRate = errors.New("exchange rate from rate provider must be greater than zero")
)

// Querier asks a rate provider for the rate of offer in units of ask.
type Querier interface {
	QueryExchangeRate(ctx context.Context, provider string, offer, ask model.AssetInfo) (math.LegacyDec, error)
	CheckAddress(provider string) error
}

// Provider answers rate queries for a single pair.
type Provider interface {
	ExchangeRate(ctx context.Context, offer, ask model.AssetInfo) (math.LegacyDec, error)
}

func validateRate(rate math.LegacyDec) error {
	if rate.IsNil() || !rate.IsPositive() {
		return ErrNonPositiveRate
	}
	return nil
}
