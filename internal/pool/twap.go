package pool

import (
	"fmt"

	"github.com/holiman/uint256"

	"metastablePool/internal/model"
	"metastablePool/internal/stableswap"
)

// spotPrices returns, for each asset, the curve output of one whole unit of it
// in the other asset, scaled to TWAPPrecision decimals. No commission applies.
func spotPrices(norm normalizer, ampNow uint64, decimals [2]uint8, balances [2]*uint256.Int) ([2]*uint256.Int, error) {
	var prices [2]*uint256.Int
	for i := 0; i < 2; i++ {
		ret, err := curveReturn(norm, ampNow, balances, i, model.Pow10(decimals[i]))
		if err != nil {
			return prices, fmt.Errorf("spot price %d: %w", i, err)
		}
		price, err := twapPrice(ret, decimals[1-i])
		if err != nil {
			return prices, fmt.Errorf("spot price %d: %w", i, err)
		}
		prices[i] = price
	}
	return prices, nil
}

// twapPrice rescales a raw return with askDecimals to TWAPPrecision.
func twapPrice(ret *uint256.Int, askDecimals uint8) (*uint256.Int, error) {
	price, overflow := new(uint256.Int).MulDivOverflow(ret, model.Pow10(TWAPPrecision), model.Pow10(askDecimals))
	if overflow {
		return nil, stableswap.ErrOverflow
	}
	return price, nil
}

// accumulatePrices advances the cumulative prices to now using the balances
// held before the current operation mutates them. Repeated calls at the same
// timestamp add nothing.
func accumulatePrices(tx *Snapshot, norm normalizer, ampNow uint64, now uint64) error {
	cfg := &tx.Config
	if now <= cfg.BlockTimeLast {
		return nil
	}
	elapsed := uint256.NewInt(now - cfg.BlockTimeLast)

	if bothPositive(tx.State.Balances) {
		prices, err := spotPrices(norm, ampNow, cfg.PairInfo.AssetDecimals, tx.State.Balances)
		if err != nil {
			return err
		}
		// Accumulators wrap around on overflow; consumers take differences.
		cfg.Price0CumulativeLast = new(uint256.Int).Add(cfg.Price0CumulativeLast, new(uint256.Int).Mul(prices[0], elapsed))
		cfg.Price1CumulativeLast = new(uint256.Int).Add(cfg.Price1CumulativeLast, new(uint256.Int).Mul(prices[1], elapsed))
	}

	cfg.BlockTimeLast = now
	return nil
}
