package pool

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/holiman/uint256"

	"metastablePool/internal/model"
	"metastablePool/internal/stableswap"
)

// rateDecimals is the fixed-point precision of exchange rates.
const rateDecimals = 18

var rateOne = model.Pow10(rateDecimals)

// normalizer converts raw amounts into a common unit: both assets are scaled
// to the larger precision and asset 0 is priced in asset 1 via the rate.
type normalizer struct {
	decimals  [2]uint8
	precision uint8
	rate      *uint256.Int
}

func newNormalizer(decimals [2]uint8, rate math.LegacyDec) (normalizer, error) {
	atoms, err := decAtoms(rate)
	if err != nil {
		return normalizer{}, fmt.Errorf("exchange rate: %w", err)
	}
	if atoms.IsZero() {
		return normalizer{}, fmt.Errorf("exchange rate: %w", stableswap.ErrZeroBalance)
	}
	precision := decimals[0]
	if decimals[1] > precision {
		precision = decimals[1]
	}
	return normalizer{decimals: decimals, precision: precision, rate: atoms}, nil
}

func (n normalizer) upscale(i int, raw *uint256.Int) (*uint256.Int, error) {
	v, overflow := new(uint256.Int).MulOverflow(raw, model.Pow10(n.precision-n.decimals[i]))
	if overflow {
		return nil, fmt.Errorf("upscale: %w", stableswap.ErrOverflow)
	}
	return v, nil
}

func (n normalizer) downscale(i int, v *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(v, model.Pow10(n.precision-n.decimals[i]))
}

func (n normalizer) normalize(i int, raw *uint256.Int) (*uint256.Int, error) {
	v, err := n.upscale(i, raw)
	if err != nil {
		return nil, err
	}
	if i == 0 {
		var overflow bool
		if v, overflow = new(uint256.Int).MulDivOverflow(v, n.rate, rateOne); overflow {
			return nil, fmt.Errorf("apply rate: %w", stableswap.ErrOverflow)
		}
	}
	return v, nil
}

func (n normalizer) denormalize(i int, v *uint256.Int) (*uint256.Int, error) {
	if i == 0 {
		var overflow bool
		if v, overflow = new(uint256.Int).MulDivOverflow(v, rateOne, n.rate); overflow {
			return nil, fmt.Errorf("remove rate: %w", stableswap.ErrOverflow)
		}
	}
	return n.downscale(i, v), nil
}

func (n normalizer) normalizeAll(raw [2]*uint256.Int) ([2]*uint256.Int, error) {
	var out [2]*uint256.Int
	for i := range raw {
		v, err := n.normalize(i, raw[i])
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

// convert expresses amount of asset from in units of asset to using rate (from->to).
func (n normalizer) convert(from int, amount *uint256.Int, rate math.LegacyDec) (*uint256.Int, error) {
	atoms, err := decAtoms(rate)
	if err != nil {
		return nil, err
	}
	v, err := n.upscale(from, amount)
	if err != nil {
		return nil, err
	}
	v, overflow := new(uint256.Int).MulDivOverflow(v, atoms, rateOne)
	if overflow {
		return nil, fmt.Errorf("convert: %w", stableswap.ErrOverflow)
	}
	return n.downscale(1-from, v), nil
}

// decAtoms returns the 18-decimal fixed point representation of a non-negative decimal.
func decAtoms(d math.LegacyDec) (*uint256.Int, error) {
	if d.IsNil() || d.IsNegative() {
		return nil, fmt.Errorf("negative or unset decimal")
	}
	v, overflow := uint256.FromBig(d.BigInt())
	if overflow {
		return nil, stableswap.ErrOverflow
	}
	return v, nil
}

func decFromUint(v *uint256.Int) math.LegacyDec {
	return math.LegacyNewDecFromBigInt(v.ToBig())
}
