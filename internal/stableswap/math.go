// Package stableswap implements the two-asset StableSwap invariant over
// rate-normalized balances.
package stableswap

import (
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// NCoins is the number of assets in a pool.
	NCoins = 2
	// AmpPrecision scales stored amplification values.
	AmpPrecision = 100
	// Iterations bounds Newton's method for both D and y.
	Iterations = 32
	// MaxAmp is the largest amplification accepted from callers (unscaled).
	MaxAmp = 1_000_000
	// MaxAmpChange is the largest ratio between the current and a new target amp.
	MaxAmpChange = 10
	// MinAmpChangingTime is the minimum interval in seconds between ramps.
	MinAmpChangingTime = 86400
)

var (
	nCoins       = uint256.NewInt(NCoins)
	nCoinsPlus1  = uint256.NewInt(NCoins + 1)
	nCoinsPowN   = uint256.NewInt(NCoins * NCoins)
	ampPrecision = uint256.NewInt(AmpPrecision)
	one          = uint256.NewInt(1)
)

// ComputeD returns the invariant D for normalized balances x0, x1 and an
// amplification already scaled by AmpPrecision.
func ComputeD(amp uint64, x0, x1 *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(x0, x1)
	if overflow {
		return nil, fmt.Errorf("sum balances: %w", ErrOverflow)
	}
	if sum.IsZero() {
		return new(uint256.Int), nil
	}
	if x0.IsZero() || x1.IsZero() {
		return nil, ErrZeroBalance
	}

	ann, err := annOf(amp)
	if err != nil {
		return nil, err
	}
	// ann*S/AP is loop invariant.
	annSum, overflow := new(uint256.Int).MulDivOverflow(ann, sum, ampPrecision)
	if overflow {
		return nil, fmt.Errorf("ann sum: %w", ErrOverflow)
	}
	annMinusPrecision := new(uint256.Int).Sub(ann, ampPrecision)

	d := sum.Clone()
	for i := 0; i < Iterations; i++ {
		dp := d.Clone()
		for _, x := range [NCoins]*uint256.Int{x0, x1} {
			xn := new(uint256.Int).Mul(x, nCoins)
			if dp, overflow = new(uint256.Int).MulDivOverflow(dp, d, xn); overflow {
				return nil, fmt.Errorf("d product: %w", ErrOverflow)
			}
		}
		prev := d

		dpn, overflow := new(uint256.Int).MulOverflow(dp, nCoins)
		if overflow {
			return nil, fmt.Errorf("d product: %w", ErrOverflow)
		}
		numerator, overflow := new(uint256.Int).AddOverflow(annSum, dpn)
		if overflow {
			return nil, fmt.Errorf("d numerator: %w", ErrOverflow)
		}

		left, overflow := new(uint256.Int).MulDivOverflow(annMinusPrecision, d, ampPrecision)
		if overflow {
			return nil, fmt.Errorf("d denominator: %w", ErrOverflow)
		}
		right, overflow := new(uint256.Int).MulOverflow(dp, nCoinsPlus1)
		if overflow {
			return nil, fmt.Errorf("d denominator: %w", ErrOverflow)
		}
		denominator, overflow := new(uint256.Int).AddOverflow(left, right)
		if overflow {
			return nil, fmt.Errorf("d denominator: %w", ErrOverflow)
		}

		if d, overflow = new(uint256.Int).MulDivOverflow(numerator, prev, denominator); overflow {
			return nil, fmt.Errorf("d step: %w", ErrOverflow)
		}
		if withinOne(d, prev) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("compute d: %w", ErrConvergence)
}

// ComputeY returns the normalized balance of the other asset that keeps the
// invariant at d when one side holds x.
func ComputeY(amp uint64, x, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return new(uint256.Int), nil
	}
	if x.IsZero() {
		return nil, ErrZeroBalance
	}

	ann, err := annOf(amp)
	if err != nil {
		return nil, err
	}

	// c = D^3 * AP / (n^n * x * ann)
	xn := new(uint256.Int).Mul(x, nCoins)
	c, overflow := new(uint256.Int).MulDivOverflow(d, d, xn)
	if overflow {
		return nil, fmt.Errorf("y constant: %w", ErrOverflow)
	}
	dPrecision, overflow := new(uint256.Int).MulOverflow(d, ampPrecision)
	if overflow {
		return nil, fmt.Errorf("y constant: %w", ErrOverflow)
	}
	annN := new(uint256.Int).Mul(ann, nCoins)
	if c, overflow = new(uint256.Int).MulDivOverflow(c, dPrecision, annN); overflow {
		return nil, fmt.Errorf("y constant: %w", ErrOverflow)
	}

	// b = x + D*AP/ann
	b, overflow := new(uint256.Int).MulDivOverflow(d, ampPrecision, ann)
	if overflow {
		return nil, fmt.Errorf("y b term: %w", ErrOverflow)
	}
	if _, overflow = b.AddOverflow(b, x); overflow {
		return nil, fmt.Errorf("y b term: %w", ErrOverflow)
	}

	y := d.Clone()
	for i := 0; i < Iterations; i++ {
		prev := y

		ySquare, overflow := new(uint256.Int).MulOverflow(y, y)
		if overflow {
			return nil, fmt.Errorf("y square: %w", ErrOverflow)
		}
		numerator, overflow := new(uint256.Int).AddOverflow(ySquare, c)
		if overflow {
			return nil, fmt.Errorf("y numerator: %w", ErrOverflow)
		}
		// 2y + b - D; b > D is not guaranteed so the subtraction is checked.
		denominator, overflow := new(uint256.Int).MulOverflow(y, nCoins)
		if overflow {
			return nil, fmt.Errorf("y denominator: %w", ErrOverflow)
		}
		if _, overflow = denominator.AddOverflow(denominator, b); overflow {
			return nil, fmt.Errorf("y denominator: %w", ErrOverflow)
		}
		if _, underflow := denominator.SubOverflow(denominator, d); underflow || denominator.IsZero() {
			return nil, fmt.Errorf("y denominator: %w", ErrOverflow)
		}

		y = new(uint256.Int).Div(numerator, denominator)
		if withinOne(y, prev) {
			return y, nil
		}
	}
	return nil, fmt.Errorf("compute y: %w", ErrConvergence)
}

func annOf(amp uint64) (*uint256.Int, error) {
	ann, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(amp), nCoinsPowN)
	if overflow {
		return nil, fmt.Errorf("ann: %w", ErrOverflow)
	}
	if ann.Cmp(ampPrecision) <= 0 {
		return nil, fmt.Errorf("amp %d: %w", amp, ErrInvalidAmp)
	}
	return ann, nil
}

func withinOne(a, b *uint256.Int) bool {
	diff := new(uint256.Int)
	if a.Cmp(b) >= 0 {
		diff.Sub(a, b)
	} else {
		diff.Sub(b, a)
	}
	return diff.Cmp(one) <= 0
}
