package stableswap

import "errors"

var (
	// ErrConvergence is returned when Newton iteration does not settle within Iterations rounds.
	ErrConvergence = errors.New("newton iteration did not converge")
	// ErrOverflow is returned when an intermediate value does not fit in 256 bits.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrZeroBalance is returned when a normalized balance that must be divided by is zero.
	ErrZeroBalance = errors.New("zero normalized balance")
	// ErrInvalidAmp is returned when amp*n^n does not exceed AmpPrecision.
	ErrInvalidAmp = errors.New("amplification too small")
)
