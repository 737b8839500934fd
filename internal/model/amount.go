package model

import "github.com/holiman/uint256"

// ParseAmount parses a base-10 raw amount.
func ParseAmount(input string) (*uint256.Int, error) {
	if input == "" {
		return new(uint256.Int), nil
	}
	return uint256.FromDecimal(input)
}

// Pow10 returns 10^exp.
func Pow10(exp uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(exp)))
}
