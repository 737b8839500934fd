package pool

import (
	"errors"
	"fmt"

	"metastablePool/internal/amp"
	"metastablePool/internal/model"
	"metastablePool/internal/oracle"
	"metastablePool/internal/ratecache"
	"metastablePool/internal/stableswap"
)

var (
	ErrDoublingAssets          = oracle.ErrDoublingAssets
	ErrInitParamsNotFound      = errors.New("you need to provide init params")
	ErrInvalidRateProvider     = errors.New("exchange rate provider address is invalid")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrWrongAssetInfo          = errors.New("wrong asset info is given")
	ErrInvalidConfig           = errors.New("invalid pool configuration")
	ErrInvalidParams           = errors.New("exactly one parameter update must be given")
	ErrInvalidHook             = errors.New("receive hook must be swap or withdraw_liquidity")
	ErrInvalidZeroAmount       = errors.New("event of zero transfer")
	ErrLiquidityAmountTooSmall = errors.New("insufficient amount of liquidity")
	ErrInsufficientShares      = errors.New("share amount exceeds total share")
	ErrAllowedSpreadAssertion  = errors.New("provided spread amount exceeds allowed limit")
	ErrMaxSpreadAssertion      = errors.New("operation exceeds max spread limit")
	ErrMaxSlippageAssertion    = errors.New("operation exceeds max slippage tolerance")
	ErrInvalidBeliefPrice      = errors.New("belief price must be greater than zero")
	ErrAskAmountTooLarge       = errors.New("ask amount exceeds pool balance")
	ErrEmptyPool               = errors.New("pool has no liquidity")
	ErrAutoStake               = errors.New("generator address is not set, cannot auto stake")
	ErrNativeBalanceMismatch   = fmt.Errorf("native token balance mismatch between the argument and the transferred: %w", model.ErrAssetMismatch)
)

// ErrorClass groups errors by how a caller should react to them.
type ErrorClass string

const (
	ClassConfig    ErrorClass = "config"
	ClassNumerical ErrorClass = "numerical"
	ClassEconomic  ErrorClass = "economic"
	ClassOracle    ErrorClass = "oracle"
	ClassUnknown   ErrorClass = "unknown"
)

var errorClasses = []struct {
	class ErrorClass
	errs  []error
}{
	{ClassOracle, []error{
		oracle.ErrQueryFailed,
		oracle.ErrNonPositiveRate,
		ratecache.ErrInvalidRate,
		ratecache.ErrEmpty,
	}},
	{ClassNumerical, []error{
		stableswap.ErrConvergence,
		stableswap.ErrOverflow,
		stableswap.ErrZeroBalance,
		stableswap.ErrInvalidAmp,
	}},
	{ClassEconomic, []error{
		ErrAllowedSpreadAssertion,
		ErrMaxSpreadAssertion,
		ErrMaxSlippageAssertion,
		ErrInvalidBeliefPrice,
		ErrLiquidityAmountTooSmall,
		ErrInsufficientShares,
		ErrAskAmountTooLarge,
		ErrEmptyPool,
	}},
	{ClassConfig, []error{
		ErrDoublingAssets,
		ErrInitParamsNotFound,
		ErrInvalidRateProvider,
		ErrUnauthorized,
		ErrWrongAssetInfo,
		ErrInvalidConfig,
		ErrInvalidParams,
		ErrInvalidHook,
		ErrInvalidZeroAmount,
		ErrAutoStake,
		model.ErrAssetMismatch,
		amp.ErrIncorrectAmp,
		amp.ErrMaxAmpChange,
		amp.ErrMinAmpChangingTime,
		amp.ErrInvalidSchedule,
		ratecache.ErrInvalidTTL,
	}},
}

// Classify maps an operation error to its class.
func Classify(err error) ErrorClass {
	if err == nil {
		return ""
	}
	for _, group := range errorClasses {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.class
			}
		}
	}
	return ClassUnknown
}
