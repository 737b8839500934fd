package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"metastablePool/internal/chain"
	"metastablePool/internal/model"
)

// rateDecimals is the fixed-point precision of getExchangeRate results.
const rateDecimals = 18

const rateProviderABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "offerAsset", "type": "address"},
      {"internalType": "address", "name": "askAsset", "type": "address"}
    ],
    "name": "getExchangeRate",
    "outputs": [{"internalType": "uint256", "name": "rate", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	rateProviderABI     abi.ABI
	rateProviderABIOnce sync.Once
	rateProviderABIErr  error
)

// RateProviderABI returns the parsed rate provider ABI.
func RateProviderABI() (abi.ABI, error) {
	rateProviderABIOnce.Do(func() {
		rateProviderABI, rateProviderABIErr = abi.JSON(strings.NewReader(rateProviderABIJSON))
	})
	return rateProviderABI, rateProviderABIErr
}

type contractCaller interface {
	Call(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...interface{}) ([]interface{}, error)
}

// ContractQuerier reads rates from an EVM rate provider contract. Native
// denoms are passed as the zero address.
type ContractQuerier struct {
	caller contractCaller
	logger *zap.Logger
}

var _ contractCaller = (*chain.Client)(nil)

func NewContractQuerier(caller contractCaller, logger *zap.Logger) *ContractQuerier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContractQuerier{caller: caller, logger: logger}
}

func (q *ContractQuerier) CheckAddress(provider string) error {
	if !common.IsHexAddress(provider) {
		return fmt.Errorf("%s: %w", provider, ErrInvalidProvider)
	}
	return nil
}

func (q *ContractQuerier) QueryExchangeRate(ctx context.Context, provider string, offer, ask model.AssetInfo) (math.LegacyDec, error) {
	if err := q.CheckAddress(provider); err != nil {
		return math.LegacyDec{}, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	if q.caller == nil {
		return math.LegacyDec{}, fmt.Errorf("%w: chain client is nil", ErrQueryFailed)
	}

	parsed, err := RateProviderABI()
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("parse rate provider abi: %w", err)
	}

	values, err := q.caller.Call(ctx, parsed, common.HexToAddress(provider), "getExchangeRate", assetAddress(offer), assetAddress(ask))
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	if len(values) == 0 {
		return math.LegacyDec{}, fmt.Errorf("%w: getExchangeRate returned no values", ErrQueryFailed)
	}
	raw, err := chain.AsBigInt(values[0])
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("%w: rate: %w", ErrQueryFailed, err)
	}

	rate := math.LegacyNewDecFromBigIntWithPrec(raw, rateDecimals)
	if err := validateRate(rate); err != nil {
		return math.LegacyDec{}, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	q.logger.Debug("exchange rate fetched",
		zap.String("provider", provider),
		zap.String("offer", offer.String()),
		zap.String("ask", ask.String()),
		zap.String("rate", rate.String()),
	)
	return rate, nil
}

func assetAddress(info model.AssetInfo) common.Address {
	if info.IsNative() {
		return common.Address{}
	}
	return info.Token
}
