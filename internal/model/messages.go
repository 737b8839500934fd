package model

import (
	"cosmossdk.io/math"
	"github.com/holiman/uint256"
)

// MetastablePoolParams are the pool specific instantiate parameters.
type MetastablePoolParams struct {
	Amp            uint64 `json:"amp"`
	ErProviderAddr string `json:"er_provider_addr"`
	ErCacheBTL     uint64 `json:"er_cache_btl"`
}

// InstantiateMsg creates a pool.
type InstantiateMsg struct {
	AssetInfos     [2]AssetInfo `json:"asset_infos"`
	AssetDecimals  [2]uint8     `json:"asset_decimals"`
	ContractAddr   string       `json:"contract_addr"`
	LiquidityToken AssetInfo    `json:"liquidity_token"`
	Owner          string       `json:"owner"`
	Generator      string       `json:"generator,omitempty"`
	CommissionBps  uint16       `json:"commission_bps"`
	// MinimumLiquidity is locked on the first provide. Nil selects the default.
	MinimumLiquidity *uint256.Int          `json:"minimum_liquidity,omitempty"`
	InitParams       *MetastablePoolParams `json:"init_params,omitempty"`
}

// ProvideLiquidityMsg deposits both assets in exchange for shares.
type ProvideLiquidityMsg struct {
	Assets            [2]Asset        `json:"assets"`
	SlippageTolerance *math.LegacyDec `json:"slippage_tolerance,omitempty"`
	AutoStake         bool            `json:"auto_stake,omitempty"`
	Receiver          string          `json:"receiver,omitempty"`
}

// SwapMsg swaps a native offer asset.
type SwapMsg struct {
	OfferAsset  Asset           `json:"offer_asset"`
	BeliefPrice *math.LegacyDec `json:"belief_price,omitempty"`
	MaxSpread   *math.LegacyDec `json:"max_spread,omitempty"`
	To          string          `json:"to,omitempty"`
}

// SwapHook is the token-receive variant of SwapMsg.
type SwapHook struct {
	BeliefPrice *math.LegacyDec `json:"belief_price,omitempty"`
	MaxSpread   *math.LegacyDec `json:"max_spread,omitempty"`
	To          string          `json:"to,omitempty"`
}

// WithdrawLiquidityHook burns the received shares.
type WithdrawLiquidityHook struct{}

// ReceiveHook is the payload of a token transfer to the pool.
type ReceiveHook struct {
	Swap              *SwapHook              `json:"swap,omitempty"`
	WithdrawLiquidity *WithdrawLiquidityHook `json:"withdraw_liquidity,omitempty"`
}

// ReceiveMsg is delivered by a token contract after Amount was sent to the pool.
type ReceiveMsg struct {
	Token  AssetInfo    `json:"token"`
	Sender string       `json:"sender"`
	Amount *uint256.Int `json:"amount"`
	Hook   ReceiveHook  `json:"msg"`
}

// StartChangingAmp begins an amp ramp.
type StartChangingAmp struct {
	NextAmp     uint64 `json:"next_amp"`
	NextAmpTime uint64 `json:"next_amp_time"`
}

// StopChangingAmp freezes the amp.
type StopChangingAmp struct{}

// UpdateRateProvider replaces the exchange rate provider.
type UpdateRateProvider struct {
	Address string `json:"address"`
}

// UpdateErCacheBTL replaces the rate cache blocks-to-live.
type UpdateErCacheBTL struct {
	BTL uint64 `json:"btl"`
}

// UpdateParams holds exactly one parameter change.
type UpdateParams struct {
	StartChangingAmp   *StartChangingAmp   `json:"start_changing_amp,omitempty"`
	StopChangingAmp    *StopChangingAmp    `json:"stop_changing_amp,omitempty"`
	UpdateRateProvider *UpdateRateProvider `json:"update_rate_provider,omitempty"`
	UpdateErCacheBTL   *UpdateErCacheBTL   `json:"update_er_cache_btl,omitempty"`
}

// UpdateConfigMsg changes pool parameters. Owner only.
type UpdateConfigMsg struct {
	Params         *UpdateParams `json:"params,omitempty"`
	ErCacheBTL     *uint64       `json:"er_cache_btl,omitempty"`
	ErProviderAddr *string       `json:"er_provider_addr,omitempty"`
}

// PoolResponse reports balances and total share.
type PoolResponse struct {
	Assets     [2]Asset     `json:"assets"`
	TotalShare *uint256.Int `json:"total_share"`
}

// MetastablePoolConfig is the pool specific part of ConfigResponse.
type MetastablePoolConfig struct {
	Amp            math.LegacyDec `json:"amp"`
	AmpChanging    bool           `json:"amp_changing"`
	ErProviderAddr string         `json:"er_provider_addr"`
	ErCacheBTL     uint64         `json:"er_cache_btl"`
}

// ConfigResponse reports the pool configuration.
type ConfigResponse struct {
	BlockTimeLast    uint64               `json:"block_time_last"`
	Owner            string               `json:"owner"`
	CommissionBps    uint16               `json:"commission_bps"`
	MinimumLiquidity *uint256.Int         `json:"minimum_liquidity"`
	Params           MetastablePoolConfig `json:"params"`
}

// SimulationResponse is the outcome of a simulated swap.
type SimulationResponse struct {
	ReturnAmount     *uint256.Int `json:"return_amount"`
	SpreadAmount     *uint256.Int `json:"spread_amount"`
	CommissionAmount *uint256.Int `json:"commission_amount"`
}

// ReverseSimulationResponse is the offer needed to receive a given ask amount.
type ReverseSimulationResponse struct {
	OfferAmount      *uint256.Int `json:"offer_amount"`
	SpreadAmount     *uint256.Int `json:"spread_amount"`
	CommissionAmount *uint256.Int `json:"commission_amount"`
}

// CumulativePricesResponse reports TWAP accumulators projected to the query time.
type CumulativePricesResponse struct {
	Assets               [2]Asset     `json:"assets"`
	TotalShare           *uint256.Int `json:"total_share"`
	Price0CumulativeLast *uint256.Int `json:"price0_cumulative_last"`
	Price1CumulativeLast *uint256.Int `json:"price1_cumulative_last"`
}
