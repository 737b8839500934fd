package pool

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"metastablePool/internal/amp"
	"metastablePool/internal/metrics"
	"metastablePool/internal/model"
	"metastablePool/internal/oracle"
	"metastablePool/internal/ratecache"
)

// Instantiate validates msg and creates an empty pool.
func Instantiate(
	_ context.Context,
	env model.Env,
	info model.MessageInfo,
	msg model.InstantiateMsg,
	querier oracle.Querier,
	logger *zap.Logger,
	m *metrics.Metrics,
) (*Pool, Result, error) {
	if msg.InitParams == nil {
		return nil, Result{}, ErrInitParamsNotFound
	}
	params := *msg.InitParams

	assets := msg.AssetInfos
	if assets[0] == assets[1] {
		return nil, Result{}, ErrDoublingAssets
	}
	for i, asset := range assets {
		if asset.IsZero() {
			return nil, Result{}, fmt.Errorf("asset %d is unset: %w", i, ErrInvalidConfig)
		}
		if asset == msg.LiquidityToken {
			return nil, Result{}, fmt.Errorf("liquidity token equals asset %d: %w", i, ErrInvalidConfig)
		}
		if msg.AssetDecimals[i] > MaxDecimals {
			return nil, Result{}, fmt.Errorf("asset %d has %d decimals, max %d: %w", i, msg.AssetDecimals[i], MaxDecimals, ErrInvalidConfig)
		}
	}
	if msg.LiquidityToken.IsZero() {
		return nil, Result{}, fmt.Errorf("liquidity token is unset: %w", ErrInvalidConfig)
	}
	if msg.ContractAddr == "" {
		return nil, Result{}, fmt.Errorf("contract address is unset: %w", ErrInvalidConfig)
	}
	if msg.CommissionBps > bpsDenominator {
		return nil, Result{}, fmt.Errorf("commission %d bps: %w", msg.CommissionBps, ErrInvalidConfig)
	}

	schedule, err := amp.NewFlat(params.Amp, env.Time)
	if err != nil {
		return nil, Result{}, err
	}
	cache, err := ratecache.New(assets, params.ErCacheBTL)
	if err != nil {
		return nil, Result{}, err
	}

	p := New(Snapshot{Cache: cache, State: model.NewState()}, querier, logger, m)
	if err := p.checkProvider(params.ErProviderAddr); err != nil {
		return nil, Result{}, err
	}

	floor := uint256.NewInt(DefaultMinimumLiquidity)
	if msg.MinimumLiquidity != nil {
		floor = msg.MinimumLiquidity.Clone()
	}
	owner := msg.Owner
	if owner == "" {
		owner = info.Sender
	}

	p.snap.Config = model.Config{
		PairInfo: model.PairInfo{
			AssetInfos:     assets,
			AssetDecimals:  msg.AssetDecimals,
			ContractAddr:   msg.ContractAddr,
			LiquidityToken: msg.LiquidityToken,
		},
		Owner:                owner,
		Generator:            msg.Generator,
		BlockTimeLast:        0,
		Price0CumulativeLast: new(uint256.Int),
		Price1CumulativeLast: new(uint256.Int),
		ErProviderAddr:       params.ErProviderAddr,
		Amp:                  schedule,
		CommissionBps:        msg.CommissionBps,
		MinimumLiquidity:     floor,
	}
	m.SetAmp(schedule.InitAmp)

	p.logger.Info("instantiate",
		zap.String("sender", info.Sender),
		zap.String("asset_infos", assets[0].String()+","+assets[1].String()),
		zap.String("er_provider_addr", params.ErProviderAddr),
		zap.Uint64("amp", params.Amp),
		zap.Uint64("er_cache_btl", params.ErCacheBTL),
	)

	return p, Result{
		Action: "instantiate",
		Sender: info.Sender,
		Attributes: map[string]string{
			"contract_addr":    msg.ContractAddr,
			"liquidity_token":  msg.LiquidityToken.String(),
			"er_provider_addr": params.ErProviderAddr,
			"amp":              fmt.Sprint(params.Amp),
		},
	}, nil
}
