package pool

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"metastablePool/internal/ledger"
	"metastablePool/internal/model"
	"metastablePool/internal/stableswap"
)

// ProvideLiquidity deposits both pool assets and mints shares in proportion
// to the growth of the invariant.
func (p *Pool) ProvideLiquidity(ctx context.Context, env model.Env, info model.MessageInfo, msg model.ProvideLiquidityMsg) (Result, error) {
	tx := p.begin()
	pair := tx.Config.PairInfo

	deposits, err := orderDeposits(pair, msg.Assets)
	if err != nil {
		return Result{}, err
	}
	if deposits[0].IsZero() && deposits[1].IsZero() {
		return Result{}, ErrInvalidZeroAmount
	}
	for i, asset := range pair.AssetInfos {
		if asset.IsNative() && info.FundsOf(asset).Cmp(deposits[i]) != 0 {
			return Result{}, ErrNativeBalanceMismatch
		}
	}

	firstDeposit := tx.State.Empty()
	if firstDeposit && (deposits[0].IsZero() || deposits[1].IsZero()) {
		return Result{}, ErrInvalidZeroAmount
	}

	tolerance, err := slippageTolerance(msg.SlippageTolerance)
	if err != nil {
		return Result{}, err
	}

	receiver := msg.Receiver
	if receiver == "" {
		receiver = info.Sender
	}
	if msg.AutoStake && tx.Config.Generator == "" {
		return Result{}, ErrAutoStake
	}

	norm, ampNow, err := p.prepare(ctx, tx, env)
	if err != nil {
		return Result{}, err
	}
	if err := accumulatePrices(tx, norm, ampNow, env.Time); err != nil {
		return Result{}, err
	}

	oldBalances := tx.State.Balances
	var newBalances [2]*uint256.Int
	for i := range newBalances {
		v, overflow := new(uint256.Int).AddOverflow(oldBalances[i], deposits[i])
		if overflow {
			return Result{}, fmt.Errorf("deposit %d: %w", i, stableswap.ErrOverflow)
		}
		newBalances[i] = v
	}

	xpOld, err := norm.normalizeAll(oldBalances)
	if err != nil {
		return Result{}, err
	}
	xpNew, err := norm.normalizeAll(newBalances)
	if err != nil {
		return Result{}, err
	}

	dBefore := new(uint256.Int)
	if !firstDeposit {
		if dBefore, err = stableswap.ComputeD(ampNow, xpOld[0], xpOld[1]); err != nil {
			return Result{}, fmt.Errorf("compute d before: %w", err)
		}
	}
	dAfter, err := stableswap.ComputeD(ampNow, xpNew[0], xpNew[1])
	if err != nil {
		return Result{}, fmt.Errorf("compute d after: %w", err)
	}

	var instructions []ledger.Instruction
	for i, asset := range pair.AssetInfos {
		if !asset.IsNative() && !deposits[i].IsZero() {
			instructions = append(instructions, ledger.Transfer(asset, info.Sender, pair.ContractAddr, deposits[i]))
		}
	}

	totalShare := tx.State.TotalShare
	var share *uint256.Int
	if firstDeposit {
		floor := tx.Config.MinimumLiquidity
		if dAfter.Cmp(floor) <= 0 {
			return Result{}, ErrLiquidityAmountTooSmall
		}
		share = new(uint256.Int).Sub(dAfter, floor)
		if !floor.IsZero() {
			instructions = append(instructions, ledger.Mint(pair.LiquidityToken, pair.ContractAddr, floor))
		}
		totalShare = dAfter.Clone()
	} else {
		if dBefore.IsZero() {
			return Result{}, fmt.Errorf("invariant of funded pool: %w", stableswap.ErrZeroBalance)
		}
		growth := new(uint256.Int).Sub(dAfter, dBefore)
		var overflow bool
		if share, overflow = new(uint256.Int).MulDivOverflow(totalShare, growth, dBefore); overflow {
			return Result{}, fmt.Errorf("mint amount: %w", stableswap.ErrOverflow)
		}
		if share.IsZero() {
			return Result{}, ErrLiquidityAmountTooSmall
		}
		if err := assertSlippageTolerance(tolerance, share, totalShare, xpOld, xpNew); err != nil {
			return Result{}, err
		}
		totalShare = new(uint256.Int).Add(totalShare, share)
	}

	mintTo := receiver
	if msg.AutoStake {
		mintTo = tx.Config.Generator
	}
	instructions = append(instructions, ledger.Mint(pair.LiquidityToken, mintTo, share))

	tx.State.Balances = newBalances
	tx.State.TotalShare = totalShare
	p.commit(tx)

	assets := []model.Asset{
		model.NewAsset(pair.AssetInfos[0], deposits[0]),
		model.NewAsset(pair.AssetInfos[1], deposits[1]),
	}
	p.logger.Info("provide liquidity",
		zap.String("sender", info.Sender),
		zap.String("receiver", receiver),
		zap.String("assets", model.FormatAssets(assets)),
		zap.String("share", share.Dec()),
		zap.Bool("auto_stake", msg.AutoStake),
	)

	return Result{
		Action: "provide_liquidity",
		Sender: info.Sender,
		Attributes: map[string]string{
			"receiver": receiver,
			"assets":   model.FormatAssets(assets),
			"share":    share.Dec(),
		},
		Instructions: instructions,
		Data:         share,
	}, nil
}

// orderDeposits matches provided assets to the pool's asset order.
func orderDeposits(pair model.PairInfo, assets [2]model.Asset) ([2]*uint256.Int, error) {
	var deposits [2]*uint256.Int
	for _, asset := range assets {
		idx, ok := pair.Index(asset.Info)
		if !ok || deposits[idx] != nil {
			return deposits, ErrWrongAssetInfo
		}
		deposits[idx] = asset.AmountOrZero().Clone()
	}
	return deposits, nil
}

func slippageTolerance(tol *math.LegacyDec) (*math.LegacyDec, error) {
	if tol == nil {
		return nil, nil
	}
	if tol.IsNil() || tol.IsNegative() || tol.GT(MaxAllowedSpread) {
		return nil, ErrAllowedSpreadAssertion
	}
	return tol, nil
}

// assertSlippageTolerance compares minted shares with the shares the deposit
// would be worth at the pool's current normalized composition.
func assertSlippageTolerance(tol *math.LegacyDec, share, totalShare *uint256.Int, xpOld, xpNew [2]*uint256.Int) error {
	if tol == nil {
		return nil
	}
	poolValue := new(uint256.Int).Add(xpOld[0], xpOld[1])
	if poolValue.IsZero() {
		return nil
	}
	depositValue := new(uint256.Int).Sub(new(uint256.Int).Add(xpNew[0], xpNew[1]), poolValue)
	ideal, overflow := new(uint256.Int).MulDivOverflow(totalShare, depositValue, poolValue)
	if overflow {
		return fmt.Errorf("ideal share: %w", stableswap.ErrOverflow)
	}

	minimum := decFromUint(ideal).Mul(math.LegacyOneDec().Sub(*tol))
	if decFromUint(share).LT(minimum) {
		return ErrAllowedSpreadAssertion
	}
	return nil
}
