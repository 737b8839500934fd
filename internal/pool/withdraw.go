package pool

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"metastablePool/internal/ledger"
	"metastablePool/internal/model"
)

// Receive handles a token transfer to the pool: a swap of a pool token or a
// withdrawal of shares.
func (p *Pool) Receive(ctx context.Context, env model.Env, msg model.ReceiveMsg) (Result, error) {
	pair := p.snap.Config.PairInfo
	switch {
	case msg.Hook.Swap != nil && msg.Hook.WithdrawLiquidity == nil:
		if _, ok := pair.Index(msg.Token); !ok || msg.Token.IsNative() {
			return Result{}, ErrUnauthorized
		}
		hook := msg.Hook.Swap
		return p.swap(ctx, env, msg.Sender, model.NewAsset(msg.Token, msg.Amount), hook.BeliefPrice, hook.MaxSpread, hook.To)
	case msg.Hook.WithdrawLiquidity != nil && msg.Hook.Swap == nil:
		if msg.Token != pair.LiquidityToken {
			return Result{}, ErrUnauthorized
		}
		return p.WithdrawLiquidity(ctx, env, msg.Sender, msg.Amount)
	default:
		return Result{}, ErrInvalidHook
	}
}

// WithdrawLiquidity burns share shares already held by the pool and returns
// the pro-rata part of both balances to sender.
func (p *Pool) WithdrawLiquidity(ctx context.Context, env model.Env, sender string, share *uint256.Int) (Result, error) {
	tx := p.begin()
	pair := tx.Config.PairInfo

	if share == nil || share.IsZero() {
		return Result{}, ErrInvalidZeroAmount
	}
	totalShare := tx.State.TotalShare
	if share.Cmp(totalShare) > 0 {
		return Result{}, fmt.Errorf("withdraw %s of %s: %w", share.Dec(), totalShare.Dec(), ErrInsufficientShares)
	}

	if bothPositive(tx.State.Balances) {
		norm, ampNow, err := p.prepare(ctx, tx, env)
		if err != nil {
			return Result{}, err
		}
		if err := accumulatePrices(tx, norm, ampNow, env.Time); err != nil {
			return Result{}, err
		}
	} else if env.Time > tx.Config.BlockTimeLast {
		tx.Config.BlockTimeLast = env.Time
	}

	var refunds [2]*uint256.Int
	for i, balance := range tx.State.Balances {
		refund, _ := new(uint256.Int).MulDivOverflow(balance, share, totalShare)
		refunds[i] = refund
	}

	instructions := []ledger.Instruction{ledger.Burn(pair.LiquidityToken, pair.ContractAddr, share)}
	for i, refund := range refunds {
		if !refund.IsZero() {
			instructions = append(instructions, ledger.Transfer(pair.AssetInfos[i], pair.ContractAddr, sender, refund))
		}
		tx.State.Balances[i] = new(uint256.Int).Sub(tx.State.Balances[i], refund)
	}
	tx.State.TotalShare = new(uint256.Int).Sub(totalShare, share)
	p.commit(tx)

	assets := []model.Asset{
		model.NewAsset(pair.AssetInfos[0], refunds[0]),
		model.NewAsset(pair.AssetInfos[1], refunds[1]),
	}
	p.logger.Info("withdraw liquidity",
		zap.String("sender", sender),
		zap.String("withdrawn_share", share.Dec()),
		zap.String("refund_assets", model.FormatAssets(assets)),
	)

	return Result{
		Action: "withdraw_liquidity",
		Sender: sender,
		Attributes: map[string]string{
			"withdrawn_share": share.Dec(),
			"refund_assets":   model.FormatAssets(assets),
		},
		Instructions: instructions,
		Data:         assets,
	}, nil
}
