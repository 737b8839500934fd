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

type swapOutcome struct {
	returnAmount     *uint256.Int
	spreadAmount     *uint256.Int
	commissionAmount *uint256.Int
}

// Swap exchanges a native offer asset attached to the call.
func (p *Pool) Swap(ctx context.Context, env model.Env, info model.MessageInfo, msg model.SwapMsg) (Result, error) {
	if !msg.OfferAsset.Info.IsNative() {
		return Result{}, fmt.Errorf("token offers must be sent through the receive hook: %w", ErrUnauthorized)
	}
	if info.FundsOf(msg.OfferAsset.Info).Cmp(msg.OfferAsset.AmountOrZero()) != 0 {
		return Result{}, ErrNativeBalanceMismatch
	}
	return p.swap(ctx, env, info.Sender, msg.OfferAsset, msg.BeliefPrice, msg.MaxSpread, msg.To)
}

func (p *Pool) swap(ctx context.Context, env model.Env, sender string, offer model.Asset, beliefPrice, maxSpread *math.LegacyDec, to string) (Result, error) {
	tx := p.begin()
	pair := tx.Config.PairInfo

	offerIdx, ok := pair.Index(offer.Info)
	if !ok {
		return Result{}, fmt.Errorf("offer asset %s: %w", offer.Info, model.ErrAssetMismatch)
	}
	askIdx := 1 - offerIdx
	offerAmount := offer.AmountOrZero()
	if offerAmount.IsZero() {
		return Result{}, ErrInvalidZeroAmount
	}
	if !bothPositive(tx.State.Balances) {
		return Result{}, ErrEmptyPool
	}

	norm, ampNow, err := p.prepare(ctx, tx, env)
	if err != nil {
		return Result{}, err
	}
	if err := accumulatePrices(tx, norm, ampNow, env.Time); err != nil {
		return Result{}, err
	}

	outcome, err := computeSwap(tx, norm, ampNow, offerIdx, offerAmount)
	if err != nil {
		return Result{}, err
	}

	grossReturn := new(uint256.Int).Add(outcome.returnAmount, outcome.commissionAmount)
	if err := assertMaxSpread(beliefPrice, maxSpread, offerAmount, grossReturn, outcome.spreadAmount); err != nil {
		return Result{}, err
	}

	tx.State.Balances[offerIdx] = new(uint256.Int).Add(tx.State.Balances[offerIdx], offerAmount)
	tx.State.Balances[askIdx] = new(uint256.Int).Sub(tx.State.Balances[askIdx], outcome.returnAmount)

	receiver := to
	if receiver == "" {
		receiver = sender
	}

	var instructions []ledger.Instruction
	if !outcome.returnAmount.IsZero() {
		instructions = append(instructions, ledger.Transfer(pair.AssetInfos[askIdx], pair.ContractAddr, receiver, outcome.returnAmount))
	}

	p.commit(tx)

	p.logger.Info("swap",
		zap.String("sender", sender),
		zap.String("receiver", receiver),
		zap.String("offer_asset", offer.Info.String()),
		zap.String("ask_asset", pair.AssetInfos[askIdx].String()),
		zap.String("offer_amount", offerAmount.Dec()),
		zap.String("return_amount", outcome.returnAmount.Dec()),
		zap.String("spread_amount", outcome.spreadAmount.Dec()),
		zap.String("commission_amount", outcome.commissionAmount.Dec()),
	)

	return Result{
		Action: "swap",
		Sender: sender,
		Attributes: map[string]string{
			"receiver":          receiver,
			"offer_asset":       offer.Info.String(),
			"ask_asset":         pair.AssetInfos[askIdx].String(),
			"offer_amount":      offerAmount.Dec(),
			"return_amount":     outcome.returnAmount.Dec(),
			"spread_amount":     outcome.spreadAmount.Dec(),
			"commission_amount": outcome.commissionAmount.Dec(),
		},
		Instructions: instructions,
		Data: model.SimulationResponse{
			ReturnAmount:     outcome.returnAmount,
			SpreadAmount:     outcome.spreadAmount,
			CommissionAmount: outcome.commissionAmount,
		},
	}, nil
}

// curveReturn is the raw amount of the other asset received for offerAmount of
// asset offerIdx, before commission.
func curveReturn(norm normalizer, ampNow uint64, balances [2]*uint256.Int, offerIdx int, offerAmount *uint256.Int) (*uint256.Int, error) {
	askIdx := 1 - offerIdx

	xp, err := norm.normalizeAll(balances)
	if err != nil {
		return nil, err
	}
	offerN, err := norm.normalize(offerIdx, offerAmount)
	if err != nil {
		return nil, err
	}

	d, err := stableswap.ComputeD(ampNow, xp[0], xp[1])
	if err != nil {
		return nil, fmt.Errorf("compute d: %w", err)
	}
	newX, overflow := new(uint256.Int).AddOverflow(xp[offerIdx], offerN)
	if overflow {
		return nil, fmt.Errorf("new offer balance: %w", stableswap.ErrOverflow)
	}
	y, err := stableswap.ComputeY(ampNow, newX, d)
	if err != nil {
		return nil, fmt.Errorf("compute y: %w", err)
	}

	returnN := new(uint256.Int)
	if y.Cmp(xp[askIdx]) < 0 {
		returnN.Sub(xp[askIdx], y)
	}
	return norm.denormalize(askIdx, returnN)
}

func computeSwap(tx *Snapshot, norm normalizer, ampNow uint64, offerIdx int, offerAmount *uint256.Int) (swapOutcome, error) {
	pair := tx.Config.PairInfo
	askIdx := 1 - offerIdx

	ret, err := curveReturn(norm, ampNow, tx.State.Balances, offerIdx, offerAmount)
	if err != nil {
		return swapOutcome{}, err
	}

	offerRate, err := tx.Cache.Rate(pair.AssetInfos[offerIdx], pair.AssetInfos[askIdx])
	if err != nil {
		return swapOutcome{}, err
	}
	expected, err := norm.convert(offerIdx, offerAmount, offerRate)
	if err != nil {
		return swapOutcome{}, err
	}

	spread := new(uint256.Int)
	if expected.Cmp(ret) > 0 {
		spread.Sub(expected, ret)
	}

	commission := commissionOf(ret, tx.Config.CommissionBps)
	return swapOutcome{
		returnAmount:     new(uint256.Int).Sub(ret, commission),
		spreadAmount:     spread,
		commissionAmount: commission,
	}, nil
}

func commissionOf(amount *uint256.Int, bps uint16) *uint256.Int {
	// bps never exceeds the denominator, so the result fits.
	v, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(uint64(bps)), uint256.NewInt(bpsDenominator))
	return v
}

// assertMaxSpread rejects swaps whose realized price is worse than the
// caller's bounds. returnAmount is the output before commission.
func assertMaxSpread(beliefPrice, maxSpread *math.LegacyDec, offerAmount, returnAmount, spreadAmount *uint256.Int) error {
	limit := DefaultMaxSpread
	if maxSpread != nil {
		limit = *maxSpread
	}
	if limit.IsNil() || limit.IsNegative() || limit.GT(MaxAllowedSpread) {
		return ErrAllowedSpreadAssertion
	}

	if beliefPrice != nil {
		if beliefPrice.IsNil() || !beliefPrice.IsPositive() {
			return ErrInvalidBeliefPrice
		}
		expected := decFromUint(offerAmount).Quo(*beliefPrice).TruncateInt()
		expectedU, overflow := uint256.FromBig(expected.BigInt())
		if overflow {
			return fmt.Errorf("expected return: %w", stableswap.ErrOverflow)
		}
		if returnAmount.Cmp(expectedU) < 0 {
			shortfall := new(uint256.Int).Sub(expectedU, returnAmount)
			if decFromUint(shortfall).QuoTruncate(decFromUint(expectedU)).GT(limit) {
				return ErrMaxSlippageAssertion
			}
		}
		return nil
	}

	total := new(uint256.Int).Add(returnAmount, spreadAmount)
	if total.IsZero() {
		return nil
	}
	if decFromUint(spreadAmount).QuoTruncate(decFromUint(total)).GT(limit) {
		return ErrMaxSpreadAssertion
	}
	return nil
}
