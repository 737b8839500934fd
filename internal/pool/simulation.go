package pool

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"metastablePool/internal/model"
	"metastablePool/internal/stableswap"
)

// Simulation quotes a swap of offer without changing state. A stale rate is
// fetched for the quote but not stored.
func (p *Pool) Simulation(ctx context.Context, env model.Env, offer model.Asset) (model.SimulationResponse, error) {
	tx := p.begin()
	offerIdx, ok := tx.Config.PairInfo.Index(offer.Info)
	if !ok {
		return model.SimulationResponse{}, fmt.Errorf("offer asset %s: %w", offer.Info, model.ErrAssetMismatch)
	}
	if !bothPositive(tx.State.Balances) {
		return model.SimulationResponse{}, ErrEmptyPool
	}

	norm, ampNow, err := p.prepare(ctx, tx, env)
	if err != nil {
		return model.SimulationResponse{}, err
	}
	outcome, err := computeSwap(tx, norm, ampNow, offerIdx, offer.AmountOrZero())
	if err != nil {
		return model.SimulationResponse{}, err
	}
	return model.SimulationResponse{
		ReturnAmount:     outcome.returnAmount,
		SpreadAmount:     outcome.spreadAmount,
		CommissionAmount: outcome.commissionAmount,
	}, nil
}

// ReverseSimulation returns the offer needed to receive ask after commission.
func (p *Pool) ReverseSimulation(ctx context.Context, env model.Env, ask model.Asset) (model.ReverseSimulationResponse, error) {
	tx := p.begin()
	pair := tx.Config.PairInfo
	askIdx, ok := pair.Index(ask.Info)
	if !ok {
		return model.ReverseSimulationResponse{}, fmt.Errorf("ask asset %s: %w", ask.Info, model.ErrAssetMismatch)
	}
	offerIdx := 1 - askIdx
	askAmount := ask.AmountOrZero()
	if askAmount.IsZero() {
		return model.ReverseSimulationResponse{}, ErrInvalidZeroAmount
	}
	if !bothPositive(tx.State.Balances) {
		return model.ReverseSimulationResponse{}, ErrEmptyPool
	}
	if tx.Config.CommissionBps >= bpsDenominator {
		return model.ReverseSimulationResponse{}, fmt.Errorf("commission of 100%%: %w", ErrInvalidConfig)
	}

	norm, ampNow, err := p.prepare(ctx, tx, env)
	if err != nil {
		return model.ReverseSimulationResponse{}, err
	}

	beforeCommission, overflow := new(uint256.Int).MulDivOverflow(
		askAmount,
		uint256.NewInt(bpsDenominator),
		uint256.NewInt(uint64(bpsDenominator-tx.Config.CommissionBps)),
	)
	if overflow {
		return model.ReverseSimulationResponse{}, fmt.Errorf("ask before commission: %w", stableswap.ErrOverflow)
	}

	xp, err := norm.normalizeAll(tx.State.Balances)
	if err != nil {
		return model.ReverseSimulationResponse{}, err
	}
	askN, err := norm.normalize(askIdx, beforeCommission)
	if err != nil {
		return model.ReverseSimulationResponse{}, err
	}
	if askN.Cmp(xp[askIdx]) >= 0 {
		return model.ReverseSimulationResponse{}, ErrAskAmountTooLarge
	}

	d, err := stableswap.ComputeD(ampNow, xp[0], xp[1])
	if err != nil {
		return model.ReverseSimulationResponse{}, fmt.Errorf("compute d: %w", err)
	}
	newAsk := new(uint256.Int).Sub(xp[askIdx], askN)
	newOffer, err := stableswap.ComputeY(ampNow, newAsk, d)
	if err != nil {
		return model.ReverseSimulationResponse{}, fmt.Errorf("compute y: %w", err)
	}

	offerN := new(uint256.Int)
	if newOffer.Cmp(xp[offerIdx]) > 0 {
		offerN.Sub(newOffer, xp[offerIdx])
	}
	offerAmount, err := norm.denormalize(offerIdx, offerN)
	if err != nil {
		return model.ReverseSimulationResponse{}, err
	}

	offerRate, err := tx.Cache.Rate(pair.AssetInfos[offerIdx], pair.AssetInfos[askIdx])
	if err != nil {
		return model.ReverseSimulationResponse{}, err
	}
	expected, err := norm.convert(offerIdx, offerAmount, offerRate)
	if err != nil {
		return model.ReverseSimulationResponse{}, err
	}
	spread := new(uint256.Int)
	if expected.Cmp(beforeCommission) > 0 {
		spread.Sub(expected, beforeCommission)
	}

	return model.ReverseSimulationResponse{
		OfferAmount:      offerAmount,
		SpreadAmount:     spread,
		CommissionAmount: new(uint256.Int).Sub(beforeCommission, askAmount),
	}, nil
}
