package pool

import (
	"context"

	"github.com/holiman/uint256"

	"metastablePool/internal/model"
)

// PoolInfo reports balances and total share.
func (p *Pool) PoolInfo() model.PoolResponse {
	return model.PoolResponse{
		Assets:     p.poolAssets(p.snap.State),
		TotalShare: p.snap.State.TotalShare.Clone(),
	}
}

// PairInfo returns the static pair description.
func (p *Pool) PairInfo() model.PairInfo {
	return p.snap.Config.PairInfo
}

// CumulativePrices reports the price accumulators advanced to env.Time as if a
// state-changing operation happened now.
func (p *Pool) CumulativePrices(ctx context.Context, env model.Env) (model.CumulativePricesResponse, error) {
	tx := p.begin()
	if env.Time > tx.Config.BlockTimeLast && bothPositive(tx.State.Balances) {
		norm, ampNow, err := p.prepare(ctx, tx, env)
		if err != nil {
			return model.CumulativePricesResponse{}, err
		}
		if err := accumulatePrices(tx, norm, ampNow, env.Time); err != nil {
			return model.CumulativePricesResponse{}, err
		}
	}
	return model.CumulativePricesResponse{
		Assets:               p.poolAssets(tx.State),
		TotalShare:           tx.State.TotalShare.Clone(),
		Price0CumulativeLast: new(uint256.Int).Set(tx.Config.Price0CumulativeLast),
		Price1CumulativeLast: new(uint256.Int).Set(tx.Config.Price1CumulativeLast),
	}, nil
}
