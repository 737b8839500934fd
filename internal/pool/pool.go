// Package pool implements liquidity accounting for a metastable StableSwap
// pool whose assets are priced against each other by an external rate oracle.
package pool

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"metastablePool/internal/ledger"
	"metastablePool/internal/metrics"
	"metastablePool/internal/model"
	"metastablePool/internal/oracle"
	"metastablePool/internal/ratecache"
)

const (
	// TWAPPrecision is the number of decimals of cumulative prices.
	TWAPPrecision = 6
	// DefaultMinimumLiquidity is the share floor locked by the first provide.
	DefaultMinimumLiquidity = 1000
	// MaxDecimals bounds asset precision.
	MaxDecimals = 36
	// bpsDenominator is 100% in basis points.
	bpsDenominator = 10_000
)

var (
	DefaultMaxSpread = math.LegacyNewDecWithPrec(5, 3)
	MaxAllowedSpread = math.LegacyNewDecWithPrec(5, 1)
)

// Snapshot is the complete persisted state of a pool.
type Snapshot struct {
	Config model.Config    `json:"config"`
	State  model.State     `json:"state"`
	Cache  ratecache.Entry `json:"er_cache"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{Config: s.Config.Clone(), State: s.State.Clone(), Cache: s.Cache}
}

// Result is what a successful execute operation hands back to the host.
type Result struct {
	Action       string
	Sender       string
	Attributes   map[string]string
	Instructions []ledger.Instruction
	Data         any
}

// Pool executes operations against one snapshot. Every operation works on a
// staged copy and only replaces the live snapshot when it succeeds.
type Pool struct {
	snap    Snapshot
	querier oracle.Querier
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(snap Snapshot, querier oracle.Querier, logger *zap.Logger, m *metrics.Metrics) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{snap: snap.Clone(), querier: querier, logger: logger, metrics: m}
}

// Snapshot returns a copy of the committed state.
func (p *Pool) Snapshot() Snapshot {
	return p.snap.Clone()
}

func (p *Pool) begin() *Snapshot {
	tx := p.snap.Clone()
	return &tx
}

func (p *Pool) commit(tx *Snapshot) {
	p.snap = *tx
}

// rate returns the asset0->asset1 rate at height, refreshing tx's cache entry when stale.
func (p *Pool) rate(ctx context.Context, tx *Snapshot, height uint64) (math.LegacyDec, error) {
	assets := tx.Config.PairInfo.AssetInfos
	provider := tx.Config.ErProviderAddr
	fetch := func(ctx context.Context, offer, ask model.AssetInfo) (math.LegacyDec, error) {
		if p.querier == nil {
			return math.LegacyDec{}, fmt.Errorf("%w: no querier configured", oracle.ErrQueryFailed)
		}
		return p.querier.QueryExchangeRate(ctx, provider, offer, ask)
	}

	rate, refreshed, err := tx.Cache.Get(ctx, assets[0], assets[1], height, fetch)
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("resolve exchange rate: %w", err)
	}
	if refreshed {
		p.metrics.RateRefreshed()
		p.logger.Debug("exchange rate refreshed",
			zap.String("provider", provider),
			zap.String("rate", rate.String()),
			zap.Uint64("height", height),
		)
	}
	return rate, nil
}

// prepare resolves the rate and amp in effect for env and builds a normalizer.
func (p *Pool) prepare(ctx context.Context, tx *Snapshot, env model.Env) (normalizer, uint64, error) {
	rate, err := p.rate(ctx, tx, env.Height)
	if err != nil {
		return normalizer{}, 0, err
	}
	norm, err := newNormalizer(tx.Config.PairInfo.AssetDecimals, rate)
	if err != nil {
		return normalizer{}, 0, err
	}
	return norm, tx.Config.Amp.Current(env.Time), nil
}

func (p *Pool) poolAssets(state model.State) [2]model.Asset {
	infos := p.snap.Config.PairInfo.AssetInfos
	return [2]model.Asset{
		model.NewAsset(infos[0], state.Balances[0].Clone()),
		model.NewAsset(infos[1], state.Balances[1].Clone()),
	}
}

func bothPositive(balances [2]*uint256.Int) bool {
	return !balances[0].IsZero() && !balances[1].IsZero()
}
