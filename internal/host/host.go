// Package host executes pool operations one at a time against persisted state.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"metastablePool/internal/ledger"
	"metastablePool/internal/metrics"
	"metastablePool/internal/model"
	"metastablePool/internal/oracle"
	"metastablePool/internal/pool"
	"metastablePool/internal/storage"
)

var (
	ErrNotInstantiated     = errors.New("pool is not instantiated")
	ErrAlreadyInstantiated = errors.New("pool is already instantiated")
)

// Options configures a Host.
type Options struct {
	Store   storage.Store
	Querier oracle.Querier
	Env     EnvSource
	Journal *storage.Journal
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Host owns the persisted pool and the token ledger. Every operation loads
// state, runs, moves tokens and commits under one lock.
type Host struct {
	mu      sync.Mutex
	store   storage.Store
	querier oracle.Querier
	env     EnvSource
	journal *storage.Journal
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(opts Options) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		store:   opts.Store,
		querier: opts.Querier,
		env:     opts.Env,
		journal: opts.Journal,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Classify extends pool.Classify with host errors.
func Classify(err error) pool.ErrorClass {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotInstantiated), errors.Is(err, ErrAlreadyInstantiated),
		errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrInvalidInstruction):
		return pool.ClassConfig
	default:
		return pool.Classify(err)
	}
}

type loaded struct {
	snap pool.Snapshot
	bank *ledger.Bank
}

func (h *Host) load(ctx context.Context) (loaded, bool, error) {
	var snap pool.Snapshot
	found, err := h.store.Load(ctx, storage.KeyConfig, &snap.Config)
	if err != nil {
		return loaded{}, false, fmt.Errorf("load config: %w", err)
	}
	bank := ledger.NewBank()
	var holdings ledger.Snapshot
	if _, err := h.store.Load(ctx, storage.KeyLedger, &holdings); err != nil {
		return loaded{}, false, fmt.Errorf("load ledger: %w", err)
	}
	bank.Restore(holdings)
	if !found {
		return loaded{bank: bank}, false, nil
	}
	if err := snap.Config.Amp.Validate(); err != nil {
		return loaded{}, false, fmt.Errorf("load config: amp schedule: %w", err)
	}

	if _, err := h.store.Load(ctx, storage.KeyState, &snap.State); err != nil {
		return loaded{}, false, fmt.Errorf("load pool state: %w", err)
	}
	if _, err := h.store.Load(ctx, storage.KeyCache, &snap.Cache); err != nil {
		return loaded{}, false, fmt.Errorf("load rate cache: %w", err)
	}
	snap.State = snap.State.Clone()
	return loaded{snap: snap, bank: bank}, true, nil
}

func (h *Host) commit(ctx context.Context, snap pool.Snapshot, bank *ledger.Bank) error {
	return h.store.Commit(ctx, map[string]any{
		storage.KeyConfig: snap.Config,
		storage.KeyCache:  snap.Cache,
		storage.KeyState:  snap.State,
		storage.KeyLedger: bank.Snapshot(),
	})
}

// deposit is a token movement into the pool that precedes the operation.
type deposit struct {
	from  string
	asset model.Asset
}

// execute runs op against freshly loaded state. Nothing is persisted unless
// the operation and every resulting token movement succeed.
func (h *Host) execute(ctx context.Context, action, sender string, deposits []deposit, op func(p *pool.Pool, env model.Env) (pool.Result, error)) (res pool.Result, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	defer func() {
		h.metrics.ObserveOperation(action, string(Classify(err)), time.Since(start))
		if err != nil {
			h.logger.Warn("operation rejected",
				zap.String("action", action),
				zap.String("sender", sender),
				zap.String("class", string(Classify(err))),
				zap.Error(err),
			)
		}
	}()

	env, err := h.env.Env(ctx)
	if err != nil {
		return pool.Result{}, err
	}
	state, found, err := h.load(ctx)
	if err != nil {
		return pool.Result{}, err
	}
	if !found {
		return pool.Result{}, ErrNotInstantiated
	}

	contract := state.snap.Config.PairInfo.ContractAddr
	var moves []ledger.Instruction
	for _, d := range deposits {
		if d.asset.AmountOrZero().IsZero() {
			continue
		}
		moves = append(moves, ledger.Transfer(d.asset.Info, d.from, contract, d.asset.AmountOrZero()))
	}
	if err := state.bank.Apply(moves); err != nil {
		return pool.Result{}, fmt.Errorf("collect deposits: %w", err)
	}

	p := pool.New(state.snap, h.querier, h.logger, h.metrics)
	res, err = op(p, env)
	if err != nil {
		return pool.Result{}, err
	}
	if err := state.bank.Apply(res.Instructions); err != nil {
		return pool.Result{}, fmt.Errorf("apply %s instructions: %w", action, err)
	}
	if err := h.commit(ctx, p.Snapshot(), state.bank); err != nil {
		return pool.Result{}, fmt.Errorf("commit %s: %w", action, err)
	}
	h.record(env, res)
	return res, nil
}

func (h *Host) record(env model.Env, res pool.Result) {
	if h.journal == nil {
		return
	}
	event := model.Event{
		Height:     env.Height,
		Time:       env.Time,
		Action:     res.Action,
		Sender:     res.Sender,
		Attributes: res.Attributes,
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	// State is committed at this point; journal errors are only logged.
	if err := h.journal.Append(event); err != nil {
		h.logger.Error("journal event", zap.String("action", res.Action), zap.Error(err))
	}
}

// Instantiate creates the pool. It fails if a pool already exists in the store.
func (h *Host) Instantiate(ctx context.Context, info model.MessageInfo, msg model.InstantiateMsg) (res pool.Result, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	start := time.Now()
	defer func() {
		h.metrics.ObserveOperation("instantiate", string(Classify(err)), time.Since(start))
	}()

	env, err := h.env.Env(ctx)
	if err != nil {
		return pool.Result{}, err
	}
	state, found, err := h.load(ctx)
	if err != nil {
		return pool.Result{}, err
	}
	if found {
		return pool.Result{}, ErrAlreadyInstantiated
	}

	p, res, err := pool.Instantiate(ctx, env, info, msg, h.querier, h.logger, h.metrics)
	if err != nil {
		h.logger.Warn("instantiate rejected", zap.String("class", string(Classify(err))), zap.Error(err))
		return pool.Result{}, err
	}
	if err := h.commit(ctx, p.Snapshot(), state.bank); err != nil {
		return pool.Result{}, fmt.Errorf("commit instantiate: %w", err)
	}
	h.record(env, res)
	return res, nil
}

// Fund mints amount of a pool asset to holder. It is the development faucet
// used to seed accounts before they trade.
func (h *Host) Fund(ctx context.Context, holder string, asset model.Asset) error {
	if holder == "" || asset.AmountOrZero().IsZero() {
		return fmt.Errorf("fund: %w", ledger.ErrInvalidInstruction)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state, found, err := h.load(ctx)
	if err != nil {
		return err
	}
	if found && asset.Info == state.snap.Config.PairInfo.LiquidityToken {
		return fmt.Errorf("fund share token: %w", ledger.ErrInvalidInstruction)
	}
	if err := state.bank.Apply([]ledger.Instruction{ledger.Mint(asset.Info, holder, asset.AmountOrZero())}); err != nil {
		return err
	}
	if err := h.store.Commit(ctx, map[string]any{storage.KeyLedger: state.bank.Snapshot()}); err != nil {
		return fmt.Errorf("commit fund: %w", err)
	}
	h.logger.Info("fund", zap.String("holder", holder), zap.String("asset", asset.String()))
	return nil
}

// ProvideLiquidity moves the attached native funds into the pool and deposits.
func (h *Host) ProvideLiquidity(ctx context.Context, info model.MessageInfo, msg model.ProvideLiquidityMsg) (pool.Result, error) {
	return h.execute(ctx, "provide_liquidity", info.Sender, nativeDeposits(info), func(p *pool.Pool, env model.Env) (pool.Result, error) {
		return p.ProvideLiquidity(ctx, env, info, msg)
	})
}

// Swap swaps a native offer attached to the call.
func (h *Host) Swap(ctx context.Context, info model.MessageInfo, msg model.SwapMsg) (pool.Result, error) {
	return h.execute(ctx, "swap", info.Sender, nativeDeposits(info), func(p *pool.Pool, env model.Env) (pool.Result, error) {
		return p.Swap(ctx, env, info, msg)
	})
}

// Receive sends amount of a token from sender to the pool and runs the hook.
func (h *Host) Receive(ctx context.Context, msg model.ReceiveMsg) (pool.Result, error) {
	action := "receive"
	switch {
	case msg.Hook.Swap != nil:
		action = "swap"
	case msg.Hook.WithdrawLiquidity != nil:
		action = "withdraw_liquidity"
	}
	if msg.Token.IsNative() {
		return pool.Result{}, fmt.Errorf("receive native asset %s: %w", msg.Token, pool.ErrUnauthorized)
	}
	deposits := []deposit{{from: msg.Sender, asset: model.NewAsset(msg.Token, msg.Amount)}}
	return h.execute(ctx, action, msg.Sender, deposits, func(p *pool.Pool, env model.Env) (pool.Result, error) {
		return p.Receive(ctx, env, msg)
	})
}

// WithdrawLiquidity returns share shares of sender to the pool and burns them.
func (h *Host) WithdrawLiquidity(ctx context.Context, sender string, share *uint256.Int) (pool.Result, error) {
	h.mu.Lock()
	token, err := h.shareToken(ctx)
	h.mu.Unlock()
	if err != nil {
		return pool.Result{}, err
	}
	return h.Receive(ctx, model.ReceiveMsg{
		Token:  token,
		Sender: sender,
		Amount: share,
		Hook:   model.ReceiveHook{WithdrawLiquidity: &model.WithdrawLiquidityHook{}},
	})
}

// UpdateConfig changes pool parameters.
func (h *Host) UpdateConfig(ctx context.Context, info model.MessageInfo, msg model.UpdateConfigMsg) (pool.Result, error) {
	return h.execute(ctx, "update_config", info.Sender, nil, func(p *pool.Pool, env model.Env) (pool.Result, error) {
		return p.UpdateConfig(ctx, env, info, msg)
	})
}

func (h *Host) shareToken(ctx context.Context) (model.AssetInfo, error) {
	state, found, err := h.load(ctx)
	if err != nil {
		return model.AssetInfo{}, err
	}
	if !found {
		return model.AssetInfo{}, ErrNotInstantiated
	}
	return state.snap.Config.PairInfo.LiquidityToken, nil
}

// query runs fn against the committed state without persisting anything.
func (h *Host) query(ctx context.Context, fn func(p *pool.Pool, env model.Env, bank *ledger.Bank) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	env, err := h.env.Env(ctx)
	if err != nil {
		return err
	}
	state, found, err := h.load(ctx)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotInstantiated
	}
	return fn(pool.New(state.snap, h.querier, h.logger, nil), env, state.bank)
}

func (h *Host) Pool(ctx context.Context) (out model.PoolResponse, err error) {
	err = h.query(ctx, func(p *pool.Pool, _ model.Env, _ *ledger.Bank) error {
		out = p.PoolInfo()
		return nil
	})
	return out, err
}

func (h *Host) Config(ctx context.Context) (out model.ConfigResponse, err error) {
	err = h.query(ctx, func(p *pool.Pool, env model.Env, _ *ledger.Bank) error {
		out = p.Config(env)
		return nil
	})
	return out, err
}

func (h *Host) Simulation(ctx context.Context, offer model.Asset) (out model.SimulationResponse, err error) {
	err = h.query(ctx, func(p *pool.Pool, env model.Env, _ *ledger.Bank) error {
		out, err = p.Simulation(ctx, env, offer)
		return err
	})
	return out, err
}

func (h *Host) ReverseSimulation(ctx context.Context, ask model.Asset) (out model.ReverseSimulationResponse, err error) {
	err = h.query(ctx, func(p *pool.Pool, env model.Env, _ *ledger.Bank) error {
		out, err = p.ReverseSimulation(ctx, env, ask)
		return err
	})
	return out, err
}

func (h *Host) CumulativePrices(ctx context.Context) (out model.CumulativePricesResponse, err error) {
	err = h.query(ctx, func(p *pool.Pool, env model.Env, _ *ledger.Bank) error {
		out, err = p.CumulativePrices(ctx, env)
		return err
	})
	return out, err
}

// Balance returns holder's ledger balance of asset.
func (h *Host) Balance(ctx context.Context, asset model.AssetInfo, holder string) (*uint256.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, _, err := h.load(ctx)
	if err != nil {
		return nil, err
	}
	return state.bank.Balance(asset, holder), nil
}

func nativeDeposits(info model.MessageInfo) []deposit {
	deposits := make([]deposit, 0, len(info.Funds))
	for _, coin := range info.Funds {
		if coin.Info.IsNative() {
			deposits = append(deposits, deposit{from: info.Sender, asset: coin})
		}
	}
	return deposits
}
