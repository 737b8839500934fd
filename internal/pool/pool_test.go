package pool

import (
	"context"
	"errors"
	"testing"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"metastablePool/internal/amp"
	"metastablePool/internal/ledger"
	"metastablePool/internal/model"
	"metastablePool/internal/oracle"
	"metastablePool/internal/ratecache"
	"metastablePool/internal/stableswap"
)

const (
	owner     = "owner"
	alice     = "alice"
	bob       = "bob"
	poolAddr  = "pool"
	rateAddr  = "rate-provider"
	startTime = 1000
)

var (
	uluna      = model.NativeAsset("uluna")
	uusd       = model.NativeAsset("uusd")
	tokenX     = model.TokenAsset(common.HexToAddress("0x00000000000000000000000000000000000000a1"))
	shareToken = model.TokenAsset(common.HexToAddress("0x00000000000000000000000000000000000000ff"))
)

type fixture struct {
	pool     *Pool
	registry *oracle.Registry
	fixed    *oracle.Fixed
}

type poolOpts struct {
	assets    [2]model.AssetInfo
	decimals  [2]uint8
	rate      math.LegacyDec
	bps       uint16
	floor     *uint256.Int
	generator string
}

func defaultOpts() poolOpts {
	return poolOpts{
		assets:   [2]model.AssetInfo{uluna, uusd},
		decimals: [2]uint8{6, 6},
		rate:     math.LegacyOneDec(),
		bps:      30,
	}
}

func newFixture(t *testing.T, opts poolOpts) *fixture {
	t.Helper()

	fixed, err := oracle.NewFixed(opts.assets, opts.rate)
	require.NoError(t, err)
	registry := oracle.NewRegistry()
	registry.Register(rateAddr, fixed)

	p, res, err := Instantiate(context.Background(), env(1, startTime), model.MessageInfo{Sender: owner}, model.InstantiateMsg{
		AssetInfos:       opts.assets,
		AssetDecimals:    opts.decimals,
		ContractAddr:     poolAddr,
		LiquidityToken:   shareToken,
		Generator:        opts.generator,
		CommissionBps:    opts.bps,
		MinimumLiquidity: opts.floor,
		InitParams: &model.MetastablePoolParams{
			Amp:            100,
			ErProviderAddr: rateAddr,
			ErCacheBTL:     10,
		},
	}, registry, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "instantiate", res.Action)

	return &fixture{pool: p, registry: registry, fixed: fixed}
}

func env(height, time uint64) model.Env {
	return model.Env{Height: height, Time: time}
}

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func dec(s string) *math.LegacyDec {
	d := math.LegacyMustNewDecFromStr(s)
	return &d
}

// provide deposits native amounts of both assets from sender.
func (f *fixture) provide(t *testing.T, e model.Env, sender string, a0, a1 uint64, tol *math.LegacyDec) (Result, error) {
	t.Helper()
	infos := f.pool.PairInfo().AssetInfos
	var funds []model.Asset
	for i, amount := range []uint64{a0, a1} {
		if infos[i].IsNative() {
			funds = append(funds, model.NewAsset(infos[i], u(amount)))
		}
	}
	return f.pool.ProvideLiquidity(context.Background(), e, model.MessageInfo{Sender: sender, Funds: funds}, model.ProvideLiquidityMsg{
		Assets:            [2]model.Asset{model.NewAsset(infos[0], u(a0)), model.NewAsset(infos[1], u(a1))},
		SlippageTolerance: tol,
	})
}

func (f *fixture) swap(t *testing.T, e model.Env, sender string, offer model.AssetInfo, amount uint64, msg model.SwapMsg) (Result, error) {
	t.Helper()
	msg.OfferAsset = model.NewAsset(offer, u(amount))
	info := model.MessageInfo{Sender: sender, Funds: []model.Asset{model.NewAsset(offer, u(amount))}}
	return f.pool.Swap(context.Background(), e, info, msg)
}

func (f *fixture) withdraw(e model.Env, sender string, share uint64) (Result, error) {
	return f.pool.Receive(context.Background(), e, model.ReceiveMsg{
		Token:  shareToken,
		Sender: sender,
		Amount: u(share),
		Hook:   model.ReceiveHook{WithdrawLiquidity: &model.WithdrawLiquidityHook{}},
	})
}

func requireBalances(t *testing.T, p *Pool, b0, b1, total uint64) {
	t.Helper()
	state := p.Snapshot().State
	require.Equal(t, u(b0), state.Balances[0])
	require.Equal(t, u(b1), state.Balances[1])
	require.Equal(t, u(total), state.TotalShare)
}

func TestInstantiateDefaults(t *testing.T) {
	f := newFixture(t, defaultOpts())
	cfg := f.pool.Snapshot().Config

	require.Equal(t, owner, cfg.Owner)
	require.Equal(t, u(DefaultMinimumLiquidity), cfg.MinimumLiquidity)
	require.Equal(t, uint64(100*stableswap.AmpPrecision), cfg.Amp.Current(startTime))
	require.True(t, f.pool.Snapshot().Cache.IsEmpty())
	require.Equal(t, uint64(10), f.pool.Snapshot().Cache.BTL)
	require.True(t, f.pool.Snapshot().State.Empty())
}

func TestInstantiateValidation(t *testing.T) {
	registry := oracle.NewRegistry()
	fixed, err := oracle.NewFixed([2]model.AssetInfo{uluna, uusd}, math.LegacyOneDec())
	require.NoError(t, err)
	registry.Register(rateAddr, fixed)

	valid := func() model.InstantiateMsg {
		return model.InstantiateMsg{
			AssetInfos:     [2]model.AssetInfo{uluna, uusd},
			AssetDecimals:  [2]uint8{6, 6},
			ContractAddr:   poolAddr,
			LiquidityToken: shareToken,
			Owner:          owner,
			InitParams:     &model.MetastablePoolParams{Amp: 100, ErProviderAddr: rateAddr, ErCacheBTL: 10},
		}
	}

	tests := []struct {
		name   string
		mutate func(*model.InstantiateMsg)
		want   error
	}{
		{"missing params", func(m *model.InstantiateMsg) { m.InitParams = nil }, ErrInitParamsNotFound},
		{"doubling assets", func(m *model.InstantiateMsg) { m.AssetInfos[1] = uluna }, ErrDoublingAssets},
		{"zero amp", func(m *model.InstantiateMsg) { m.InitParams.Amp = 0 }, amp.ErrIncorrectAmp},
		{"amp too large", func(m *model.InstantiateMsg) { m.InitParams.Amp = stableswap.MaxAmp + 1 }, amp.ErrIncorrectAmp},
		{"zero btl", func(m *model.InstantiateMsg) { m.InitParams.ErCacheBTL = 0 }, ratecache.ErrInvalidTTL},
		{"unknown provider", func(m *model.InstantiateMsg) { m.InitParams.ErProviderAddr = "nobody" }, ErrInvalidRateProvider},
		{"too many decimals", func(m *model.InstantiateMsg) { m.AssetDecimals[0] = MaxDecimals + 1 }, ErrInvalidConfig},
		{"commission above 100%", func(m *model.InstantiateMsg) { m.CommissionBps = bpsDenominator + 1 }, ErrInvalidConfig},
		{"share token is a pool asset", func(m *model.InstantiateMsg) { m.LiquidityToken = uusd }, ErrInvalidConfig},
		{"no contract address", func(m *model.InstantiateMsg) { m.ContractAddr = "" }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := valid()
			tt.mutate(&msg)
			_, _, err := Instantiate(context.Background(), env(1, startTime), model.MessageInfo{Sender: owner}, msg, registry, nil, nil)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProvideFirstDeposit(t *testing.T) {
	f := newFixture(t, defaultOpts())

	res, err := f.provide(t, env(1, startTime+5), alice, 100_000_000, 100_000_000, nil)
	require.NoError(t, err)
	require.Equal(t, u(199_999_000), res.Data)
	require.Equal(t, []ledger.Instruction{
		ledger.Mint(shareToken, poolAddr, u(1000)),
		ledger.Mint(shareToken, alice, u(199_999_000)),
	}, res.Instructions)

	requireBalances(t, f.pool, 100_000_000, 100_000_000, 200_000_000)
	require.Equal(t, uint64(startTime+5), f.pool.Snapshot().Config.BlockTimeLast)
}

func TestProvideProportional(t *testing.T) {
	f := newFixture(t, defaultOpts())
	_, err := f.provide(t, env(1, startTime), alice, 100_000_000, 100_000_000, nil)
	require.NoError(t, err)

	res, err := f.provide(t, env(2, startTime+10), bob, 100_000_000, 100_000_000, dec("0.01"))
	require.NoError(t, err)
	require.Equal(t, u(200_000_000), res.Data)
	require.Equal(t, []ledger.Instruction{ledger.Mint(shareToken, bob, u(200_000_000))}, res.Instructions)
	requireBalances(t, f.pool, 200_000_000, 200_000_000, 400_000_000)
}

func TestProvideAtExchangeRate(t *testing.T) {
	opts := defaultOpts()
	opts.rate = math.LegacyNewDecWithPrec(2, 1)
	f := newFixture(t, opts)

	res, err := f.provide(t, env(1, startTime), alice, 500_000_000, 100_000_000, nil)
	require.NoError(t, err)
	require.Equal(t, u(199_999_000), res.Data)
}

func TestProvideAtExchangeRateIsOrderIndependent(t *testing.T) {
	opts := defaultOpts()
	opts.rate = math.LegacyNewDecWithPrec(2, 1)
	opts.floor = u(0)
	f := newFixture(t, opts)

	first, err := f.provide(t, env(1, startTime), alice, 500, 100, nil)
	require.NoError(t, err)
	second, err := f.provide(t, env(2, startTime+5), bob, 500, 100, nil)
	require.NoError(t, err)

	require.Equal(t, u(200), first.Data)
	require.Equal(t, first.Data, second.Data)
	requireBalances(t, f.pool, 1000, 200, 400)

	opts.floor = nil
	f = newFixture(t, opts)
	_, err = f.provide(t, env(1, startTime), alice, 500, 100, nil)
	require.ErrorIs(t, err, ErrLiquidityAmountTooSmall)
}

func TestProvideSingleSidedSlippage(t *testing.T) {
	f := newFixture(t, defaultOpts())
	_, err := f.provide(t, env(1, startTime), alice, 100_000_000, 100_000_000, nil)
	require.NoError(t, err)
	before := f.pool.Snapshot()

	_, err = f.provide(t, env(2, startTime), bob, 100_000_000, 0, dec("0.0001"))
	require.ErrorIs(t, err, ErrAllowedSpreadAssertion)
	require.Equal(t, before, f.pool.Snapshot())

	_, err = f.provide(t, env(2, startTime), bob, 100_000_000, 0, dec("0.6"))
	require.ErrorIs(t, err, ErrAllowedSpreadAssertion)

	res, err := f.provide(t, env(2, startTime), bob, 100_000_000, 0, dec("0.01"))
	require.NoError(t, err)
	require.Equal(t, u(99_906_803), res.Data)
	requireBalances(t, f.pool, 200_000_000, 100_000_000, 299_906_803)
}

func TestProvideErrors(t *testing.T) {
	f := newFixture(t, defaultOpts())
	ctx := context.Background()
	before := f.pool.Snapshot()

	_, err := f.pool.ProvideLiquidity(ctx, env(1, startTime), model.MessageInfo{Sender: alice}, model.ProvideLiquidityMsg{
		Assets: [2]model.Asset{model.NewAsset(uluna, u(1)), model.NewAsset(uluna, u(1))},
	})
	require.ErrorIs(t, err, ErrWrongAssetInfo)

	_, err = f.pool.ProvideLiquidity(ctx, env(1, startTime), model.MessageInfo{Sender: alice}, model.ProvideLiquidityMsg{
		Assets: [2]model.Asset{model.NewAsset(uluna, u(1)), model.NewAsset(tokenX, u(1))},
	})
	require.ErrorIs(t, err, ErrWrongAssetInfo)

	_, err = f.provide(t, env(1, startTime), alice, 0, 0, nil)
	require.ErrorIs(t, err, ErrInvalidZeroAmount)

	_, err = f.provide(t, env(1, startTime), alice, 100, 0, nil)
	require.ErrorIs(t, err, ErrInvalidZeroAmount)

	_, err = f.pool.ProvideLiquidity(ctx, env(1, startTime), model.MessageInfo{
		Sender: alice,
		Funds:  []model.Asset{model.NewAsset(uluna, u(100)), model.NewAsset(uusd, u(99))},
	}, model.ProvideLiquidityMsg{
		Assets: [2]model.Asset{model.NewAsset(uluna, u(100)), model.NewAsset(uusd, u(100))},
	})
	require.ErrorIs(t, err, ErrNativeBalanceMismatch)
	require.ErrorIs(t, err, model.ErrAssetMismatch)

	_, err = f.pool.ProvideLiquidity(ctx, env(1, startTime), model.MessageInfo{
		Sender: alice,
		Funds:  []model.Asset{model.NewAsset(uluna, u(100)), model.NewAsset(uusd, u(100))},
	}, model.ProvideLiquidityMsg{
		Assets:    [2]model.Asset{model.NewAsset(uluna, u(100)), model.NewAsset(uusd, u(100))},
		AutoStake: true,
	})
	require.ErrorIs(t, err, ErrAutoStake)

	_, err = f.provide(t, env(1, startTime), alice, 400, 400, nil)
	require.ErrorIs(t, err, ErrLiquidityAmountTooSmall)

	require.Equal(t, before, f.pool.Snapshot())
}

func TestProvideAutoStake(t *testing.T) {
	opts := defaultOpts()
	opts.generator = "generator"
	f := newFixture(t, opts)

	res, err := f.pool.ProvideLiquidity(context.Background(), env(1, startTime), model.MessageInfo{
		Sender: alice,
		Funds:  []model.Asset{model.NewAsset(uluna, u(100_000_000)), model.NewAsset(uusd, u(100_000_000))},
	}, model.ProvideLiquidityMsg{
		Assets:    [2]model.Asset{model.NewAsset(uusd, u(100_000_000)), model.NewAsset(uluna, u(100_000_000))},
		AutoStake: true,
		Receiver:  bob,
	})
	require.NoError(t, err)
	require.Equal(t, ledger.Mint(shareToken, "generator", u(199_999_000)), res.Instructions[len(res.Instructions)-1])
	require.Equal(t, bob, res.Attributes["receiver"])
}

func fundedPool(t *testing.T, opts poolOpts, a0, a1 uint64) *fixture {
	t.Helper()
	f := newFixture(t, opts)
	_, err := f.provide(t, env(1, startTime), alice, a0, a1, nil)
	require.NoError(t, err)
	return f
}

func TestSwap(t *testing.T) {
	f := fundedPool(t, defaultOpts(), 1_000_000_000, 1_000_000_000)

	res, err := f.swap(t, env(2, startTime), bob, uluna, 1_000_000, model.SwapMsg{})
	require.NoError(t, err)
	require.Equal(t, model.SimulationResponse{
		ReturnAmount:     u(996_997),
		SpreadAmount:     u(4),
		CommissionAmount: u(2_999),
	}, res.Data)
	require.Equal(t, []ledger.Instruction{ledger.Transfer(uusd, poolAddr, bob, u(996_997))}, res.Instructions)
	requireBalances(t, f.pool, 1_001_000_000, 999_003_003, 2_000_000_000)
}

func TestSwapReverseDirectionAndReceiver(t *testing.T) {
	f := fundedPool(t, defaultOpts(), 1_000_000_000, 1_000_000_000)

	res, err := f.swap(t, env(2, startTime), bob, uusd, 1_000_000, model.SwapMsg{To: alice})
	require.NoError(t, err)
	require.Equal(t, u(996_997), res.Data.(model.SimulationResponse).ReturnAmount)
	require.Equal(t, []ledger.Instruction{ledger.Transfer(uluna, poolAddr, alice, u(996_997))}, res.Instructions)
	requireBalances(t, f.pool, 999_003_003, 1_001_000_000, 2_000_000_000)
}

func TestSwapSpreadGuards(t *testing.T) {
	f := fundedPool(t, defaultOpts(), 1_000_000_000, 1_000_000_000)
	before := f.pool.Snapshot()

	_, err := f.swap(t, env(2, startTime), bob, uluna, 900_000_000, model.SwapMsg{})
	require.ErrorIs(t, err, ErrMaxSpreadAssertion)
	require.Equal(t, before, f.pool.Snapshot())

	_, err = f.swap(t, env(2, startTime), bob, uluna, 900_000_000, model.SwapMsg{MaxSpread: dec("0.6")})
	require.ErrorIs(t, err, ErrAllowedSpreadAssertion)

	_, err = f.swap(t, env(2, startTime), bob, uluna, 1_000_000, model.SwapMsg{BeliefPrice: dec("0.99")})
	require.ErrorIs(t, err, ErrMaxSlippageAssertion)

	_, err = f.swap(t, env(2, startTime), bob, uluna, 1_000_000, model.SwapMsg{BeliefPrice: dec("0")})
	require.ErrorIs(t, err, ErrInvalidBeliefPrice)

	_, err = f.swap(t, env(2, startTime), bob, uluna, 1_000_000, model.SwapMsg{BeliefPrice: dec("1")})
	require.NoError(t, err)

	_, err = f.swap(t, env(2, startTime), bob, uluna, 900_000_000, model.SwapMsg{MaxSpread: dec("0.5")})
	require.NoError(t, err)
}

func TestSwapErrors(t *testing.T) {
	f := newFixture(t, defaultOpts())

	_, err := f.swap(t, env(1, startTime), bob, uluna, 1_000, model.SwapMsg{})
	require.ErrorIs(t, err, ErrEmptyPool)

	_, err = f.provide(t, env(1, startTime), alice, 1_000_000, 1_000_000, nil)
	require.NoError(t, err)

	_, err = f.swap(t, env(1, startTime), bob, model.NativeAsset("uatom"), 1_000, model.SwapMsg{})
	require.ErrorIs(t, err, model.ErrAssetMismatch)

	_, err = f.swap(t, env(1, startTime), bob, uluna, 0, model.SwapMsg{})
	require.ErrorIs(t, err, ErrInvalidZeroAmount)

	_, err = f.pool.Swap(context.Background(), env(1, startTime), model.MessageInfo{Sender: bob}, model.SwapMsg{
		OfferAsset: model.NewAsset(uluna, u(1_000)),
	})
	require.ErrorIs(t, err, ErrNativeBalanceMismatch)

	_, err = f.pool.Swap(context.Background(), env(1, startTime), model.MessageInfo{Sender: bob}, model.SwapMsg{
		OfferAsset: model.NewAsset(tokenX, u(1_000)),
	})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSwapMixedPrecision(t *testing.T) {
	opts := defaultOpts()
	opts.assets = [2]model.AssetInfo{tokenX, uusd}
	opts.decimals = [2]uint8{5, 7}
	opts.rate = math.LegacyNewDecWithPrec(2, 1)
	opts.bps = 0
	f := newFixture(t, opts)

	res, err := f.pool.ProvideLiquidity(context.Background(), env(1, startTime), model.MessageInfo{
		Sender: alice,
		Funds:  []model.Asset{model.NewAsset(uusd, u(10_000_000_000_000))},
	}, model.ProvideLiquidityMsg{
		Assets: [2]model.Asset{
			model.NewAsset(tokenX, u(500_000_000_000)),
			model.NewAsset(uusd, u(10_000_000_000_000)),
		},
	})
	require.NoError(t, err)
	require.Equal(t, ledger.Transfer(tokenX, alice, poolAddr, u(500_000_000_000)), res.Instructions[0])
	require.Equal(t, u(20_000_000_000_000-1000), res.Data)

	_, err = f.pool.Receive(context.Background(), env(2, startTime), model.ReceiveMsg{
		Token:  uusd,
		Sender: bob,
		Amount: u(500_000),
		Hook:   model.ReceiveHook{Swap: &model.SwapHook{}},
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	res, err = f.pool.Receive(context.Background(), env(2, startTime), model.ReceiveMsg{
		Token:  tokenX,
		Sender: bob,
		Amount: u(500_000),
		Hook:   model.ReceiveHook{Swap: &model.SwapHook{}},
	})
	require.NoError(t, err)
	require.Equal(t, model.SimulationResponse{
		ReturnAmount:     u(10_000_000),
		SpreadAmount:     u(0),
		CommissionAmount: u(0),
	}, res.Data)
	require.Equal(t, []ledger.Instruction{ledger.Transfer(uusd, poolAddr, bob, u(10_000_000))}, res.Instructions)
}

func TestSimulation(t *testing.T) {
	f := fundedPool(t, defaultOpts(), 1_000_000_000, 1_000_000_000)
	before := f.pool.Snapshot()

	sim, err := f.pool.Simulation(context.Background(), env(2, startTime+50), model.NewAsset(uluna, u(1_000_000)))
	require.NoError(t, err)
	require.Equal(t, model.SimulationResponse{
		ReturnAmount:     u(996_997),
		SpreadAmount:     u(4),
		CommissionAmount: u(2_999),
	}, sim)

	rev, err := f.pool.ReverseSimulation(context.Background(), env(2, startTime+50), model.NewAsset(uusd, u(996_997)))
	require.NoError(t, err)
	require.Equal(t, model.ReverseSimulationResponse{
		OfferAmount:      u(1_000_000),
		SpreadAmount:     u(4),
		CommissionAmount: u(2_999),
	}, rev)

	_, err = f.pool.ReverseSimulation(context.Background(), env(2, startTime), model.NewAsset(uusd, u(1_000_000_000)))
	require.ErrorIs(t, err, ErrAskAmountTooLarge)

	_, err = f.pool.Simulation(context.Background(), env(2, startTime), model.NewAsset(tokenX, u(1)))
	require.ErrorIs(t, err, model.ErrAssetMismatch)

	require.Equal(t, before, f.pool.Snapshot())
}

func TestWithdrawLiquidity(t *testing.T) {
	f := fundedPool(t, defaultOpts(), 100_000_000, 100_000_000)

	res, err := f.withdraw(env(2, startTime+10), alice, 100_000_000)
	require.NoError(t, err)
	require.Equal(t, []ledger.Instruction{
		ledger.Burn(shareToken, poolAddr, u(100_000_000)),
		ledger.Transfer(uluna, poolAddr, alice, u(50_000_000)),
		ledger.Transfer(uusd, poolAddr, alice, u(50_000_000)),
	}, res.Instructions)
	requireBalances(t, f.pool, 50_000_000, 50_000_000, 100_000_000)
	require.Equal(t, uint64(startTime+10), f.pool.Snapshot().Config.BlockTimeLast)
}

func TestWithdrawErrors(t *testing.T) {
	f := fundedPool(t, defaultOpts(), 100_000_000, 100_000_000)
	ctx := context.Background()
	before := f.pool.Snapshot()

	_, err := f.withdraw(env(2, startTime), alice, 0)
	require.ErrorIs(t, err, ErrInvalidZeroAmount)

	_, err = f.withdraw(env(2, startTime), alice, 200_000_001)
	require.ErrorIs(t, err, ErrInsufficientShares)

	_, err = f.pool.Receive(ctx, env(2, startTime), model.ReceiveMsg{
		Token:  tokenX,
		Sender: alice,
		Amount: u(10),
		Hook:   model.ReceiveHook{WithdrawLiquidity: &model.WithdrawLiquidityHook{}},
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.pool.Receive(ctx, env(2, startTime), model.ReceiveMsg{Token: shareToken, Sender: alice, Amount: u(10)})
	require.ErrorIs(t, err, ErrInvalidHook)

	_, err = f.pool.Receive(ctx, env(2, startTime), model.ReceiveMsg{
		Token:  shareToken,
		Sender: alice,
		Amount: u(10),
		Hook:   model.ReceiveHook{Swap: &model.SwapHook{}, WithdrawLiquidity: &model.WithdrawLiquidityHook{}},
	})
	require.ErrorIs(t, err, ErrInvalidHook)

	require.Equal(t, before, f.pool.Snapshot())
}

func TestWithdrawAllThenReprovide(t *testing.T) {
	opts := defaultOpts()
	opts.floor = u(0)
	f := fundedPool(t, opts, 100_000_000, 100_000_000)
	requireBalances(t, f.pool, 100_000_000, 100_000_000, 200_000_000)

	_, err := f.withdraw(env(2, startTime), alice, 200_000_000)
	require.NoError(t, err)
	requireBalances(t, f.pool, 0, 0, 0)

	res, err := f.provide(t, env(3, startTime), bob, 10_000_000, 10_000_000, nil)
	require.NoError(t, err)
	require.Equal(t, u(20_000_000), res.Data)
}

func TestCumulativePrices(t *testing.T) {
	f := fundedPool(t, defaultOpts(), 1_000_000_000, 1_000_000_000)

	_, err := f.swap(t, env(2, startTime+100), bob, uluna, 1_000_000, model.SwapMsg{})
	require.NoError(t, err)

	cfg := f.pool.Snapshot().Config
	require.Equal(t, u(99_999_600), cfg.Price0CumulativeLast)
	require.Equal(t, u(99_999_600), cfg.Price1CumulativeLast)
	require.Equal(t, uint64(startTime+100), cfg.BlockTimeLast)

	// A second operation in the same block adds nothing.
	_, err = f.swap(t, env(2, startTime+100), bob, uusd, 1_000_000, model.SwapMsg{})
	require.NoError(t, err)
	require.Equal(t, u(99_999_600), f.pool.Snapshot().Config.Price0CumulativeLast)

	res, err := f.pool.CumulativePrices(context.Background(), env(2, startTime+100))
	require.NoError(t, err)
	require.Equal(t, u(99_999_600), res.Price0CumulativeLast)
}

func TestCumulativePricesProjection(t *testing.T) {
	opts := defaultOpts()
	opts.rate = math.LegacyNewDecWithPrec(2, 1)
	f := fundedPool(t, opts, 5_000_000_000, 1_000_000_000)
	before := f.pool.Snapshot()

	res, err := f.pool.CumulativePrices(context.Background(), env(2, startTime+10))
	require.NoError(t, err)
	require.Equal(t, u(2_000_000), res.Price0CumulativeLast)
	require.Equal(t, u(49_999_800), res.Price1CumulativeLast)
	require.Equal(t, u(2_000_000_000), res.TotalShare)
	require.Equal(t, before, f.pool.Snapshot())
}

func TestRateCacheRefresh(t *testing.T) {
	f := fundedPool(t, defaultOpts(), 1_000_000_000, 1_000_000_000)
	require.True(t, f.pool.Snapshot().Cache.ExchangeRate.Equal(math.LegacyOneDec()))
	require.NoError(t, f.fixed.UpdateExchangeRate(math.LegacyNewDec(2)))

	_, err := f.swap(t, env(10, startTime), bob, uluna, 1_000, model.SwapMsg{})
	require.NoError(t, err)
	cache := f.pool.Snapshot().Cache
	require.True(t, cache.ExchangeRate.Equal(math.LegacyOneDec()))
	require.Equal(t, uint64(1), cache.Height)

	_, err = f.pool.Simulation(context.Background(), env(11, startTime), model.NewAsset(uluna, u(1_000)))
	require.NoError(t, err)
	require.Equal(t, uint64(1), f.pool.Snapshot().Cache.Height)

	_, err = f.swap(t, env(11, startTime), bob, uluna, 1_000, model.SwapMsg{MaxSpread: dec("0.5")})
	require.NoError(t, err)
	cache = f.pool.Snapshot().Cache
	require.True(t, cache.ExchangeRate.Equal(math.LegacyNewDec(2)))
	require.Equal(t, uint64(11), cache.Height)
}

type brokenProvider struct{}

func (brokenProvider) ExchangeRate(context.Context, model.AssetInfo, model.AssetInfo) (math.LegacyDec, error) {
	return math.LegacyDec{}, errors.New("rpc unavailable")
}

func TestOracleFailure(t *testing.T) {
	f := fundedPool(t, defaultOpts(), 1_000_000_000, 1_000_000_000)
	f.registry.Register("broken", brokenProvider{})
	provider := "broken"
	_, err := f.pool.UpdateConfig(context.Background(), env(2, startTime), model.MessageInfo{Sender: owner}, model.UpdateConfigMsg{
		ErProviderAddr: &provider,
	})
	require.NoError(t, err)
	before := f.pool.Snapshot()

	_, err = f.swap(t, env(2, startTime+1), bob, uluna, 1_000, model.SwapMsg{})
	require.ErrorIs(t, err, oracle.ErrQueryFailed)
	require.Equal(t, ClassOracle, Classify(err))
	require.Equal(t, before, f.pool.Snapshot())
}

func TestUpdateConfig(t *testing.T) {
	f := fundedPool(t, defaultOpts(), 1_000_000_000, 1_000_000_000)
	ctx := context.Background()
	e := env(2, startTime)
	ownerInfo := model.MessageInfo{Sender: owner}

	btl := uint64(555)
	_, err := f.pool.UpdateConfig(ctx, e, model.MessageInfo{Sender: alice}, model.UpdateConfigMsg{ErCacheBTL: &btl})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.pool.UpdateConfig(ctx, e, ownerInfo, model.UpdateConfigMsg{})
	require.ErrorIs(t, err, ErrInvalidParams)

	_, err = f.pool.UpdateConfig(ctx, e, ownerInfo, model.UpdateConfigMsg{Params: &model.UpdateParams{
		StopChangingAmp:  &model.StopChangingAmp{},
		UpdateErCacheBTL: &model.UpdateErCacheBTL{BTL: 1},
	}})
	require.ErrorIs(t, err, ErrInvalidParams)

	zero := uint64(0)
	_, err = f.pool.UpdateConfig(ctx, e, ownerInfo, model.UpdateConfigMsg{ErCacheBTL: &zero})
	require.ErrorIs(t, err, ratecache.ErrInvalidTTL)

	unknown := "nobody"
	_, err = f.pool.UpdateConfig(ctx, e, ownerInfo, model.UpdateConfigMsg{ErProviderAddr: &unknown})
	require.ErrorIs(t, err, ErrInvalidRateProvider)

	second, err := oracle.NewFixed([2]model.AssetInfo{uluna, uusd}, math.LegacyNewDecWithPrec(5, 1))
	require.NoError(t, err)
	f.registry.Register("second", second)
	next := "second"
	res, err := f.pool.UpdateConfig(ctx, e, ownerInfo, model.UpdateConfigMsg{ErCacheBTL: &btl, ErProviderAddr: &next})
	require.NoError(t, err)
	require.Equal(t, "555", res.Attributes["er_cache_btl"])

	snap := f.pool.Snapshot()
	require.Equal(t, "second", snap.Config.ErProviderAddr)
	require.Equal(t, uint64(555), snap.Cache.BTL)
	require.True(t, snap.Cache.IsEmpty())

	cfg := f.pool.Config(e)
	require.Equal(t, "second", cfg.Params.ErProviderAddr)
	require.Equal(t, uint64(555), cfg.Params.ErCacheBTL)
	require.True(t, cfg.Params.Amp.Equal(math.LegacyNewDec(100)))
}

func TestAmpRamp(t *testing.T) {
	f := newFixture(t, defaultOpts())
	ctx := context.Background()
	ownerInfo := model.MessageInfo{Sender: owner}
	ramp := func(now, next, nextTime uint64) error {
		_, err := f.pool.UpdateConfig(ctx, env(2, now), ownerInfo, model.UpdateConfigMsg{Params: &model.UpdateParams{
			StartChangingAmp: &model.StartChangingAmp{NextAmp: next, NextAmpTime: nextTime},
		}})
		return err
	}
	rampStart := uint64(startTime + stableswap.MinAmpChangingTime)
	rampEnd := rampStart + stableswap.MinAmpChangingTime

	require.ErrorIs(t, ramp(startTime+1, 250, rampEnd), amp.ErrMinAmpChangingTime)
	require.ErrorIs(t, ramp(rampStart, 1001, rampEnd), amp.ErrMaxAmpChange)
	require.ErrorIs(t, ramp(rampStart, 250, rampEnd-1), amp.ErrMinAmpChangingTime)
	require.ErrorIs(t, ramp(rampStart, 0, rampEnd), amp.ErrIncorrectAmp)
	require.False(t, f.pool.Config(env(2, rampStart)).Params.AmpChanging)
	require.NoError(t, ramp(rampStart, 250, rampEnd))

	mid := rampStart + stableswap.MinAmpChangingTime/2
	require.True(t, f.pool.Config(env(3, mid)).Params.Amp.Equal(math.LegacyNewDec(175)))
	require.True(t, f.pool.Config(env(3, mid)).Params.AmpChanging)
	require.True(t, f.pool.Config(env(3, rampEnd+1)).Params.Amp.Equal(math.LegacyNewDec(250)))
	require.False(t, f.pool.Config(env(3, rampEnd+1)).Params.AmpChanging)

	_, err := f.pool.UpdateConfig(ctx, env(3, mid), ownerInfo, model.UpdateConfigMsg{Params: &model.UpdateParams{
		StopChangingAmp: &model.StopChangingAmp{},
	}})
	require.NoError(t, err)
	require.True(t, f.pool.Config(env(4, rampEnd+1000)).Params.Amp.Equal(math.LegacyNewDec(175)))
	require.False(t, f.pool.Config(env(4, mid)).Params.AmpChanging)
}

func TestTWAPPriceScaling(t *testing.T) {
	price, err := twapPrice(u(996_997), 6)
	require.NoError(t, err)
	require.Equal(t, u(996_997), price)

	price, err = twapPrice(u(10_000_000), 7)
	require.NoError(t, err)
	require.Equal(t, u(1_000_000), price)

	huge := new(uint256.Int).Lsh(u(1), 255)
	_, err = twapPrice(huge, 0)
	require.ErrorIs(t, err, stableswap.ErrOverflow)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorClass
	}{
		{nil, ""},
		{ErrUnauthorized, ClassConfig},
		{amp.ErrMaxAmpChange, ClassConfig},
		{ratecache.ErrInvalidTTL, ClassConfig},
		{ErrNativeBalanceMismatch, ClassConfig},
		{stableswap.ErrConvergence, ClassNumerical},
		{errors.Join(errors.New("compute d"), stableswap.ErrOverflow), ClassNumerical},
		{ErrMaxSpreadAssertion, ClassEconomic},
		{ErrMaxSlippageAssertion, ClassEconomic},
		{oracle.ErrQueryFailed, ClassOracle},
		{errors.New("disk full"), ClassUnknown},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}
