package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"metastablePool/internal/chain"
	"metastablePool/internal/config"
	"metastablePool/internal/host"
	"metastablePool/internal/metrics"
	"metastablePool/internal/model"
	"metastablePool/internal/oracle"
	"metastablePool/internal/storage"
	"metastablePool/internal/storage/postgres"
)

// app is the wiring shared by every subcommand.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    storage.Store
	host     *host.Host
	client   *chain.Client
	registry *prometheus.Registry
	closers  []func()
}

func setup(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = store

	if cfg.RPCURL != "" {
		a.client, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		a.closers = append(a.closers, a.client.Close)
	}

	querier, err := a.querier(ctx, store)
	if err != nil {
		a.close()
		return nil, err
	}

	opts := host.Options{
		Store:   store,
		Querier: querier,
		Env:     a.envSource(),
		Logger:  logger,
		Metrics: metrics.New(a.registry),
	}
	if cfg.Journal != "" {
		opts.Journal = storage.NewJournal(cfg.Journal)
	}
	a.host = host.New(opts)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}

func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	switch a.cfg.Store {
	case config.StoreMemory:
		return storage.NewMemoryStore(), nil
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, a.cfg.PGDSN, a.cfg.PoolName)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return storage.NewFileStore(a.cfg.StateFile), nil
	}
}

// querier returns the rate oracle: provider contracts when an RPC is
// configured, otherwise an in-process fixed-rate provider.
func (a *app) querier(ctx context.Context, store storage.Store) (oracle.Querier, error) {
	if a.client != nil {
		return oracle.NewContractQuerier(a.client, a.logger), nil
	}

	assets, err := a.pairAssets(ctx, store)
	if err != nil {
		return nil, err
	}
	rate, err := math.LegacyNewDecFromStr(a.cfg.FixedRate)
	if err != nil {
		return nil, fmt.Errorf("parse fixed-rate: %w", err)
	}
	fixed, err := oracle.NewFixed(assets, rate)
	if err != nil {
		return nil, fmt.Errorf("fixed rate provider: %w", err)
	}
	registry := oracle.NewRegistry()
	registry.Register(a.cfg.Pool.ErProvider, fixed)
	a.logger.Debug("fixed rate provider",
		zap.String("address", a.cfg.Pool.ErProvider),
		zap.String("rate", rate.String()),
	)
	return registry, nil
}

// pairAssets reads the pool assets from config, falling back to the stored pool.
func (a *app) pairAssets(ctx context.Context, store storage.Store) ([2]model.AssetInfo, error) {
	var assets [2]model.AssetInfo
	if a.cfg.Pool.Assets[0] != "" || a.cfg.Pool.Assets[1] != "" {
		for i, raw := range a.cfg.Pool.Assets {
			info, err := model.ParseAssetInfo(raw)
			if err != nil {
				return assets, fmt.Errorf("asset%d: %w", i, err)
			}
			assets[i] = info
		}
		return assets, nil
	}

	var stored model.Config
	found, err := store.Load(ctx, storage.KeyConfig, &stored)
	if err != nil {
		return assets, err
	}
	if !found {
		return assets, fmt.Errorf("asset0 and asset1 are required before the pool is instantiated")
	}
	return stored.PairInfo.AssetInfos, nil
}

func (a *app) envSource() host.EnvSource {
	switch {
	case a.cfg.Height > 0 || a.cfg.Time > 0:
		return host.StaticEnv{Height: a.cfg.Height, Time: a.cfg.Time}
	case a.client != nil:
		return host.NewChainEnv(a.client, a.cfg.MaxRetries, a.cfg.RetryBackoff, a.logger)
	default:
		return host.ClockEnv{Genesis: time.Unix(0, 0), Interval: a.cfg.BlockInterval}
	}
}

// run builds the app, calls fn and prints its result as JSON.
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := fn(ctx, a)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
