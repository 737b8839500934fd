package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "metapool",
		Short:        "Metastable StableSwap pool",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("store", "file", "state store (memory, file, postgres)")
	flags.String("state-file", "./data/pool.json", "state file for the file store")
	flags.String("pg-dsn", "", "Postgres DSN for the postgres store")
	flags.String("pool-name", "default", "pool namespace in the postgres store")
	flags.String("journal", "./data/events.jsonl", "event journal JSONL path, empty to disable")
	flags.String("rpc", "", "EVM RPC URL for block env, token decimals and rate provider contracts")
	flags.Int("max-retries", 5, "maximum retry attempts for RPC block lookups")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Uint64("height", 0, "fixed block height, 0 derives it from the clock or RPC")
	flags.Uint64("time", 0, "fixed block time in unix seconds, 0 uses the clock or RPC")
	flags.Duration("block-interval", 5*time.Second, "block interval used to derive heights from the clock")
	flags.String("asset0", "", "first pool asset (denom or token address)")
	flags.String("asset1", "", "second pool asset (denom or token address)")
	flags.String("er-provider", "fixed-rate", "exchange rate provider address")
	flags.String("fixed-rate", "1", "rate of asset0 in asset1 served by the in-process provider")

	root.AddCommand(
		newInitCmd(),
		newFundCmd(),
		newProvideCmd(),
		newSwapCmd(),
		newWithdrawCmd(),
		newUpdateConfigCmd(),
		newQueryCmd(),
		newServeCmd(),
	)
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
