package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// AutoDecimals asks the CLI to resolve an asset's precision itself.
const AutoDecimals = -1

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Store     string
	StateFile string
	PGDSN     string
	PoolName  string
	Journal   string

	RPCURL       string
	MaxRetries   int
	RetryBackoff time.Duration

	Listen        string
	LogLevel      string
	BlockInterval time.Duration
	Height        uint64
	Time          uint64

	FixedRate string
	Pool      PoolParams
}

// PoolParams are the instantiate settings of a pool.
type PoolParams struct {
	Assets           [2]string
	Decimals         [2]int
	Amp              uint64
	ErProvider       string
	ErCacheBTL       uint64
	CommissionBps    uint16
	MinimumLiquidity string
	Owner            string
	ShareToken       string
	Generator        string
	ContractAddr     string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("METAPOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", StoreFile)
	v.SetDefault("state-file", "./data/pool.json")
	v.SetDefault("pool-name", "default")
	v.SetDefault("journal", "./data/events.jsonl")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")
	v.SetDefault("block-interval", 5*time.Second)
	v.SetDefault("fixed-rate", "1")
	v.SetDefault("decimals0", AutoDecimals)
	v.SetDefault("decimals1", AutoDecimals)
	v.SetDefault("amp", uint64(100))
	v.SetDefault("er-provider", "fixed-rate")
	v.SetDefault("er-cache-btl", uint64(10))
	v.SetDefault("commission-bps", 5)
	v.SetDefault("contract-addr", "pool")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	bps := v.GetUint("commission-bps")
	if bps > 10_000 {
		return Config{}, fmt.Errorf("commission-bps %d exceeds 10000", bps)
	}

	cfg := Config{
		Store:         strings.ToLower(strings.TrimSpace(v.GetString("store"))),
		StateFile:     v.GetString("state-file"),
		PGDSN:         v.GetString("pg-dsn"),
		PoolName:      v.GetString("pool-name"),
		Journal:       v.GetString("journal"),
		RPCURL:        v.GetString("rpc"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		Listen:        v.GetString("listen"),
		LogLevel:      v.GetString("log-level"),
		BlockInterval: v.GetDuration("block-interval"),
		Height:        v.GetUint64("height"),
		Time:          v.GetUint64("time"),
		FixedRate:     v.GetString("fixed-rate"),
		Pool: PoolParams{
			Assets:           [2]string{strings.TrimSpace(v.GetString("asset0")), strings.TrimSpace(v.GetString("asset1"))},
			Decimals:         [2]int{v.GetInt("decimals0"), v.GetInt("decimals1")},
			Amp:              v.GetUint64("amp"),
			ErProvider:       v.GetString("er-provider"),
			ErCacheBTL:       v.GetUint64("er-cache-btl"),
			CommissionBps:    uint16(bps),
			MinimumLiquidity: v.GetString("minimum-liquidity"),
			Owner:            v.GetString("owner"),
			ShareToken:       v.GetString("share-token"),
			Generator:        v.GetString("generator"),
			ContractAddr:     v.GetString("contract-addr"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that do not depend on the command being run.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreFile:
		if c.StateFile == "" {
			return fmt.Errorf("state-file is required for the file store")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	for i, d := range c.Pool.Decimals {
		if d < AutoDecimals || d > 255 {
			return fmt.Errorf("decimals%d out of range: %d", i, d)
		}
	}
	return nil
}
