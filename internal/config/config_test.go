package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, StoreFile, cfg.Store)
	require.Equal(t, "./data/pool.json", cfg.StateFile)
	require.Equal(t, 5*time.Second, cfg.BlockInterval)
	require.Equal(t, [2]int{AutoDecimals, AutoDecimals}, cfg.Pool.Decimals)
	require.Equal(t, uint64(100), cfg.Pool.Amp)
	require.Equal(t, uint16(5), cfg.Pool.CommissionBps)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: memory\namp: 250\nasset0: uluna\ner-cache-btl: 555\n"), 0o644))
	t.Setenv("METAPOOL_ASSET1", "uusd")
	t.Setenv("METAPOOL_ER_CACHE_BTL", "20")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Uint64("amp", 100, "")
	require.NoError(t, flags.Parse([]string{"--amp", "300"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.Store)
	require.Equal(t, uint64(300), cfg.Pool.Amp)
	require.Equal(t, [2]string{"uluna", "uusd"}, cfg.Pool.Assets)
	require.Equal(t, uint64(20), cfg.Pool.ErCacheBTL)
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("METAPOOL_STORE", "postgres")
	_, err := Load("", nil)
	require.ErrorContains(t, err, "pg-dsn")

	t.Setenv("METAPOOL_STORE", "redis")
	_, err = Load("", nil)
	require.ErrorContains(t, err, "unknown store")

	t.Setenv("METAPOOL_STORE", "memory")
	t.Setenv("METAPOOL_COMMISSION_BPS", "10001")
	_, err = Load("", nil)
	require.Error(t, err)
}
