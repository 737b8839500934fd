package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"metastablePool/internal/host"
	"metastablePool/internal/metrics"
	"metastablePool/internal/model"
	"metastablePool/internal/oracle"
	"metastablePool/internal/storage"
)

var (
	uluna      = model.NativeAsset("uluna")
	uusd       = model.NativeAsset("uusd")
	shareToken = model.TokenAsset(common.HexToAddress("0x00000000000000000000000000000000000000ff"))
)

func newTestServer(t *testing.T) (*Server, *host.Host) {
	t.Helper()
	fixed, err := oracle.NewFixed([2]model.AssetInfo{uluna, uusd}, math.LegacyOneDec())
	require.NoError(t, err)
	registry := oracle.NewRegistry()
	registry.Register("rate", fixed)

	reg := prometheus.NewRegistry()
	h := host.New(host.Options{
		Store:   storage.NewMemoryStore(),
		Querier: registry,
		Env:     host.StaticEnv{Height: 1, Time: 1000},
		Metrics: metrics.New(reg),
	})
	_, err = h.Instantiate(context.Background(), model.MessageInfo{Sender: "owner"}, model.InstantiateMsg{
		AssetInfos:     [2]model.AssetInfo{uluna, uusd},
		AssetDecimals:  [2]uint8{6, 6},
		ContractAddr:   "pool",
		LiquidityToken: shareToken,
		CommissionBps:  30,
		InitParams:     &model.MetastablePoolParams{Amp: 100, ErProviderAddr: "rate", ErCacheBTL: 10},
	})
	require.NoError(t, err)
	for _, asset := range []model.AssetInfo{uluna, uusd} {
		require.NoError(t, h.Fund(context.Background(), "alice", model.NewAsset(asset, uint256.NewInt(2_000_000_000))))
	}
	return NewServer(h, reg, nil), h
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func provideBody(amount uint64) map[string]any {
	coins := []model.Asset{
		model.NewAsset(uluna, uint256.NewInt(amount)),
		model.NewAsset(uusd, uint256.NewInt(amount)),
	}
	return map[string]any{
		"sender": "alice",
		"funds":  coins,
		"assets": coins,
	}
}

func TestProvideAndQuery(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/provide", provideBody(1_000_000_000))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res resultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "provide_liquidity", res.Action)
	require.Equal(t, "1999999000", res.Attributes["share"])

	rec = do(t, s, http.MethodGet, "/pool", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info model.PoolResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	require.Equal(t, uint256.NewInt(2_000_000_000), info.TotalShare)
	require.Equal(t, uluna, info.Assets[0].Info)

	rec = do(t, s, http.MethodGet, "/simulation?asset=uluna&amount=1000000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sim model.SimulationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sim))
	require.Equal(t, uint256.NewInt(996_997), sim.ReturnAmount)

	rec = do(t, s, http.MethodGet, "/reverse-simulation?asset=uusd&amount=996997", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rev model.ReverseSimulationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rev))
	require.Equal(t, uint256.NewInt(1_000_000), rev.OfferAmount)

	rec = do(t, s, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg model.ConfigResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	require.Equal(t, "owner", cfg.Owner)
	require.True(t, cfg.Params.Amp.Equal(math.LegacyNewDec(100)))

	rec = do(t, s, http.MethodGet, "/cumulative-prices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorStatus(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/provide", provideBody(1_000_000_000))
	require.Equal(t, http.StatusOK, rec.Code)

	offer := model.NewAsset(uluna, uint256.NewInt(900_000_000))
	rec = do(t, s, http.MethodPost, "/swap", map[string]any{
		"sender":      "alice",
		"funds":       []model.Asset{offer},
		"offer_asset": offer,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var failure errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	require.Equal(t, "economic", failure.Class)

	btl := uint64(5)
	rec = do(t, s, http.MethodPost, "/update-config", map[string]any{"sender": "mallory", "er_cache_btl": btl})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/simulation?asset=&amount=1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/swap", strings.NewReader(`{"unknown": 1}`))
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithdrawAndMetrics(t *testing.T) {
	s, h := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/provide", provideBody(1_000_000_000))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/withdraw", map[string]any{"sender": "alice", "share": "999999000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	share, err := h.Balance(context.Background(), shareToken, "alice")
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1_000_000_000), share)

	rec = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "metapool_pool_operations_total")

	rec = do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, statusFor("oracle"))
	require.Equal(t, http.StatusInternalServerError, statusFor("numerical"))
	require.Equal(t, http.StatusInternalServerError, statusFor("unknown"))
}
