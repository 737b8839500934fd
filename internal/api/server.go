// Package api serves pool messages and queries over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"metastablePool/internal/host"
	"metastablePool/internal/model"
	"metastablePool/internal/pool"
)

// Backend executes pool operations. *host.Host implements it.
type Backend interface {
	ProvideLiquidity(ctx context.Context, info model.MessageInfo, msg model.ProvideLiquidityMsg) (pool.Result, error)
	Swap(ctx context.Context, info model.MessageInfo, msg model.SwapMsg) (pool.Result, error)
	Receive(ctx context.Context, msg model.ReceiveMsg) (pool.Result, error)
	WithdrawLiquidity(ctx context.Context, sender string, share *uint256.Int) (pool.Result, error)
	UpdateConfig(ctx context.Context, info model.MessageInfo, msg model.UpdateConfigMsg) (pool.Result, error)
	Pool(ctx context.Context) (model.PoolResponse, error)
	Config(ctx context.Context) (model.ConfigResponse, error)
	Simulation(ctx context.Context, offer model.Asset) (model.SimulationResponse, error)
	ReverseSimulation(ctx context.Context, ask model.Asset) (model.ReverseSimulationResponse, error)
	CumulativePrices(ctx context.Context) (model.CumulativePricesResponse, error)
}

type provideRequest struct {
	model.MessageInfo
	model.ProvideLiquidityMsg
}

type swapRequest struct {
	model.MessageInfo
	model.SwapMsg
}

type updateConfigRequest struct {
	model.MessageInfo
	model.UpdateConfigMsg
}

type withdrawRequest struct {
	Sender string       `json:"sender"`
	Share  *uint256.Int `json:"share"`
}

// resultResponse is the JSON form of a committed operation.
type resultResponse struct {
	Action     string            `json:"action"`
	Sender     string            `json:"sender"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Data       any               `json:"data,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Class string `json:"class"`
}

// Server routes HTTP requests to a Backend.
type Server struct {
	router  *mux.Router
	backend Backend
	logger  *zap.Logger
}

// NewServer builds the router. gatherer backs /metrics and may be nil.
func NewServer(backend Backend, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{router: mux.NewRouter(), backend: backend, logger: logger}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/pool", s.handlePool).Methods(http.MethodGet)
	s.router.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	s.router.HandleFunc("/simulation", s.handleSimulation).Methods(http.MethodGet)
	s.router.HandleFunc("/reverse-simulation", s.handleReverseSimulation).Methods(http.MethodGet)
	s.router.HandleFunc("/cumulative-prices", s.handleCumulativePrices).Methods(http.MethodGet)

	s.router.HandleFunc("/provide", s.handleProvide).Methods(http.MethodPost)
	s.router.HandleFunc("/swap", s.handleSwap).Methods(http.MethodPost)
	s.router.HandleFunc("/receive", s.handleReceive).Methods(http.MethodPost)
	s.router.HandleFunc("/withdraw", s.handleWithdraw).Methods(http.MethodPost)
	s.router.HandleFunc("/update-config", s.handleUpdateConfig).Methods(http.MethodPost)

	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.router.Use(s.loggingMiddleware)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	resp, err := s.backend.Pool(r.Context())
	s.respond(w, resp, err)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	resp, err := s.backend.Config(r.Context())
	s.respond(w, resp, err)
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	asset, err := assetFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, pool.ClassConfig)
		return
	}
	resp, err := s.backend.Simulation(r.Context(), asset)
	s.respond(w, resp, err)
}

func (s *Server) handleReverseSimulation(w http.ResponseWriter, r *http.Request) {
	asset, err := assetFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, pool.ClassConfig)
		return
	}
	resp, err := s.backend.ReverseSimulation(r.Context(), asset)
	s.respond(w, resp, err)
}

func (s *Server) handleCumulativePrices(w http.ResponseWriter, r *http.Request) {
	resp, err := s.backend.CumulativePrices(r.Context())
	s.respond(w, resp, err)
}

func (s *Server) handleProvide(w http.ResponseWriter, r *http.Request) {
	var req provideRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.backend.ProvideLiquidity(r.Context(), req.MessageInfo, req.ProvideLiquidityMsg)
	s.respondResult(w, res, err)
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.backend.Swap(r.Context(), req.MessageInfo, req.SwapMsg)
	s.respondResult(w, res, err)
}

func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	var req model.ReceiveMsg
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.backend.Receive(r.Context(), req)
	s.respondResult(w, res, err)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.backend.WithdrawLiquidity(r.Context(), req.Sender, req.Share)
	s.respondResult(w, res, err)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.backend.UpdateConfig(r.Context(), req.MessageInfo, req.UpdateConfigMsg)
	s.respondResult(w, res, err)
}

func assetFromQuery(r *http.Request) (model.Asset, error) {
	q := r.URL.Query()
	info, err := model.ParseAssetInfo(q.Get("asset"))
	if err != nil {
		return model.Asset{}, err
	}
	amount, err := model.ParseAmount(q.Get("amount"))
	if err != nil {
		return model.Asset{}, fmt.Errorf("parse amount: %w", err)
	}
	return model.NewAsset(info, amount), nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err), pool.ClassConfig)
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, resp any, err error) {
	if err != nil {
		class := host.Classify(err)
		s.writeError(w, statusFor(class), err, class)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) respondResult(w http.ResponseWriter, res pool.Result, err error) {
	if err != nil {
		s.respond(w, nil, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resultResponse{
		Action:     res.Action,
		Sender:     res.Sender,
		Attributes: res.Attributes,
		Data:       res.Data,
	})
}

// statusFor maps an error class to an HTTP status.
func statusFor(class pool.ErrorClass) int {
	switch class {
	case pool.ClassConfig:
		return http.StatusBadRequest
	case pool.ClassEconomic:
		return http.StatusUnprocessableEntity
	case pool.ClassOracle:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error, class pool.ErrorClass) {
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Class: string(class)})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapper.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
