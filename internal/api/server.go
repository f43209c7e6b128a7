package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pairPool/internal/model"
	"pairPool/internal/pool"
)

// AccountHeader carries the identity of the caller for owner operations when
// no Identify hook is configured. The header is taken as is, so without a hook
// the server must sit behind a proxy that authenticates the caller and sets it.
const AccountHeader = "X-Account"

// ErrUnauthenticated is returned by an Identify hook that cannot establish the
// caller.
var ErrUnauthenticated = errors.New("caller not authenticated")

// Pool is the subset of the pool runtime the HTTP surface needs.
type Pool interface {
	Describe(ctx context.Context) (model.PoolSnapshot, error)
	Quote(ctx context.Context, sell, buy model.AssetID, amount *uint256.Int) (*uint256.Int, error)
	Stalled(ctx context.Context, after time.Duration) ([]error, error)
	RetrySync(ctx context.Context, caller model.AccountID, asset model.AssetID) error
	RefreshBalance(ctx context.Context, caller model.AccountID, asset model.AssetID) error
	ProvisionHolder(ctx context.Context, caller model.AccountID, asset model.AssetID, holder model.AccountID) error
}

var _ Pool = (*pool.Runtime)(nil)

type Config struct {
	StallAfter time.Duration
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Identify authenticates the caller of owner operations. Nil falls back to
	// AccountHeader.
	Identify func(*http.Request) (model.AccountID, error)
}

// BearerIdentity accepts "Authorization: Bearer <token>" and maps the token
// to account.
func BearerIdentity(token string, account model.AccountID) func(*http.Request) (model.AccountID, error) {
	return func(r *http.Request) (model.AccountID, error) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return "", ErrUnauthenticated
		}
		return account, nil
	}
}

// Server exposes pool state and owner operations over HTTP.
type Server struct {
	pool   Pool
	cfg    Config
	logger *zap.Logger
	router http.Handler
}

func NewServer(p Pool, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{pool: p, cfg: cfg, logger: logger}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.Health)
	r.Get("/pool", s.Describe)
	r.Get("/quote", s.Quote)
	r.Route("/assets/{asset}", func(assets chi.Router) {
		assets.Post("/retry", s.RetrySync)
		assets.Post("/refresh", s.RefreshBalance)
		assets.Post("/holders/{holder}", s.ProvisionHolder)
	})
	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Health reports 503 while any asset has a ledger request outstanding for
// longer than the configured stall window.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.cfg.StallAfter <= 0 {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	stalled, err := s.pool.Stalled(r.Context(), s.cfg.StallAfter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(stalled) == 0 {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	msgs := make([]string, 0, len(stalled))
	for _, e := range stalled {
		msgs = append(msgs, e.Error())
	}
	s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
		"status":  "stalled",
		"stalled": msgs,
	})
}

func (s *Server) Describe(w http.ResponseWriter, r *http.Request) {
	snap, err := s.pool.Describe(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// Quote prices an amount given in base units.
func (s *Server) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sell, buy := q.Get("sell"), q.Get("buy")
	if sell == "" || buy == "" {
		http.Error(w, "sell and buy are required", http.StatusBadRequest)
		return
	}
	amount, err := uint256.FromDecimal(q.Get("amount"))
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return
	}
	out, err := s.pool.Quote(r.Context(), model.AssetID(sell), model.AssetID(buy), amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"sell":   sell,
		"buy":    buy,
		"amount": amount.Dec(),
		"out":    out.Dec(),
	})
}

func (s *Server) RetrySync(w http.ResponseWriter, r *http.Request) {
	s.ownerCall(w, r, func(ctx context.Context, caller model.AccountID, asset model.AssetID) error {
		return s.pool.RetrySync(ctx, caller, asset)
	})
}

func (s *Server) RefreshBalance(w http.ResponseWriter, r *http.Request) {
	s.ownerCall(w, r, func(ctx context.Context, caller model.AccountID, asset model.AssetID) error {
		return s.pool.RefreshBalance(ctx, caller, asset)
	})
}

func (s *Server) ProvisionHolder(w http.ResponseWriter, r *http.Request) {
	holder := model.AccountID(chi.URLParam(r, "holder"))
	s.ownerCall(w, r, func(ctx context.Context, caller model.AccountID, asset model.AssetID) error {
		return s.pool.ProvisionHolder(ctx, caller, asset, holder)
	})
}

func (s *Server) ownerCall(w http.ResponseWriter, r *http.Request, fn func(context.Context, model.AccountID, model.AssetID) error) {
	caller, err := s.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	asset := model.AssetID(chi.URLParam(r, "asset"))
	if err := fn(r.Context(), caller, asset); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "asset": string(asset)})
}

func (s *Server) identify(r *http.Request) (model.AccountID, error) {
	if s.cfg.Identify != nil {
		caller, err := s.cfg.Identify(r)
		if err == nil && caller == "" {
			err = ErrUnauthenticated
		}
		return caller, err
	}
	caller := model.AccountID(r.Header.Get(AccountHeader))
	if caller == "" {
		return "", fmt.Errorf("missing %s: %w", AccountHeader, ErrUnauthenticated)
	}
	return caller, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{
		"error":  err.Error(),
		"reason": pool.Reason(err),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pool.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, pool.ErrUnsupportedAsset):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrNotReady),
		errors.Is(err, pool.ErrSyncInProgress),
		errors.Is(err, pool.ErrNotInitialized),
		errors.Is(err, pool.ErrEmptyReserve):
		return http.StatusConflict
	case errors.Is(err, pool.ErrSameAsset),
		errors.Is(err, pool.ErrZeroAmount),
		errors.Is(err, pool.ErrAmountOutOfRange),
		errors.Is(err, pool.ErrMalformedMessage):
		return http.StatusBadRequest
	case errors.Is(err, pool.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
