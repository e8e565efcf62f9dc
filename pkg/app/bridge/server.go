// Package bridge implements app.Runner for the bridge process.
package bridge

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apphttp "github.com/chainsafe/gogo-bridge/pkg/app/http"
	bridgeservice "github.com/chainsafe/gogo-bridge/pkg/bridge/service"
	"github.com/chainsafe/gogo-bridge/pkg/config"
	"github.com/chainsafe/gogo-bridge/pkg/executor"
	"github.com/chainsafe/gogo-bridge/pkg/pgutil"
	"github.com/chainsafe/gogo-bridge/pkg/store"
	"github.com/chainsafe/gogo-bridge/pkg/store/memory"
	"github.com/chainsafe/gogo-bridge/pkg/store/pg"
	tokenservice "github.com/chainsafe/gogo-bridge/pkg/token/service"
)

// Server holds configuration for the bridge process.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new bridge Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run builds the ledgers and bridge controllers and serves them over HTTP.
// It blocks until an OS shutdown signal is received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Gogo-Gold Bridge", zap.String("store", cfg.Store.Backend))

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()
	logger.Info("State store ready")

	exec := executor.New(st)
	comps, err := Bootstrap(ctx, cfg, exec, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	defer comps.Auth.Stop()
	if comps.RPC != nil {
		defer comps.RPC.Stop()
	}

	router := NewRouter(cfg, exec, comps, logger)
	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store.Backend != config.StorePostgres {
		return memory.New(), nil
	}
	db, err := pgutil.ConnectDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	return pg.NewStore(db), nil
}

// NewRouter mounts the operational endpoints and the versioned API.
func NewRouter(cfg *config.Config, exec *executor.Executor, comps *Components, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := exec.Ping(r.Context()); err != nil {
			logger.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	if comps.RPC != nil {
		r.Handle("/rpc", comps.RPC)
		logger.Info("JSON-RPC facade enabled", zap.String("path", "/rpc"))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(comps.Auth.Middleware)
		bridgeservice.RegisterRoutes(r, logger, comps.Bridges...)
		tokenservice.RegisterRoutes(r, logger, comps.Tokens...)
	})

	return r
}
