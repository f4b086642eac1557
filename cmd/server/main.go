package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Vasu1712/scenyx-editor/internal/api/files"
	"github.com/Vasu1712/scenyx-editor/internal/auth"
	"github.com/Vasu1712/scenyx-editor/internal/config"
	"github.com/Vasu1712/scenyx-editor/internal/logging"
	"github.com/Vasu1712/scenyx-editor/internal/metrics"
	"github.com/Vasu1712/scenyx-editor/internal/middleware"
	"github.com/Vasu1712/scenyx-editor/internal/storage/memory"
	"github.com/Vasu1712/scenyx-editor/internal/storage/postgres"
	valkeystore "github.com/Vasu1712/scenyx-editor/internal/storage/valkey"
	"github.com/Vasu1712/scenyx-editor/internal/ws"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet.
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logging.Init(cfg.Logging()); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	return cfg
}

// setupStores picks postgres when DATABASE_URL is set and memory otherwise.
func setupStores(cfg *config.Config, handler *files.Handler) (closeDB func()) {
	logger := logging.L()
	if cfg.DatabaseURL == "" {
		users := memory.NewUserStore()
		handler.Users = users
		handler.Accounts = memory.Accounts{UserStore: users}
		handler.Files = memory.NewFileStore()
		logger.Info("using in-memory storage")
		return func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	users := postgres.NewUserStore(db)
	handler.Users = users
	handler.Accounts = users
	handler.Files = postgres.NewFileStore(db)
	logger.Info("using postgres storage")
	return func() { closeQuietly(db) }
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		logging.L().Warn("failed to close database", zap.Error(err))
	}
}

func setupPresence(cfg *config.Config, handler *files.Handler) (closeClient func()) {
	if cfg.ValkeyAddr == "" {
		return func() {}
	}
	client, err := valkeystore.NewClient(cfg.ValkeyAddr)
	if err != nil {
		logging.L().Fatal("failed to connect to valkey", zap.Error(err))
	}
	handler.Presence = valkeystore.NewPresenceStore(client)
	logging.L().Info("using valkey presence", zap.String("addr", cfg.ValkeyAddr))
	return client.Close
}

func main() {
	cfg := setupConfig()
	logger := logging.L()
	defer logging.Sync()

	clock := clockwork.NewRealClock()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := ws.NewHub(logger, m)
	ctx, stopHub := context.WithCancel(context.Background())
	go hub.Run(ctx)

	handler := &files.Handler{
		Hub:           hub,
		Verifier:      auth.NewVerifier(cfg.JWTSecret, clock),
		Log:           logger.Named("api"),
		Metrics:       m,
		AllowedOrigin: cfg.AllowedOrigin,
	}
	closeDB := setupStores(cfg, handler)
	defer closeDB()
	closeValkey := setupPresence(cfg, handler)
	defer closeValkey()

	r := mux.NewRouter()
	files.RegisterRoutes(r, handler)
	r.Handle("/metrics", metrics.Handler(reg)).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.CORS(cfg.AllowedOrigin, logger)(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		stopHub()
	}()

	logger.Info("server started", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}
