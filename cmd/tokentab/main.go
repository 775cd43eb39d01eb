package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tokentab-io/tokentab/internal/config"
	"github.com/tokentab-io/tokentab/internal/db"
	dbRedis "github.com/tokentab-io/tokentab/internal/db/redis"
	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/domain/tool"
	logpkg "github.com/tokentab-io/tokentab/internal/logger"
	"github.com/tokentab-io/tokentab/internal/metrics"
	budgetrepo "github.com/tokentab-io/tokentab/internal/repository/budget"
	ledgerrepo "github.com/tokentab-io/tokentab/internal/repository/ledger"
	"github.com/tokentab-io/tokentab/internal/transport/httpapi"
	openaiChat "github.com/tokentab-io/tokentab/internal/transport/openai"
	chatuc "github.com/tokentab-io/tokentab/internal/usecase/chat"
	healthuc "github.com/tokentab-io/tokentab/internal/usecase/health"
	pricinguc "github.com/tokentab-io/tokentab/internal/usecase/pricing"
	sessionuc "github.com/tokentab-io/tokentab/internal/usecase/session"
	usageuc "github.com/tokentab-io/tokentab/internal/usecase/usage"
	"github.com/tokentab-io/tokentab/internal/version"
)

func main() {
	// Populate the environment from .env before the config layer expands
	// ${VAR} references. Missing file is fine.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting tokentab API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("model", cfg.Provider.Model),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Persistence is optional: without database addrs sessions live in memory
	// only. rueidis speaks to both Redis and Valkey.
	var store db.Store
	if len(cfg.Database.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()
	}

	ctx := context.Background()
	if store != nil {
		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")
	} else {
		logger.Info("Running without persistence, sessions are in-memory only")
	}

	// Register chat metrics explicitly (no init())
	metrics.RegisterChatMetrics()

	// Price table: config rates first, optional YAML file on top, hot-reloaded
	// on change.
	models := make(map[string]domain.Pricing, len(cfg.Pricing.Models))
	for name, m := range cfg.Pricing.Models {
		models[name] = domain.Pricing{
			InputPerMillion:  m.InputPerMillion,
			OutputPerMillion: m.OutputPerMillion,
		}
	}
	priceStore := pricinguc.New(domain.Pricing{
		InputPerMillion:  cfg.Pricing.InputPerMillion,
		OutputPerMillion: cfg.Pricing.OutputPerMillion,
	}, models, logger)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if cfg.Pricing.Path != "" {
		if err := priceStore.LoadFile(cfg.Pricing.Path); err != nil {
			logger.Warn("Price table not loaded", zap.String("path", cfg.Pricing.Path), zap.Error(err))
		}
		go func() {
			if err := priceStore.Watch(watchCtx, cfg.Pricing.Path); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Price table watcher stopped", zap.Error(err))
			}
		}()
	}

	// Single BudgetTracker shared between the provider decorator and the
	// usage service.
	var budget *chatuc.BudgetTracker
	if cfg.Budget.DailyTokenLimit > 0 || cfg.Budget.MonthlyTokenLimit > 0 {
		action := chatuc.BudgetActionWarn
		if cfg.Budget.Action == "reject" {
			action = chatuc.BudgetActionReject
		}
		budget = chatuc.NewBudgetTracker(
			cfg.Storage.KeyPrefix, cfg.Budget.DailyTokenLimit, cfg.Budget.MonthlyTokenLimit, action, logger,
		)
		if store != nil {
			// Connecting the store restores current counters from the DB.
			budgetStore := budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour)
			budget.WithStore(ctx, budgetStore)
		}
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var budgetChecker chatuc.BudgetChecker
	if budget != nil {
		budgetChecker = budget
	}

	// Provider chain: OpenAI-compatible client -> Instrumented (budget + metrics).
	// Header timeout only: streamed bodies stay open well past a normal request.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = time.Duration(cfg.Provider.RequestTimeout) * time.Second
	baseProvider := openaiChat.NewClient(&openaiChat.Config{
		APIKey:     cfg.Provider.APIKey,
		BaseURL:    cfg.Provider.BaseURL,
		Model:      cfg.Provider.Model,
		HTTPClient: &http.Client{Transport: transport},
		Logger:     logger,
	})
	provider := chatuc.NewInstrumentedProvider(baseProvider, budgetChecker, logger)
	logger.Info("Chat provider created",
		zap.String("model", cfg.Provider.Model),
		zap.String("base_url", cfg.Provider.BaseURL),
	)

	var sessionRepo sessionuc.Repository
	if store != nil {
		sessionRepo = ledgerrepo.New(store, cfg.Storage.KeyPrefix)
	}

	registry := tool.Builtins()

	// Create use case services
	sessionSvc := sessionuc.New(
		sessionRepo, priceStore, cfg.Provider.Model, cfg.Tracking.WarnThresholdTokens, logger,
	)
	chatSvc := chatuc.New(provider, sessionSvc, registry, cfg.Tracking.MaxToolRounds, logger)

	// Usage service reads from the shared BudgetTracker
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	usageSvc := usageuc.New(budgetReader, sessionSvc)

	// Health service
	var dbPinger healthuc.DBPinger
	if store != nil {
		dbPinger = store
	}
	healthSvc := healthuc.New(dbPinger, baseProvider)

	server := httpapi.NewServer(
		sessionSvc, chatSvc, usageSvc, healthSvc, registry, version.Version, logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(httpapi.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.RegisterRoutes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	stopWatch()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
