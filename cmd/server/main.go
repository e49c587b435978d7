package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcustody "github.com/loanflow/backend/internal/application/custody"
	"github.com/loanflow/backend/internal/domain/shared"
	"github.com/loanflow/backend/internal/infrastructure/auth"
	"github.com/loanflow/backend/internal/infrastructure/cache"
	"github.com/loanflow/backend/internal/infrastructure/config"
	"github.com/loanflow/backend/internal/infrastructure/event"
	"github.com/loanflow/backend/internal/infrastructure/logger"
	"github.com/loanflow/backend/internal/infrastructure/persistence"
	"github.com/loanflow/backend/internal/infrastructure/telemetry"
	"github.com/loanflow/backend/internal/interfaces/http/handler"
	"github.com/loanflow/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting LoanFlow custody backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize distributed tracing
	tracer, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize database connection with a GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry.DBTraceEnabled, log); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}

	// Initialize repositories
	floatRepo := persistence.NewGormFloatRepository(db.DB)
	entryRepo := persistence.NewGormLedgerEntryRepository(db.DB)
	handoverRepo := persistence.NewGormHandoverRepository(db.DB)
	balanceRepo := persistence.NewGormBalanceReadRepository(db.DB)

	// Idempotency cache: Redis when configured, in-memory otherwise. The
	// database unique index stays the hard guarantee either way.
	idemStore, err := cache.NewIdempotencyStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idemStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Initialize event bus and the audit trail consumer
	eventBus := event.NewInMemoryEventBus(log)
	event.NewAuditTrail(log).RegisterOn(eventBus)

	// Initialize application services
	issuanceService := appcustody.NewFloatIssuanceService(floatRepo, eventBus)
	confirmationService := appcustody.NewCollectorConfirmationService(floatRepo, eventBus)
	recorder := appcustody.NewTransactionRecorder(floatRepo, entryRepo, idemStore, shared.IdempotencyConfig{
		Enabled: cfg.Idempotency.Enabled,
		TTL:     cfg.Idempotency.TTL,
	})
	handoverService := appcustody.NewHandoverService(floatRepo, handoverRepo, eventBus)
	balanceMonitor := appcustody.NewBalanceMonitor(balanceRepo, entryRepo)

	// Token service for cashier/collector authentication
	tokens := auth.NewTokenService(cfg.JWT)

	engine, err := router.New(router.Config{
		AppConfig: cfg,
		Logger:    log,
		Tokens:    tokens,
		Database:  db,
	},
		handler.NewFloatHandler(issuanceService, confirmationService, recorder),
		handler.NewHandoverHandler(handoverService),
		handler.NewBalanceHandler(balanceMonitor, recorder),
	)
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
