package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	appservice "github.com/limitd/limitd/internal/application/service"
	"github.com/limitd/limitd/internal/config"
	domainsvc "github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/internal/infrastructure/audit"
	"github.com/limitd/limitd/internal/infrastructure/counter"
	"github.com/limitd/limitd/internal/infrastructure/keygen"
	"github.com/limitd/limitd/internal/infrastructure/monitoring"
	"github.com/limitd/limitd/internal/infrastructure/persistence/postgres"
	"github.com/limitd/limitd/internal/interfaces/http/handlers"
	"github.com/limitd/limitd/internal/interfaces/http/router"
	"github.com/limitd/limitd/pkg/constants"
	"github.com/limitd/limitd/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	ctx := context.Background()

	tracing, err := monitoring.NewTracingManager(cfg, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to initialize tracing", err)
	}

	db, err := postgres.NewDBConnection(&cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to connect to database", err)
	}

	// Counter store: Redis in production, in-process memory for single-node
	// deployments and local development.
	var store domainsvc.CounterStore
	if cfg.Counter.Store == "memory" {
		store = counter.NewMemoryStore(appLogger)
	} else {
		client, err := counter.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			appLogger.Fatal(ctx, "failed to connect to redis", err)
		}
		store, err = counter.NewRedisStore(client, counter.RedisStoreConfig{
			ScanCount: cfg.Counter.ScanCount,
		}, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to create counter store", err)
		}
	}
	defer store.Close()

	keyGenerator, err := keygen.NewCELGenerator(
		cfg.KeyGen.KeyGenTimeout(),
		cfg.KeyGen.MaxExpressionLength,
		appLogger,
	)
	if err != nil {
		appLogger.Fatal(ctx, "failed to create key generator", err)
	}

	publisher := domainsvc.NewNoopAuditPublisher()
	if cfg.Kafka.Enabled {
		publisher, err = audit.NewKafkaPublisher(cfg.Kafka, appLogger)
		if err != nil {
			appLogger.Fatal(ctx, "failed to create audit publisher", err)
		}
	}
	defer publisher.Close()

	metrics := monitoring.NewMetrics()

	configRepo := postgres.NewConfigRepository(db, appLogger)
	changeRepo := postgres.NewChangeRecordRepository(db)
	usageRepo := postgres.NewUsageSampleRepository(db)
	referenceRepo := postgres.NewReferenceRepository(db)

	engine := domainsvc.NewKeyStrategyEngine(keyGenerator, appLogger)
	environment := constants.Environment(cfg.Enforcement.Environment)
	failMode := constants.FailMode(cfg.Counter.FailMode)

	configSvc := appservice.NewConfigAppService(configRepo, store, keyGenerator, publisher, metrics, appLogger)
	enforcementSvc := appservice.NewEnforcementAppService(
		configRepo, store, engine, usageRepo,
		environment, failMode,
		cfg.Enforcement.ConfigCacheTTLDuration(),
		metrics, appLogger,
	)
	limitSvc := appservice.NewLimitAppService(configRepo, store, environment, metrics, appLogger)
	analyticsSvc := appservice.NewAnalyticsAppService(configRepo, changeRepo, usageRepo, limitSvc, appLogger)

	r := router.NewRouter(
		cfg,
		appLogger,
		handlers.NewConfigHandler(configSvc, enforcementSvc, appLogger),
		handlers.NewLimitHandler(limitSvc, appLogger),
		handlers.NewAnalyticsHandler(analyticsSvc, appLogger),
		handlers.NewReferenceHandler(referenceRepo, appLogger),
		handlers.NewHealthHandler(db, store, appLogger),
		tracing.Tracer(),
		metrics,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			appLogger.Fatal(ctx, "server failed", err)
		}
	case sig := <-quit:
		appLogger.Info(ctx, "shutting down", logger.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := r.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(ctx, "forced shutdown", err)
	}
	if err := tracing.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(ctx, "failed to flush traces", err)
	}
}
