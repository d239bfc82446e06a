package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/pastvra/pastvra/internal/cache"
	"github.com/pastvra/pastvra/internal/config"
	"github.com/pastvra/pastvra/internal/events"
	"github.com/pastvra/pastvra/internal/repository"
	"github.com/pastvra/pastvra/internal/repository/memory"
	"github.com/pastvra/pastvra/internal/repository/mongodb"
	"github.com/pastvra/pastvra/internal/repository/postgres"
	"github.com/pastvra/pastvra/internal/repository/sheets"
	"github.com/pastvra/pastvra/internal/scheduler"
	"github.com/pastvra/pastvra/internal/server/handlers"
	"github.com/pastvra/pastvra/internal/server/router"
	reportingsvc "github.com/pastvra/pastvra/internal/service/reporting"
	weightsvc "github.com/pastvra/pastvra/internal/service/weights"
	"github.com/pastvra/pastvra/pkg/logger"
)

const animalCacheL1Size = 1000

func main() {
	envFile := flag.String("env", "", "optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	store, err := openStore(startCtx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init authoritative store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close store", zap.Error(err))
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewRedisClient(startCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, baseLogger.Named("redis"))
		if err != nil {
			baseLogger.Warn("redis unavailable, lookup cache runs in memory only", zap.Error(err))
			redisClient = nil
		} else {
			defer func() { _ = redisClient.Close() }()
		}
	}
	animalCache := cache.NewAnimalCache(redisClient, animalCacheL1Size, cfg.Redis.TTL, baseLogger)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.WeightsTopic)
		baseLogger.Info("weight events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.WeightsTopic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			baseLogger.Error("failed to close event publisher", zap.Error(err))
		}
	}()

	var sheetRepo sheets.Repository
	if cfg.Sheets.Enabled() {
		repo, err := sheets.NewGoogleSheetRepository(startCtx, cfg.Sheets, baseLogger)
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sheetRepo = repo
	} else {
		baseLogger.Warn("google sheets not configured, matrix export disabled")
	}

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		baseLogger.Fatal("invalid reporting timezone", zap.Error(err))
	}

	weightSvc := weightsvc.NewService(store, animalCache, publisher, cfg.Farm, baseLogger)
	reportingSvc := reportingsvc.NewService(store, weightSvc, sheetRepo, loc, baseLogger)

	engine := router.New(router.Handlers{
		Weights: handlers.NewWeightHandler(weightSvc, baseLogger.Named("handlers.weights")),
		Reports: handlers.NewReportHandler(reportingSvc, baseLogger.Named("handlers.reports")),
		Health:  handlers.NewHealthHandler(store, baseLogger.Named("handlers.health")),
	}, cfg.Server.APIToken, baseLogger.Named("router"))

	if sheetRepo != nil && len(cfg.Reporting.FarmIDs) > 0 {
		sched := scheduler.NewScheduler(loc, baseLogger)
		if err := sched.AddMatrixExport(cfg.Reporting.CronSchedule, reportingSvc, cfg.Reporting.FarmIDs); err != nil {
			baseLogger.Fatal("failed to schedule matrix export", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		return postgres.Connect(ctx, cfg.Postgres.URL, log)
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on exit")
		return memory.New(), nil
	default:
		return mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, log)
	}
}
