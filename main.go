package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fitstack/recurrence/internal/locking"
	"github.com/fitstack/recurrence/internal/repository"
	"github.com/fitstack/recurrence/internal/service"
	"github.com/fitstack/recurrence/internal/worker"
	"github.com/fitstack/recurrence/pkg/config"
	"github.com/fitstack/recurrence/pkg/database"
	"github.com/fitstack/recurrence/pkg/logger"
	redispkg "github.com/fitstack/recurrence/pkg/redis"
	"github.com/fitstack/recurrence/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Development: cfg.Log.Development,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	log.Info(fmt.Sprintf("Starting %s v%s (%s)", cfg.App.Name, cfg.App.Version, cfg.App.Environment))

	ctx := context.Background()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		log.Fatal(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}

	dbCfg := &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
		MaxRetries:      3,
		RetryInterval:   2 * time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	}

	controlDB, err := database.NewPostgres(ctx, dbCfg)
	if err != nil {
		log.Fatal(fmt.Sprintf("Failed to connect to control database: %v", err))
	}
	defer controlDB.Close()
	log.Info(fmt.Sprintf("Connected to control database %s@%s:%d", cfg.Database.DBName, cfg.Database.Host, cfg.Database.Port))

	tenants := repository.NewPostgresTenantDirectory(controlDB.Pool())
	stores := repository.NewStoreManager(dbCfg)
	defer stores.Close()

	var locker locking.MasterLocker = locking.NewNoopLocker()
	if cfg.Redis.Enabled {
		redisClient, err := redispkg.NewClient(ctx, &redispkg.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			MaxRetries:    3,
			RetryInterval: time.Second,
		})
		if err != nil {
			log.Fatal(fmt.Sprintf("Failed to connect to redis: %v", err))
		}
		defer redisClient.Close()
		locker = locking.NewRedisLocker(redisClient.Client(), locking.DefaultLeaseTTL)
		log.Info(fmt.Sprintf("Per-master locking enabled via redis at %s", cfg.Redis.Addr()))
	} else {
		log.Warn("Redis disabled; running without per-master locking")
	}

	horizon := service.NewHorizonService(locker, &service.HorizonConfig{
		InitialGenerationMonths:     cfg.Recurrence.InitialGenerationMonths,
		MinimumFutureMonths:         cfg.Recurrence.MinimumFutureMonths,
		ExtensionBatchMonths:        cfg.Recurrence.ExtensionBatchMonths,
		MaxOccurrencesPerGeneration: cfg.Recurrence.MaxOccurrencesPerGeneration,
		HistoryRetentionMonths:      cfg.Recurrence.HistoryRetentionMonths,
	})

	scheduler := worker.NewMaintenanceScheduler(tenants, stores, horizon, &worker.MaintenanceConfig{
		Interval:             cfg.Recurrence.MaintenanceInterval,
		ErrorRetryInterval:   cfg.Recurrence.ErrorRetryInterval,
		EnableCleanup:        cfg.Recurrence.EnableCleanup,
		EnableIntegrityCheck: cfg.Recurrence.EnableIntegrityCheck,
	})

	if err := scheduler.Start(ctx); err != nil {
		log.Fatal(fmt.Sprintf("Failed to start maintenance scheduler: %v", err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info(fmt.Sprintf("Received signal %s, shutting down", sig))

	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Error(fmt.Sprintf("Telemetry shutdown error: %v", err))
	}

	log.Info("Shutdown complete")
}
