package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/mybank/loan-engine/internal/config"
	"github.com/mybank/loan-engine/internal/domain"
	"github.com/mybank/loan-engine/internal/repository"
	"github.com/mybank/loan-engine/internal/service"
	"github.com/mybank/loan-engine/pkg/logger"
)

// The scheduler runs the daily benchmark reset sweep: any ACTIVE floating
// loan whose rate has drifted from its benchmark gets a new version. It is
// safe to run alongside the API server; the per-date idempotency guard makes
// repeated sweeps no-ops.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLog.Sync()
	sugar := zapLog.Sugar()

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		sugar.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	loanRepo := repository.NewLoanRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	benchmarkRepo := repository.NewBenchmarkRepository(db)
	loanService := service.NewLoanService(loanRepo, versionRepo, redisClient, cfg, sugar)
	benchmarkService := service.NewBenchmarkService(benchmarkRepo, loanRepo, loanService, sugar)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		sugar.Fatalw("invalid scheduler timezone", "timezone", cfg.Scheduler.Timezone, "error", err)
	}

	c := cron.New(cron.WithLocation(location), cron.WithSeconds())
	_, err = c.AddFunc(cfg.Scheduler.ResetCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		results, err := benchmarkService.ProcessScheduledResets(ctx)
		if err != nil {
			sugar.Errorw("reset sweep failed", "error", err)
			return
		}
		var applied, skipped, failed int
		for _, r := range results {
			switch r.Outcome {
			case domain.ResetApplied:
				applied++
			case domain.ResetAlreadyApplied:
				skipped++
			case domain.ResetFailed:
				failed++
			}
		}
		sugar.Infow("reset sweep complete", "applied", applied, "already_applied", skipped, "failed", failed)
	})
	if err != nil {
		sugar.Fatalw("invalid reset cron expression", "cron", cfg.Scheduler.ResetCron, "error", err)
	}

	c.Start()
	sugar.Infow("scheduler started", "cron", cfg.Scheduler.ResetCron, "timezone", cfg.Scheduler.Timezone)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("shutting down scheduler")
	<-c.Stop().Done()
	sugar.Info("scheduler exited")
}
