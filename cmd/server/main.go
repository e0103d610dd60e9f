package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/mybank/loan-engine/internal/config"
	"github.com/mybank/loan-engine/internal/handler"
	"github.com/mybank/loan-engine/internal/repository"
	"github.com/mybank/loan-engine/internal/service"
	"github.com/mybank/loan-engine/pkg/logger"
	"github.com/mybank/loan-engine/pkg/response"
)

func main() {
	// Load configuration
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

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		sugar.Fatalw("failed to initialize database", "error", err)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize repositories
	loanRepo := repository.NewLoanRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	benchmarkRepo := repository.NewBenchmarkRepository(db)

	// Initialize services
	loanService := service.NewLoanService(loanRepo, versionRepo, redisClient, cfg, sugar)
	benchmarkService := service.NewBenchmarkService(benchmarkRepo, loanRepo, loanService, sugar)

	loanHandler := handler.NewLoanHandler(loanService)
	benchmarkHandler := handler.NewBenchmarkHandler(benchmarkService)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Setup routes
	router := setupRoutes(loanHandler, benchmarkHandler, healthHandler)
	router.Use(response.LoggingMiddleware(zapLog))
	router.Use(response.CORSMiddleware)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		sugar.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugar.Info("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		sugar.Fatalw("server forced to shutdown", "error", err)
	}

	sugar.Info("server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(loanHandler *handler.LoanHandler, benchmarkHandler *handler.BenchmarkHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/loans", loanHandler.CreateLoan).Methods("POST")
	api.HandleFunc("/loans", loanHandler.ListLoans).Methods("GET")
	api.HandleFunc("/loans/{loanId}", loanHandler.GetLoan).Methods("GET")
	api.HandleFunc("/loans/{loanId}", loanHandler.EditLoan).Methods("PATCH")
	api.HandleFunc("/loans/{loanId}/schedule", loanHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/loans/{loanId}/versions", loanHandler.ListVersions).Methods("GET")
	api.HandleFunc("/loans/{loanId}/versions/current", loanHandler.GetCurrentVersion).Methods("GET")
	api.HandleFunc("/loans/{loanId}/versions/{versionNumber:[0-9]+}", loanHandler.GetVersion).Methods("GET")
	api.HandleFunc("/loans/{loanId}/charges", loanHandler.AddCharge).Methods("POST")
	api.HandleFunc("/loans/{loanId}/phases", loanHandler.AddDisbursementPhase).Methods("POST")
	api.HandleFunc("/loans/{loanId}/phases/{sequence:[0-9]+}", loanHandler.UpdateDisbursementPhase).Methods("PUT")
	api.HandleFunc("/loans/{loanId}/moratoriums", loanHandler.AddMoratorium).Methods("POST")
	api.HandleFunc("/loans/{loanId}/prepayments", loanHandler.RecordPrepayment).Methods("POST")

	api.HandleFunc("/benchmarks", benchmarkHandler.ListNames).Methods("GET")
	api.HandleFunc("/benchmarks/{name}/rates", benchmarkHandler.AddRate).Methods("POST")
	api.HandleFunc("/benchmarks/{name}/rates", benchmarkHandler.History).Methods("GET")
	api.HandleFunc("/benchmarks/{name}/rates/current", benchmarkHandler.CurrentRate).Methods("GET")

	return router
}
