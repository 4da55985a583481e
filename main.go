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

	"coingecko_etl/config"
	"coingecko_etl/controllers"
	"coingecko_etl/middleware"
	"coingecko_etl/routes"
	"coingecko_etl/scheduler"
	"coingecko_etl/services/datafetcher"
	"coingecko_etl/services/notifier"
	"coingecko_etl/services/pipeline"
	"coingecko_etl/services/runlog"
	"coingecko_etl/services/transform"
	"coingecko_etl/services/warehouse"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("CoinGecko ETL starting",
		zap.String("environment", cfg.Environment),
		zap.String("warehouse", cfg.Warehouse.Describe()),
	)

	ctx := context.Background()

	// Run history: in memory for the status API, archived to MongoDB if configured
	history := runlog.NewMemoryRecorder(cfg.RunHistory)
	recorder := runlog.Multi{history}
	var archive *runlog.MongoRecorder
	if cfg.MongoURI != "" {
		archive, err = runlog.NewMongoRecorder(ctx, cfg.MongoURI, logger)
		if err != nil {
			logger.Warn("MongoDB run archive disabled", zap.Error(err))
		} else {
			recorder = append(recorder, archive)
		}
	}

	loader := warehouse.NewLoader(cfg.Warehouse.Dialector, config.GormConfig(cfg.Environment), logger)
	if cfg.Warehouse.Driver == config.DriverSQLite {
		if err := loader.EnsureTable(ctx); err != nil {
			logger.Fatal("failed to prepare local warehouse", zap.Error(err))
		}
	}

	sender, err := notifier.NewSMTPSender(cfg.Mail, logger)
	if err != nil {
		logger.Fatal("invalid mail configuration", zap.Error(err))
	}

	etl := pipeline.New(
		datafetcher.NewDataFetcher(cfg.CoinGecko, logger),
		transform.NewTransformer(),
		loader,
		notifier.NewNotifier(sender, cfg.Thresholds, logger),
		recorder,
		logger,
	)

	server := newStatusServer(cfg, history, loader, logger)
	go func() {
		logger.Info("status server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("status server error", zap.Error(err))
		}
	}()

	jobScheduler := scheduler.NewScheduler(etl, cfg.Schedule, logger)
	if err := jobScheduler.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	gracefulShutdown(server, jobScheduler, archive, logger)
}

func newStatusServer(cfg *config.Config, history *runlog.MemoryRecorder, loader *warehouse.Loader, logger *zap.Logger) *http.Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	status := controllers.NewStatusController(history, loader, cfg.Thresholds, logger)
	routes.SetupRoutes(router, status)

	return &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, archive *runlog.MongoRecorder, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	logger.Info("shutting down gracefully", zap.String("signal", sig.String()))

	// Stop scheduler first
	jobScheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	if err := archive.Close(ctx); err != nil {
		logger.Warn("failed to disconnect run archive", zap.Error(err))
	}

	logger.Info("shutdown completed")
}
