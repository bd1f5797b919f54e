package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"neurodyn/internal"
	"neurodyn/internal/config"
	"neurodyn/internal/container"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		internal.DefaultLogger.Warn("failed to read .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		internal.DefaultLogger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level))
	internal.DefaultLogger = logger
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.GinMode)
	appContainer, err := container.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to create application container: %v", err)
		os.Exit(1)
	}
	defer appContainer.Shutdown(context.Background())

	if cfg.Database.URL != "" {
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
		if err != nil {
			logger.Error("Failed to connect to database: %v", err)
			os.Exit(1)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		if err := appContainer.InitWithDatabase(ctx, db); err != nil {
			db.Close()
			logger.Error("Failed to initialize container: %v", err)
			os.Exit(1)
		}
		logger.Info("Using PostgreSQL run store")
	} else {
		appContainer.InitInMemory()
		logger.Warn("DATABASE_URL not set, runs are kept in memory")
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: appContainer.Server.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed: %v", err)
		}
	}()

	logger.Info("Starting neurodyn API on port %s (lambda=%.3f bins=%d nstd=%g)",
		cfg.Server.Port, cfg.Distance.Lambda, cfg.Distance.Bins, cfg.Distance.NSTD)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
