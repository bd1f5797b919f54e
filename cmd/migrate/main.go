package main

import (
	"context"
	"os"
	"time"

	"neurodyn/internal"
	"neurodyn/internal/config"
	"neurodyn/internal/migration"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load()
	logger := internal.NewDefaultLogger()
	defer logger.Sync()

	if len(os.Args) < 2 || (os.Args[1] != "up" && os.Args[1] != "reset") {
		logger.Error("Usage: migrate <up|reset> [database_url]")
		os.Exit(2)
	}
	action := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	databaseURL := cfg.Database.URL
	if len(os.Args) > 2 {
		databaseURL = os.Args[2]
	}
	if databaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		logger.Error("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	runner := migration.NewRunner()
	if action == "reset" {
		logger.Warn("Dropping distance-rule tables")
		if err := runner.Reset(ctx, db); err != nil {
			logger.Error("Reset failed: %v", err)
			os.Exit(1)
		}
	}
	if err := runner.Run(ctx, db); err != nil {
		logger.Error("Migration failed: %v", err)
		os.Exit(1)
	}
	logger.Info("Schema version %s is up to date", runner.Version())
}
