package container

import (
	"context"
	"fmt"

	"neurodyn/adapters/memory"
	"neurodyn/adapters/postgres"
	"neurodyn/app"
	"neurodyn/internal"
	"neurodyn/internal/api"
	"neurodyn/internal/config"
	"neurodyn/internal/migration"
	"neurodyn/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure; DB is nil when runs are kept in memory
	DB *sqlx.DB

	RunRepo ports.RunRepository
	SSEHub  *api.SSEHub
	Service *app.DistanceRuleService
	Server  *api.Server
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Container{Config: cfg, Logger: logger}, nil
}

// InitWithDatabase backs runs with PostgreSQL, applying migrations when
// enabled, and builds the service and HTTP server.
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}
	c.DB = db

	if c.Config.Database.Migrate {
		runner := migration.NewRunner()
		if err := runner.Run(ctx, db); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		c.Logger.Info("Schema version %s applied", runner.Version())
	}

	c.RunRepo = postgres.NewRunRepository(db)
	c.initServices()
	return nil
}

// InitInMemory keeps runs in process memory
func (c *Container) InitInMemory() {
	c.RunRepo = memory.NewRunRepository()
	c.initServices()
}

func (c *Container) initServices() {
	c.SSEHub = api.NewSSEHub(c.Logger)
	c.Service = app.NewDistanceRuleService(c.RunRepo,
		app.WithLogger(c.Logger),
		app.WithWorkers(c.Config.Cohort.Workers),
		app.WithPublisher(c.SSEHub),
	)
	c.Server = api.NewServer(c.Service, c.SSEHub, c.Logger, api.WithDefaultParams(c.Config.Distance))
	c.Logger.Debug("Container initialized: workers=%d", c.Config.Cohort.Workers)
}

// Shutdown stops the event hub and closes the database
func (c *Container) Shutdown(ctx context.Context) error {
	if c.SSEHub != nil {
		c.SSEHub.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
