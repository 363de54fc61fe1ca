package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/keeper-api/internal/config"
	"github.com/phrazzld/keeper-api/internal/domain"
	"github.com/phrazzld/keeper-api/internal/events"
	"github.com/phrazzld/keeper-api/internal/generation"
	"github.com/phrazzld/keeper-api/internal/platform/memory"
	"github.com/phrazzld/keeper-api/internal/platform/sqlstore"
	"github.com/phrazzld/keeper-api/internal/service"
	"github.com/phrazzld/keeper-api/internal/service/auth"
	"github.com/phrazzld/keeper-api/internal/store"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	// db is nil for the memory driver.
	db *sql.DB

	taskStore     store.TaskStore
	accountStore  store.AccountDirectory
	strategyStore store.StrategyStore

	jwtService   auth.JWTService
	catalog      *service.StrategyCatalog
	taskService  *service.TaskService
	statsService *service.AggregationService

	eventEmitter *events.InMemoryEventEmitter
	dispatcher   *events.AsyncDispatcher
}

// newApplication opens storage for the configured driver, applies pending
// migrations, seeds the system strategies and wires the services.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	if err := app.openStores(ctx); err != nil {
		return nil, err
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.catalog, err = service.NewStrategyCatalog(app.strategyStore, logger)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create strategy catalog: %w", err)
	}
	if err := app.catalog.SeedSystemStrategies(ctx); err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to seed system strategies: %w", err)
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.NewNotificationLogHandler(logger))
	app.dispatcher = events.NewAsyncDispatcher(app.eventEmitter, events.DispatcherConfig{
		WorkerCount: cfg.Events.Workers,
		QueueSize:   cfg.Events.QueueSize,
	}, logger)
	app.dispatcher.Start()

	location, err := cfg.Generation.Location()
	if err != nil {
		app.cleanup()
		return nil, err
	}

	app.taskService, err = service.NewTaskService(
		app.taskStore,
		app.accountStore,
		app.catalog,
		generation.NewRotationGenerator(cfg.Generation.SearchHorizonDays),
		app.dispatcher,
		service.TaskServiceConfig{
			DefaultCycles: cfg.Generation.DefaultCycles,
			MaxCycles:     cfg.Generation.MaxCycles,
			Location:      location,
		},
		logger,
	)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	app.statsService, err = service.NewAggregationService(
		app.taskStore,
		app.accountStore,
		app.catalog,
		location,
		logger,
	)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create aggregation service: %w", err)
	}

	logger.Info("application initialized",
		slog.String("driver", cfg.Database.Driver),
		slog.String("timezone", location.String()))
	return app, nil
}

// openStores selects the storage backend. SQL backends are migrated to the
// latest version before use.
func (app *application) openStores(ctx context.Context) error {
	driver := app.config.Database.Driver
	if driver == config.DriverMemory {
		app.taskStore = memory.NewTaskStore()
		app.accountStore = memory.NewAccountDirectory()
		app.strategyStore = memory.NewStrategyStore()
		app.logger.Warn("using in-memory storage; data is lost on restart")
		return seedAccounts(ctx, app.accountStore, app.config.Database.SeedAccounts, app.logger)
	}
	if n := len(app.config.Database.SeedAccounts); n > 0 {
		app.logger.Warn("ignoring seed accounts for SQL driver",
			slog.String("driver", driver),
			slog.Int("count", n))
	}

	db, dialect, err := openDatabase(ctx, app.config.Database)
	if err != nil {
		return err
	}
	app.db = db

	if err := sqlstore.Migrate(ctx, db, dialect, "up", app.logger); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app.taskStore = sqlstore.NewTaskStore(db, dialect, app.logger)
	app.accountStore = sqlstore.NewAccountDirectory(db, dialect, app.logger)
	app.strategyStore = sqlstore.NewStrategyStore(db, dialect, app.logger)
	return nil
}

// seedAccounts creates the configured accounts so the memory backend can
// generate tasks without an external account registry.
func seedAccounts(ctx context.Context, dir store.AccountDirectory, seeds []config.AccountSeed, logger *slog.Logger) error {
	for i, seed := range seeds {
		userID, err := uuid.Parse(seed.UserID)
		if err != nil {
			return fmt.Errorf("seed account %d: invalid user_id: %w", i, err)
		}
		account, err := domain.NewAccount(userID, seed.Name, seed.Group)
		if err != nil {
			return fmt.Errorf("seed account %d: %w", i, err)
		}
		if err := dir.Create(ctx, account); err != nil {
			return fmt.Errorf("seed account %d: %w", i, err)
		}
	}
	if len(seeds) > 0 {
		logger.Info("seeded accounts", slog.Int("count", len(seeds)))
	}
	return nil
}

// openDatabase opens the SQL database named by cfg.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, sqlstore.Dialect, error) {
	dialect, err := sqlstore.DialectFor(cfg.Driver)
	if err != nil {
		return nil, "", err
	}
	db, err := sqlstore.Open(ctx, dialect, cfg.URL, cfg.MaxOpenConns)
	if err != nil {
		return nil, "", err
	}
	return db, dialect, nil
}

// cleanup drains pending events and releases resources held by the
// application.
func (app *application) cleanup() {
	if app.dispatcher != nil {
		timeout := time.Duration(app.config.Server.ShutdownTimeoutSeconds) * time.Second
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := app.dispatcher.Stop(ctx); err != nil {
			app.logger.Error("failed to drain event queue", slog.String("error", err.Error()))
		}
		cancel()
		app.dispatcher = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", slog.String("error", err.Error()))
		}
		app.db = nil
	}
}
