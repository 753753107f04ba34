package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/osvaldoandrade/flowdb/internal/backoff"
	"github.com/osvaldoandrade/flowdb/internal/metrics"
	"github.com/osvaldoandrade/flowdb/internal/middleware"
	"github.com/osvaldoandrade/flowdb/internal/providers"
	"github.com/osvaldoandrade/flowdb/internal/services"
	"github.com/osvaldoandrade/flowdb/internal/tracing"
	"github.com/osvaldoandrade/flowdb/pkg/auth"
	_ "github.com/osvaldoandrade/flowdb/pkg/auth/static" // Register static admin token provider
	"github.com/osvaldoandrade/flowdb/pkg/config"
	"github.com/osvaldoandrade/flowdb/pkg/persistence"
	_ "github.com/osvaldoandrade/flowdb/pkg/persistence/memory" // Register storage providers
	_ "github.com/osvaldoandrade/flowdb/pkg/persistence/mongo"
	_ "github.com/osvaldoandrade/flowdb/pkg/persistence/redis"
	"github.com/osvaldoandrade/flowdb/pkg/schema"

	"github.com/gin-gonic/gin"
)

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Store           persistence.PluginPersistence
	Schema          *schema.Schema
	Flows           services.FlowService
	Logger          *slog.Logger
	AdminValidator  auth.Validator
	TracingShutdown func(context.Context) error
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithAdminValidator sets a custom validator for admin endpoints
func WithAdminValidator(validator auth.Validator) ApplicationOption {
	return func(app *Application) error {
		app.AdminValidator = validator
		return nil
	}
}

// WithStore replaces the persistence backend selected by the config
func WithStore(store persistence.PluginPersistence) ApplicationOption {
	return func(app *Application) error {
		app.Store = store
		return nil
	}
}

// WithLogOutput sends logs to w instead of stdout
func WithLogOutput(w io.Writer) ApplicationOption {
	return func(app *Application) error {
		app.Logger = NewLogger(app.Config, w)
		return nil
	}
}

// NewLogger builds the service logger from the config log settings.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With("service", "flowdb", "env", cfg.Env)
}

// OpenStore opens the persistence backend named by cfg.Storage. With
// fileStorage local the artifacts go to cfg.LocalFilesDir.
func OpenStore(cfg *config.Config, logger *slog.Logger) (persistence.PluginPersistence, error) {
	provider, err := cfg.PersistenceProvider()
	if err != nil {
		return nil, err
	}
	pluginCfg := persistence.PluginConfig{Logger: logger}
	if cfg.FileStorage == config.FileStorageLocal {
		if err := os.MkdirAll(cfg.LocalFilesDir, 0o755); err != nil {
			return nil, fmt.Errorf("create local files dir: %w", err)
		}
		pluginCfg.FileStorage = providers.NewLocalFileStorage(cfg.LocalFilesDir)
	}
	store, err := persistence.NewPersistence(provider, pluginCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := backoff.Retry(ctx, cfg.RetryPolicy(), store.Health); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s storage unhealthy: %w", cfg.Storage, err)
	}
	return store, nil
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	app := &Application{
		Config: cfg,
		Logger: NewLogger(cfg, os.Stdout),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	logger := app.Logger
	slog.SetDefault(logger)

	shutdown, err := tracing.Setup(context.Background(), cfg.Tracing, logger)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	app.TracingShutdown = shutdown

	if app.Store == nil {
		store, err := OpenStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		app.Store = store
	}
	metrics.RegisterStorageCollector(app.Store.FlowStorage(), logger)

	app.Schema = schema.New(app.Store.FileStorage())
	app.Flows = services.NewFlowService(app.Store.FlowStorage(), app.Schema, logger)

	if app.AdminValidator == nil && cfg.AdminToken != "" {
		raw, err := json.Marshal(cfg.AdminToken)
		if err != nil {
			return nil, err
		}
		validator, err := auth.NewValidator(auth.ProviderConfig{Type: "static", Config: raw})
		if err != nil {
			return nil, err
		}
		app.AdminValidator = validator
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.TracingMiddleware(cfg.Tracing.ServiceName),
	)
	app.Engine = engine

	return app, nil
}

// Close flushes traces and releases the storage backend.
func (app *Application) Close(ctx context.Context) error {
	if app.TracingShutdown != nil {
		_ = app.TracingShutdown(ctx)
	}
	if app.Store != nil {
		return app.Store.Close()
	}
	return nil
}
