package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/kbukum/gocompose/catalog"
	"github.com/kbukum/gocompose/config"
	"github.com/kbukum/gocompose/di"
	"github.com/kbukum/gocompose/logger"
	"github.com/kbukum/gocompose/observability"
)

// App wires configuration, logging, telemetry, a root container and the
// configured manifest catalog, and tears them down in reverse order.
//
// Example:
//
//	cfg, _ := config.LoadConfig("inventory")
//	app, err := bootstrap.NewApp(ctx, cfg, bootstrap.WithTypes(types))
//	if err != nil {
//	    return err
//	}
//	defer app.Shutdown(context.Background())
type App struct {
	Name      string
	Cfg       *config.Config
	Container *di.Container
	Catalog   *catalog.File
	Logger    *logger.Logger

	gracefulTimeout time.Duration
	shutdownTel     func(context.Context) error
	onStop          []Hook
}

// NewApp validates cfg, initializes the global logger and telemetry, and
// builds the root container. When cfg names a catalog file it is loaded
// through the Types given with WithTypes and attached to the container.
func NewApp(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	o := resolveOptions(opts)

	app := &App{
		Name:            cfg.Name,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(cfg.Logging)
		app.Logger = logger.Global().WithComponent(cfg.Name)
	}

	shutdown, err := observability.Init(ctx, cfg.Name, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	app.shutdownTel = shutdown

	app.Container = di.New(append([]di.Option{
		di.WithLogger(app.Logger),
		di.WithConfig(cfg.Composition),
	}, o.containerOpts...)...)

	types := o.types
	if types == nil {
		types = catalog.NewTypes()
	}
	cat, err := catalog.FromConfig(cfg.Composition, types, catalog.WithLogger(app.Logger))
	if err == nil && cat != nil {
		app.Catalog = cat
		err = app.Container.AddCatalog(cat)
	}
	if err != nil {
		return nil, multierr.Combine(err, app.Container.Dispose(), shutdown(ctx))
	}

	app.Logger.Info("application composed", logger.Fields(
		"name", app.Name,
		logger.FieldContainerID, app.Container.ID(),
		"catalog", cfg.Composition.CatalogFile,
	))
	return app, nil
}

// RunTask runs task with a context canceled on SIGINT or SIGTERM, then shuts
// the application down. The task's error takes precedence.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context, c *di.Container) error) error {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("received signal, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx, a.Container)
	stopErr := a.Shutdown(context.Background())
	if taskErr != nil {
		return taskErr
	}
	return stopErr
}

// Shutdown runs the OnStop hooks, stops the catalog watcher, disposes the
// container and flushes telemetry within the graceful timeout. Every failure is reported.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down", logger.Fields("timeout", a.gracefulTimeout.String()))
	ctx, cancel := context.WithTimeout(ctx, a.gracefulTimeout)
	defer cancel()

	err := runHooks(ctx, a.onStop)
	if a.Catalog != nil {
		err = multierr.Append(err, a.Catalog.Close())
	}
	err = multierr.Append(err, a.Container.Dispose())
	err = multierr.Append(err, a.shutdownTel(ctx))
	if err != nil {
		a.Logger.Error("shutdown completed with errors", logger.ErrorFields("shutdown", err))
		return err
	}
	a.Logger.Info("shutdown complete")
	return nil
}
