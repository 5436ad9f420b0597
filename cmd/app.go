package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"respite/internal/config"
	"respite/internal/core/activity"
	"respite/internal/core/timekeeper"
	"respite/internal/metrics"
	"respite/internal/options"
	"respite/internal/platform"
	"respite/internal/stats"
	"respite/internal/storage"
	"respite/internal/ui/console"
	"respite/internal/wire"
)

const eventBuffer = 32

// application owns the long lived components shared by the desktop and
// headless front ends.
type application struct {
	opts         options.Options
	logger       *zap.Logger
	configurator *config.Configurator
	settingsPath string
	monitor      *activity.Monitor
	keeper       *timekeeper.TimeKeeper
	metrics      *metrics.Metrics
	stats        *stats.Store
	statePath    string
	origin       wire.Origin
	cancel       context.CancelFunc
	workers      sync.WaitGroup
}

func newApplication(ctx context.Context, opts options.Options, logger *zap.Logger) (*application, error) {
	store, err := storage.NewYAMLStore(options.AppName, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	configurator := config.New(store, logger)
	if err := configurator.Load(); err != nil {
		logger.Warn("using default configuration", zap.Error(err))
	}

	statePath, err := storage.StatePath(options.AppName, opts.StateDir)
	if err != nil {
		return nil, err
	}

	app := &application{
		opts:         opts,
		logger:       logger,
		configurator: configurator,
		settingsPath: store.Path(),
		statePath:    statePath,
		origin:       wire.LocalOrigin(ctx),
		metrics:      metrics.New(opts.MetricsAddr != ""),
	}

	app.monitor = activity.NewMonitor(configurator.MonitorConfig(), activity.Options{
		Source: platform.NewInputSource(logger),
		Logger: logger,
	})
	app.monitor.SetListener(app.metrics)
	app.keeper = timekeeper.New(app.monitor, configurator, timekeeper.Config{
		TickInterval: opts.Heartbeat,
		Logger:       logger,
		Observer:     app.metrics,
	})

	configurator.AddListener("timers/", app.keeper)
	configurator.AddListener("breaks/", app.keeper)
	configurator.AddListener("general/", app.keeper)
	configurator.AddListener("monitor/", &monitorSettings{monitor: app.monitor, configurator: configurator})

	if !opts.NoStats {
		app.stats, err = stats.Open(filepath.Join(filepath.Dir(statePath), "stats.db"))
		if err != nil {
			logger.Warn("statistics disabled", zap.Error(err))
		}
	}
	return app, nil
}

// start restores saved break state and launches the background workers.
// The returned context is cancelled by close.
func (app *application) start(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	app.cancel = cancel
	app.restoreState()

	app.spawn(func() { app.metrics.Run(ctx, app.keeper.Subscribe(eventBuffer)) })
	if app.opts.MetricsAddr != "" {
		app.spawn(func() {
			if err := app.metrics.Serve(ctx, app.opts.MetricsAddr, app.logger); err != nil {
				app.logger.Error("metrics endpoint stopped", zap.Error(err))
			}
		})
	}
	if app.stats != nil {
		recorder := stats.NewRecorder(app.stats, app.monitor, stats.RecorderConfig{Logger: app.logger})
		events := app.keeper.Subscribe(eventBuffer)
		app.spawn(func() { recorder.Run(ctx, events) })
	}
	app.spawn(func() {
		if err := app.configurator.Watch(ctx, app.settingsPath); err != nil {
			app.logger.Warn("configuration changes on disk will not be picked up", zap.Error(err))
		}
	})
	app.spawn(func() {
		err := platform.NewSessionWatcher(app.logger).Watch(ctx, app.keeper.SessionIdleChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Info("screensaver notifications unavailable", zap.Error(err))
		}
	})

	if err := app.monitor.Start(ctx); err != nil {
		app.keeper.ReportMonitorFailure(err)
	}
	app.keeper.Start()
	return ctx
}

// close stops the scheduler, persists its state and waits for the workers.
func (app *application) close() {
	if app.cancel != nil {
		app.cancel()
	}
	app.keeper.Stop()
	app.monitor.Terminate()
	app.saveState()
	app.workers.Wait()
	if app.stats != nil {
		if err := app.stats.Close(); err != nil {
			app.logger.Warn("close statistics", zap.Error(err))
		}
	}
}

func (app *application) spawn(fn func()) {
	app.workers.Add(1)
	go func() {
		defer app.workers.Done()
		fn()
	}()
}

func (app *application) restoreState() {
	snapshot, err := storage.LoadState(app.statePath)
	switch {
	case errors.Is(err, storage.ErrNoState):
		return
	case err != nil:
		app.logger.Warn("ignoring unreadable break state", zap.String("path", app.statePath), zap.Error(err))
		return
	}
	if snapshot.Origin.Host != "" && snapshot.Origin.Host != app.origin.Host {
		app.logger.Info("break state belongs to another host, starting fresh", zap.String("host", snapshot.Origin.Host))
		return
	}
	app.keeper.Restore(snapshot.Breaks, snapshot.SavedAt)
}

func (app *application) saveState() {
	snapshot := wire.Snapshot{
		Origin:  app.origin,
		SavedAt: time.Now(),
		Mode:    app.keeper.RegularOperationMode(),
		Usage:   app.keeper.UsageMode(),
		Breaks:  app.keeper.Snapshots(),
	}
	if err := storage.SaveState(app.statePath, snapshot); err != nil {
		app.logger.Warn("break state not saved", zap.Error(err))
	}
}

// runHeadless prints break prompts to stdout until ctx is done.
func (app *application) runHeadless(ctx context.Context, guard *platform.InstanceGuard) error {
	app.keeper.SetPresenter(console.New(os.Stdout, app.logger))
	ctx = app.start(ctx)
	app.spawn(func() {
		guard.Serve(ctx, func() {
			app.logger.Info("status requested by another instance", zap.String("status", app.keeper.Tooltip()))
		})
	})
	app.logger.Info("running headless", zap.String("settings", app.settingsPath))
	<-ctx.Done()
	return nil
}

// monitorSettings forwards monitor/ keys to the activity monitor.
type monitorSettings struct {
	monitor      *activity.Monitor
	configurator *config.Configurator
}

func (settings *monitorSettings) ConfigChanged(string) {
	settings.monitor.SetConfig(settings.configurator.MonitorConfig())
}
