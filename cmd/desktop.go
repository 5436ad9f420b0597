package main

import (
	"context"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"go.uber.org/zap"

	"respite/internal/config"
	"respite/internal/core/model"
	"respite/internal/core/timekeeper"
	"respite/internal/options"
	"respite/internal/platform"
	"respite/internal/ui/overlay"
	"respite/internal/ui/preferences"
	"respite/internal/ui/tray"
)

// runDesktop shows the tray icon and break windows until the user quits or
// ctx is done.
func (app *application) runDesktop(ctx context.Context, guard *platform.InstanceGuard) error {
	fyneApp := fyneapp.NewWithID("org.respite.app")

	overlayWindow := overlay.New(fyneApp, overlayConfig(app.configurator), app.keeper, app.logger)
	app.keeper.SetPresenter(overlayWindow)
	prefsWindow := preferences.New(fyneApp, app.configurator)

	trayManager, err := tray.New(fyneApp, tray.Callbacks{
		OnPreferences: prefsWindow.Show,
		OnSetMode: func(mode model.OperationMode) {
			app.background("set operation mode", func() error { return app.keeper.SetOperationMode(mode) })
		},
		OnReading: func(reading bool) {
			usage := model.UsageNormal
			if reading {
				usage = model.UsageReading
			}
			app.background("set usage mode", func() error { return app.keeper.SetUsageMode(usage) })
		},
		OnRestBreak: func() {
			app.background("start rest break", func() error {
				return app.keeper.ForceBreak(model.RestBreak, model.HintUserInitiated)
			})
		},
		OnQuit: fyneApp.Quit,
	})
	if err != nil {
		return err
	}
	trayManager.SetReading(app.keeper.UsageMode() == model.UsageReading)

	app.configurator.AddListener("gui/", &guiSettings{
		configurator: app.configurator,
		overlay:      overlayWindow,
		autostart:    platform.NewAutostart(),
		args:         loginArgs(app.opts),
		logger:       app.logger,
	})

	events := app.keeper.Subscribe(eventBuffer)
	ctx = app.start(ctx)
	app.spawn(func() { app.followEvents(events, trayManager) })
	app.spawn(func() { guard.Serve(ctx, func() { fyne.Do(prefsWindow.Show) }) })

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			fyne.Do(fyneApp.Quit)
		case <-stopped:
		}
	}()

	fyneApp.Run()
	close(stopped)
	return nil
}

// followEvents mirrors scheduler events in the tray until the scheduler stops.
func (app *application) followEvents(events <-chan timekeeper.Event, trayManager *tray.Manager) {
	warned := false
	for event := range events {
		switch event.Type {
		case timekeeper.EventProgress:
			tooltip := app.keeper.Tooltip()
			fyne.Do(func() { trayManager.SetStatus(tooltip) })
		case timekeeper.EventModeChanged:
			mode := event.Mode
			reading := app.keeper.UsageMode() == model.UsageReading
			warn := !warned && mode != model.ModeNormal
			warned = true
			fyne.Do(func() {
				trayManager.SetMode(mode)
				trayManager.SetReading(reading)
				if warn {
					trayManager.Notify("Breaks are "+mode.String(), modeWarning(mode))
				}
			})
		case timekeeper.EventMonitorError:
			message := event.Message
			fyne.Do(func() {
				trayManager.Notify("Break monitoring suspended",
					"User activity cannot be observed: "+message)
			})
		case timekeeper.EventDayRollover:
			fyne.Do(func() { trayManager.Notify("New day", "The daily limit has been reset.") })
		}
	}
}

// background runs a scheduler request off the UI goroutine.
func (app *application) background(action string, request func() error) {
	go func() {
		if err := request(); err != nil {
			app.logger.Warn(action, zap.Error(err))
		}
	}()
}

func modeWarning(mode model.OperationMode) string {
	if mode == model.ModeSuspended {
		return "Activity is not monitored and no breaks will be prompted."
	}
	return "Breaks are counted but not prompted until you switch back to normal mode."
}

func overlayConfig(configurator *config.Configurator) overlay.Config {
	return overlay.Config{
		Opacity:    overlay.AlphaFromOpacity(configurator.Float(config.KeyOverlayOpacity)),
		Fullscreen: configurator.Bool(config.KeyFullscreen),
	}
}

// guiSettings applies gui/ keys to the overlay and the login entry.
type guiSettings struct {
	configurator *config.Configurator
	overlay      *overlay.Window
	autostart    platform.Autostart
	args         []string
	logger       *zap.Logger
}

func (settings *guiSettings) ConfigChanged(key string) {
	if key != config.KeyAutostart {
		settings.overlay.UpdateConfig(overlayConfig(settings.configurator))
		return
	}
	enabled := settings.configurator.Bool(config.KeyAutostart)
	if err := platform.ApplyAutostart(settings.autostart, options.AppName, enabled, settings.args...); err != nil {
		settings.logger.Warn("update autostart", zap.Bool("enabled", enabled), zap.Error(err))
	}
}

// loginArgs keeps an explicit settings file for launches at login.
func loginArgs(opts options.Options) []string {
	if opts.ConfigPath == "" {
		return nil
	}
	return []string{"--config", opts.ConfigPath}
}
