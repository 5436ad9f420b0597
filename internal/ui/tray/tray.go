package tray

import (
	"errors"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"

	"respite/internal/core/model"
)

// ErrTrayUnsupported is returned when the driver has no system tray.
var ErrTrayUnsupported = errors.New("system tray unsupported")

// Callbacks defines tray action handlers.
type Callbacks struct {
	OnPreferences func()
	OnSetMode     func(model.OperationMode)
	OnReading     func(bool)
	OnRestBreak   func()
	OnQuit        func()
}

// Manager handles system tray state.
type Manager struct {
	app       fyne.App
	desktop   desktop.App
	callbacks Callbacks
	status    []string
	mode      model.OperationMode
	reading   bool
}

// New installs the tray menu on app.
func New(app fyne.App, callbacks Callbacks) (*Manager, error) {
	desktopApp, ok := app.(desktop.App)
	if !ok {
		return nil, ErrTrayUnsupported
	}
	manager := &Manager{app: app, desktop: desktopApp, callbacks: callbacks, status: []string{"Starting..."}}
	manager.refreshMenu()
	desktopApp.SetSystemTrayIcon(modeIcon(model.ModeNormal))
	return manager, nil
}

// SetStatus shows the remaining time lines at the top of the menu.
func (manager *Manager) SetStatus(tooltip string) {
	manager.status = strings.Split(tooltip, "\n")
	manager.refreshMenu()
}

// SetMode marks the effective operation mode.
func (manager *Manager) SetMode(mode model.OperationMode) {
	manager.mode = mode
	manager.refreshMenu()
	if manager.desktop != nil {
		manager.desktop.SetSystemTrayIcon(modeIcon(mode))
	}
}

// SetReading marks the reading usage mode.
func (manager *Manager) SetReading(reading bool) {
	manager.reading = reading
	manager.refreshMenu()
}

// Notify shows a desktop notification.
func (manager *Manager) Notify(title, content string) {
	if manager.app != nil {
		manager.app.SendNotification(fyne.NewNotification(title, content))
	}
}

func (manager *Manager) menu() *fyne.Menu {
	var items []*fyne.MenuItem
	for _, line := range manager.status {
		status := fyne.NewMenuItem(line, nil)
		status.Disabled = true
		items = append(items, status)
	}
	items = append(items, fyne.NewMenuItemSeparator())

	var modes []*fyne.MenuItem
	for _, mode := range []model.OperationMode{model.ModeNormal, model.ModeQuiet, model.ModeSuspended} {
		item := fyne.NewMenuItem(modeLabel(mode), func() {
			if manager.callbacks.OnSetMode != nil {
				manager.callbacks.OnSetMode(mode)
			}
		})
		item.Checked = mode == manager.mode
		modes = append(modes, item)
	}
	modeMenu := fyne.NewMenuItem("Mode", nil)
	modeMenu.ChildMenu = fyne.NewMenu("", modes...)

	reading := fyne.NewMenuItem("Reading mode", func() {
		if manager.callbacks.OnReading != nil {
			manager.callbacks.OnReading(!manager.reading)
		}
	})
	reading.Checked = manager.reading

	restBreak := fyne.NewMenuItem("Take a rest break now", func() {
		if manager.callbacks.OnRestBreak != nil {
			manager.callbacks.OnRestBreak()
		}
	})
	restBreak.Disabled = manager.mode == model.ModeSuspended

	preferences := fyne.NewMenuItem("Preferences", func() {
		if manager.callbacks.OnPreferences != nil {
			manager.callbacks.OnPreferences()
		}
	})

	items = append(items, restBreak, modeMenu, reading, preferences, fyne.NewMenuItemSeparator())
	// Marked as the quit item so fyne does not append its own.
	quit := fyne.NewMenuItem("Quit", func() {
		if manager.callbacks.OnQuit != nil {
			manager.callbacks.OnQuit()
		}
	})
	quit.IsQuit = true
	items = append(items, quit)
	return fyne.NewMenu("Respite", items...)
}

func (manager *Manager) refreshMenu() {
	if manager.desktop != nil {
		manager.desktop.SetSystemTrayMenu(manager.menu())
	}
}

func modeLabel(mode model.OperationMode) string {
	switch mode {
	case model.ModeQuiet:
		return "Quiet"
	case model.ModeSuspended:
		return "Suspended"
	default:
		return "Normal"
	}
}

// modeIcon dims the tray icon while breaks are not being prompted.
func modeIcon(mode model.OperationMode) fyne.Resource {
	if mode == model.ModeNormal {
		return theme.VisibilityIcon()
	}
	return theme.VisibilityOffIcon()
}
