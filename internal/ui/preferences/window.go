package preferences

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"respite/internal/config"
	"respite/internal/core/model"
)

type breakWidgets struct {
	enabled     *widget.Check
	limit       *widget.Entry
	duration    *widget.Entry
	postponable *widget.Check
	skippable   *widget.Check
}

// Window handles the preferences UI.
type Window struct {
	window       fyne.Window
	configurator *config.Configurator
	breaks       [model.BreakCount]breakWidgets
	opacity      *widget.Slider
	fullscreen   *widget.Check
	autostart    *widget.Check
}

// New creates a preferences window editing configurator.
func New(app fyne.App, configurator *config.Configurator) *Window {
	prefs := &Window{
		window:       app.NewWindow("Respite Preferences"),
		configurator: configurator,
	}

	tabs := container.NewAppTabs()
	for _, id := range model.AllBreaks {
		widgets := breakWidgets{
			enabled:     widget.NewCheck("Enabled", nil),
			limit:       widget.NewEntry(),
			duration:    widget.NewEntry(),
			postponable: widget.NewCheck("Allow postponing", nil),
			skippable:   widget.NewCheck("Allow skipping", nil),
		}
		prefs.breaks[id] = widgets
		form := widget.NewForm(
			widget.NewFormItem("", widgets.enabled),
			widget.NewFormItem("Every (minutes)", widgets.limit),
			widget.NewFormItem("Duration (minutes)", widgets.duration),
			widget.NewFormItem("", widgets.postponable),
			widget.NewFormItem("", widgets.skippable),
		)
		tabs.Append(container.NewTabItem(id.Label(), form))
	}

	prefs.opacity = widget.NewSlider(minOpacity, maxOpacity)
	prefs.opacity.Step = 0.01
	prefs.fullscreen = widget.NewCheck("Fullscreen break window", nil)
	prefs.autostart = widget.NewCheck("Start on login", nil)
	tabs.Append(container.NewTabItem("General", container.NewVBox(
		widget.NewLabel("Break window opacity"),
		prefs.opacity,
		prefs.fullscreen,
		prefs.autostart,
	)))

	saveButton := widget.NewButton("Save", prefs.handleSave)
	cancelButton := widget.NewButton("Cancel", prefs.window.Hide)
	buttons := container.NewHBox(layout.NewSpacer(), cancelButton, saveButton)

	prefs.window.SetContent(container.NewBorder(nil, buttons, nil, nil, tabs))
	prefs.window.SetCloseIntercept(prefs.window.Hide)
	prefs.window.Resize(fyne.NewSize(440, 360))
	return prefs
}

// Show refreshes the values and displays the window.
func (prefs *Window) Show() {
	prefs.fill(Load(prefs.configurator))
	prefs.window.Show()
	prefs.window.RequestFocus()
}

func (prefs *Window) fill(settings Settings) {
	for _, id := range model.AllBreaks {
		values := settings.Breaks[id]
		widgets := prefs.breaks[id]
		widgets.enabled.SetChecked(values.Enabled)
		widgets.limit.SetText(formatDuration(values.Limit))
		widgets.duration.SetText(formatDuration(values.Duration))
		widgets.postponable.SetChecked(values.Postponable)
		widgets.skippable.SetChecked(values.Skippable)
	}
	prefs.opacity.SetValue(settings.OverlayOpacity)
	prefs.fullscreen.SetChecked(settings.Fullscreen)
	prefs.autostart.SetChecked(settings.Autostart)
}

func (prefs *Window) collect() (Settings, error) {
	settings := Load(prefs.configurator)
	for _, id := range model.AllBreaks {
		widgets := prefs.breaks[id]
		values := &settings.Breaks[id]
		values.Enabled = widgets.enabled.Checked
		values.Postponable = widgets.postponable.Checked
		values.Skippable = widgets.skippable.Checked

		limit, ok := parseDuration(widgets.limit.Text, time.Minute)
		if !ok {
			return settings, fmt.Errorf("%w: %s interval %q", ErrInvalidSetting, id.Label(), widgets.limit.Text)
		}
		duration, ok := parseDuration(widgets.duration.Text, time.Minute)
		if !ok {
			return settings, fmt.Errorf("%w: %s duration %q", ErrInvalidSetting, id.Label(), widgets.duration.Text)
		}
		values.Limit, values.Duration = limit, duration
	}
	settings.OverlayOpacity = prefs.opacity.Value
	settings.Fullscreen = prefs.fullscreen.Checked
	settings.Autostart = prefs.autostart.Checked
	return settings, nil
}

func (prefs *Window) handleSave() {
	settings, err := prefs.collect()
	if err == nil {
		err = settings.Apply(prefs.configurator)
	}
	if err != nil {
		dialog.ShowError(err, prefs.window)
		return
	}
	prefs.window.Hide()
}
