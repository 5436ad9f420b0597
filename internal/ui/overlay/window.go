package overlay

import (
	"context"
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"respite/internal/core/model"
	"respite/internal/ui/exercises"
)

// Actions are the user decisions a break window can report.
type Actions interface {
	PostponeBreak(id model.BreakID) error
	SkipBreak(id model.BreakID) error
}

// Config defines overlay visuals.
type Config struct {
	Opacity    uint8
	Fullscreen bool
}

type windowMode int

const (
	modeHidden windowMode = iota
	modePrelude
	modeBreak
)

// Window shows prelude and break windows. It implements the scheduler's
// Presenter; every call is marshalled onto the fyne main goroutine.
type Window struct {
	app     fyne.App
	window  fyne.Window
	prelude fyne.Window
	config  Config
	actions Actions
	logger  *zap.Logger
	engine  *exercises.Engine

	background    *canvas.Rectangle
	titleLabel    *canvas.Text
	subtitleLabel *canvas.Text
	exerciseLabel *widget.Label
	timerLabel    *canvas.Text
	progress      *widget.ProgressBar
	postpone      *widget.Button
	skip          *widget.Button

	preludeTitle    *canvas.Text
	preludeProgress *widget.ProgressBar
	preludePostpone *widget.Button

	current model.BreakID
	mode    windowMode
}

const (
	overlayWidthFraction  = float32(0.3)
	overlayHeightFraction = float32(0.3)
	defaultScreenWidth    = float32(1920)
	defaultScreenHeight   = float32(1080)
)

var (
	textColor   = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	accentColor = color.NRGBA{R: 232, G: 190, B: 66, A: 255}
	alertColor  = color.NRGBA{R: 230, G: 80, B: 60, A: 255}
)

type splashWindowDriver interface {
	CreateSplashWindow() fyne.Window
}

// New creates the overlay windows. actions receives postpone and skip requests.
func New(app fyne.App, config Config, actions Actions, logger *zap.Logger) *Window {
	if logger == nil {
		logger = zap.NewNop()
	}
	overlay := &Window{
		app:     app,
		config:  config,
		actions: actions,
		logger:  logger.Named("overlay"),
	}
	overlay.engine = exercises.New(func(exercise exercises.Exercise) {
		fyne.Do(func() {
			overlay.exerciseLabel.SetText(exercise.Title + "\n" + exercise.Description)
		})
	})

	overlay.window = undecorated(app, "Break")
	overlay.background = canvas.NewRectangle(color.NRGBA{A: config.Opacity})

	overlay.titleLabel = newText("", 28, true, textColor)
	overlay.subtitleLabel = newText("", 16, false, textColor)
	overlay.timerLabel = newText("--:--", 22, true, accentColor)
	overlay.exerciseLabel = widget.NewLabel("")
	overlay.exerciseLabel.Wrapping = fyne.TextWrapWord
	overlay.progress = widget.NewProgressBar()
	overlay.progress.TextFormatter = func() string { return "" }
	overlay.postpone = widget.NewButton("Postpone", func() { overlay.request(overlay.postponeCurrent) })
	overlay.skip = widget.NewButton("Skip", func() { overlay.request(overlay.skipCurrent) })

	panel := container.NewVBox(
		overlay.titleLabel,
		overlay.subtitleLabel,
		overlay.exerciseLabel,
		overlay.timerLabel,
		overlay.progress,
		container.NewHBox(layout.NewSpacer(), overlay.postpone, overlay.skip),
	)
	overlay.window.SetContent(container.NewStack(overlay.background, container.NewPadded(container.NewCenter(panel))))

	overlay.prelude = undecorated(app, "Break soon")
	overlay.preludeTitle = newText("", 16, true, textColor)
	overlay.preludeProgress = widget.NewProgressBar()
	overlay.preludeProgress.TextFormatter = func() string { return "" }
	overlay.preludePostpone = widget.NewButton("Postpone", func() { overlay.request(overlay.postponeCurrent) })
	overlay.prelude.SetContent(container.NewStack(
		canvas.NewRectangle(color.NRGBA{R: 30, G: 30, B: 30, A: 235}),
		container.NewPadded(container.NewVBox(overlay.preludeTitle, overlay.preludeProgress,
			container.NewHBox(layout.NewSpacer(), overlay.preludePostpone))),
	))
	return overlay
}

// CreatePreludeWindow announces an upcoming break.
func (overlay *Window) CreatePreludeWindow(id model.BreakID) {
	fyne.Do(func() {
		overlay.current = id
		overlay.mode = modePrelude
		overlay.preludeTitle.Text = preludeText(id, model.PreludeInitial)
		overlay.preludeTitle.Color = stageColor(model.PreludeInitial)
		overlay.preludeTitle.Refresh()
		overlay.preludeProgress.SetValue(0)
		overlay.window.Hide()
		overlay.prelude.Show()
		overlay.prelude.Resize(fyne.NewSize(360, overlay.prelude.Content().MinSize().Height))
		overlay.prelude.CenterOnScreen()
	})
}

// CreateBreakWindow shows the break overlay.
func (overlay *Window) CreateBreakWindow(id model.BreakID, flags model.BreakFlags) {
	fyne.Do(func() {
		overlay.current = id
		overlay.mode = modeBreak
		overlay.titleLabel.Text = breakTitle(id)
		overlay.titleLabel.Refresh()
		overlay.subtitleLabel.Text = breakSubtitle(id, flags)
		overlay.subtitleLabel.Refresh()
		overlay.progress.SetValue(0)

		postponable, skippable := buttonStates(flags)
		setEnabled(overlay.postpone, postponable)
		setEnabled(overlay.skip, skippable)

		overlay.engine.Stop()
		overlay.exerciseLabel.SetText("")
		if id == model.RestBreak && !flags.Has(model.FlagNoExercises) {
			overlay.engine.Start(context.Background(), exercises.Defaults())
		}

		overlay.prelude.Hide()
		overlay.applyWindowMode()
		overlay.window.Show()
		overlay.window.RequestFocus()
		if alpha, ok := layeredAlpha(overlay.config); ok {
			overlay.applyNativeOpacity(alpha)
		}
	})
}

// SetBreakProgress updates the visible window with value out of total seconds.
func (overlay *Window) SetBreakProgress(value, total int) {
	fyne.Do(func() {
		fraction := progressFraction(value, total)
		switch overlay.mode {
		case modePrelude:
			overlay.preludeProgress.SetValue(fraction)
		case modeBreak:
			overlay.progress.SetValue(fraction)
			overlay.timerLabel.Text = formatDuration(time.Duration(total-value) * time.Second)
			overlay.timerLabel.Refresh()
		}
	})
}

// SetPreludeStage escalates the prelude text.
func (overlay *Window) SetPreludeStage(stage model.PreludeStage) {
	fyne.Do(func() {
		overlay.preludeTitle.Text = preludeText(overlay.current, stage)
		overlay.preludeTitle.Color = stageColor(stage)
		overlay.preludeTitle.Refresh()
		setEnabled(overlay.preludePostpone, stage != model.PreludeAlert)
	})
}

// HideBreakWindow closes whatever is shown.
func (overlay *Window) HideBreakWindow() {
	fyne.Do(func() {
		overlay.mode = modeHidden
		overlay.engine.Stop()
		overlay.prelude.Hide()
		if overlay.config.Fullscreen {
			overlay.window.SetFullScreen(false)
		}
		overlay.window.Hide()
	})
}

// UpdateConfig updates overlay visuals.
func (overlay *Window) UpdateConfig(config Config) {
	fyne.Do(func() {
		overlay.config = config
		overlay.background.FillColor = color.NRGBA{A: config.Opacity}
		canvas.Refresh(overlay.background)
		if overlay.mode == modeBreak {
			overlay.applyWindowMode()
		}
	})
}

func (overlay *Window) request(action func() error) {
	go func() {
		if err := action(); err != nil {
			overlay.logger.Info("break action rejected", zap.Error(err))
		}
	}()
}

func (overlay *Window) postponeCurrent() error {
	if overlay.actions == nil {
		return nil
	}
	return overlay.actions.PostponeBreak(overlay.current)
}

func (overlay *Window) skipCurrent() error {
	if overlay.actions == nil {
		return nil
	}
	return overlay.actions.SkipBreak(overlay.current)
}

func (overlay *Window) applyWindowMode() {
	if overlay.config.Fullscreen {
		overlay.window.SetFullScreen(true)
		return
	}
	overlay.window.SetFullScreen(false)
	overlay.resizeToScreenFraction()
}

func (overlay *Window) resizeToScreenFraction() {
	screenSize := fyne.NewSize(defaultScreenWidth, defaultScreenHeight)
	canvasSize := overlay.window.Canvas().Size()
	// Canvas size stands in for the monitor size when it is clearly screen-like.
	if canvasSize.Width >= 1024 && canvasSize.Height >= 720 {
		screenSize = canvasSize
	}

	minSize := overlay.window.Content().MinSize()
	width := max(screenSize.Width*overlayWidthFraction, minSize.Width)
	height := max(screenSize.Height*overlayHeightFraction, minSize.Height)
	overlay.window.Resize(fyne.NewSize(width, height))
	overlay.window.CenterOnScreen()
}

func undecorated(app fyne.App, title string) fyne.Window {
	var window fyne.Window
	if driver, ok := app.Driver().(splashWindowDriver); ok {
		window = driver.CreateSplashWindow()
	} else {
		window = app.NewWindow(title)
	}
	if app.Icon() != nil {
		window.SetIcon(app.Icon())
	}
	window.SetPadded(false)
	return window
}

func newText(value string, size float32, bold bool, fill color.Color) *canvas.Text {
	text := canvas.NewText(value, fill)
	text.Alignment = fyne.TextAlignCenter
	text.TextStyle = fyne.TextStyle{Bold: bold}
	text.TextSize = size
	return text
}

func setEnabled(button *widget.Button, enabled bool) {
	if enabled {
		button.Enable()
		return
	}
	button.Disable()
}

// AlphaFromOpacity converts a 0..1 opacity into an alpha channel value.
func AlphaFromOpacity(opacity float64) uint8 {
	opacity = min(max(opacity, 0), 1)
	return uint8(opacity * 255)
}

// layeredAlpha reports the alpha for the native break window. Fullscreen
// windows dim through their own background, and a fully transparent window
// would hide the countdown.
func layeredAlpha(config Config) (uint8, bool) {
	if config.Fullscreen || config.Opacity == 0 || config.Opacity == 255 {
		return 0, false
	}
	return config.Opacity, true
}

func buttonStates(flags model.BreakFlags) (postponable, skippable bool) {
	return flags.Has(model.FlagPostponable), flags.Has(model.FlagSkippable)
}

func progressFraction(value, total int) float64 {
	if total <= 0 {
		return 0
	}
	return min(max(float64(value)/float64(total), 0), 1)
}

func breakTitle(id model.BreakID) string {
	switch id {
	case model.MicroBreak:
		return "Micro-break"
	case model.RestBreak:
		return "Rest break"
	default:
		return "Daily limit reached"
	}
}

func breakSubtitle(id model.BreakID, flags model.BreakFlags) string {
	switch {
	case flags.Has(model.FlagNatural):
		return "You were away for a while. Enjoy the rest of your break."
	case flags.Has(model.FlagUserInitiated):
		return "Good idea. Take your time."
	case id == model.DailyLimit:
		return "You have been at the computer long enough today."
	case id == model.MicroBreak:
		return "Relax your hands and look away from the screen."
	default:
		return "Stand up and move around."
	}
}

func preludeText(id model.BreakID, stage model.PreludeStage) string {
	name := breakTitle(id)
	if id == model.DailyLimit {
		name = "Daily limit"
	}
	switch stage {
	case model.PreludeAlert:
		return fmt.Sprintf("%s: you must take a break now", name)
	case model.PreludeWarn:
		return fmt.Sprintf("%s: please stop typing", name)
	default:
		return fmt.Sprintf("%s is due", name)
	}
}

func stageColor(stage model.PreludeStage) color.Color {
	switch stage {
	case model.PreludeAlert:
		return alertColor
	case model.PreludeWarn:
		return accentColor
	default:
		return textColor
	}
}

func formatDuration(value time.Duration) string {
	if value < 0 {
		value = 0
	}
	seconds := int(value.Seconds())
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
