package preferences

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"respite/internal/config"
	"respite/internal/core/model"
)

// ErrInvalidSetting is returned by Validate for values the scheduler cannot use.
var ErrInvalidSetting = errors.New("invalid setting")

const (
	minOpacity = 0.7
	maxOpacity = 0.95
)

// BreakSettings are the editable values of one break.
type BreakSettings struct {
	Enabled     bool
	Limit       time.Duration
	Duration    time.Duration
	Postponable bool
	Skippable   bool
}

// Settings defines editable user preferences.
type Settings struct {
	Breaks         [model.BreakCount]BreakSettings
	OverlayOpacity float64
	Fullscreen     bool
	Autostart      bool
}

// Load reads the editable values from the configurator.
func Load(configurator *config.Configurator) Settings {
	var settings Settings
	for _, id := range model.AllBreaks {
		breakConfig := configurator.BreakConfig(id)
		settings.Breaks[id] = BreakSettings{
			Enabled:     breakConfig.Enabled,
			Limit:       breakConfig.Limit,
			Duration:    breakConfig.BreakDuration(),
			Postponable: breakConfig.Postponable,
			Skippable:   breakConfig.Skippable,
		}
	}
	settings.OverlayOpacity = configurator.Float(config.KeyOverlayOpacity)
	settings.Fullscreen = configurator.Bool(config.KeyFullscreen)
	settings.Autostart = configurator.Bool(config.KeyAutostart)
	return settings
}

// Validate checks every value.
func (settings Settings) Validate() error {
	var problems []error
	for _, id := range model.AllBreaks {
		values := settings.Breaks[id]
		if values.Limit <= 0 {
			problems = append(problems, fmt.Errorf("%w: %s interval must be positive", ErrInvalidSetting, id.Label()))
		}
		if values.Duration <= 0 {
			problems = append(problems, fmt.Errorf("%w: %s duration must be positive", ErrInvalidSetting, id.Label()))
		}
		if values.Limit > 0 && values.Duration >= values.Limit {
			problems = append(problems, fmt.Errorf("%w: %s duration must be shorter than its interval", ErrInvalidSetting, id.Label()))
		}
	}
	if settings.OverlayOpacity < minOpacity || settings.OverlayOpacity > maxOpacity {
		problems = append(problems, fmt.Errorf("%w: overlay opacity must be between %.2f and %.2f", ErrInvalidSetting, minOpacity, maxOpacity))
	}
	return errors.Join(problems...)
}

// Apply validates settings and stores them. Unchanged keys are not rewritten.
func (settings Settings) Apply(configurator *config.Configurator) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	var errs []error
	for _, id := range model.AllBreaks {
		values := settings.Breaks[id]
		breakConfig := configurator.BreakConfig(id)
		breakConfig.Enabled = values.Enabled
		breakConfig.Limit = values.Limit
		breakConfig.Postponable = values.Postponable
		breakConfig.Skippable = values.Skippable
		if values.Duration != breakConfig.BreakDuration() {
			breakConfig.Duration = values.Duration
		}
		errs = append(errs, configurator.SetBreakConfig(id, breakConfig))
	}
	errs = append(errs,
		configurator.SetFloat(config.KeyOverlayOpacity, settings.OverlayOpacity),
		configurator.SetBool(config.KeyFullscreen, settings.Fullscreen),
		configurator.SetBool(config.KeyAutostart, settings.Autostart),
	)
	return errors.Join(errs...)
}

// parseDuration accepts Go durations such as 45m or 1h30m. A bare number is
// read in unit.
func parseDuration(value string, unit time.Duration) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if number, err := strconv.Atoi(value); err == nil {
		if number <= 0 {
			return 0, false
		}
		return time.Duration(number) * unit, true
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return 0, false
	}
	return parsed.Round(time.Second), true
}

func formatDuration(value time.Duration) string {
	if value%time.Minute == 0 {
		return strconv.Itoa(int(value / time.Minute))
	}
	return value.String()
}
