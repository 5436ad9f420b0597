package config

import (
	"strconv"
	"time"

	"respite/internal/core/model"
)

// Global keys.
const (
	KeyOperationMode = "general/operation_mode"
	KeyUsageMode     = "general/usage_mode"

	KeyMonitorNoise       = "monitor/noise"
	KeyMonitorActivity    = "monitor/activity"
	KeyMonitorIdle        = "monitor/idle"
	KeyMonitorSensitivity = "monitor/sensitivity"

	KeyAutostart      = "gui/autostart"
	KeyOverlayOpacity = "gui/overlay_opacity"
	KeyFullscreen     = "gui/fullscreen"
)

// Timer settings, stored under timers/<break>/.
const (
	TimerLimit     = "limit"
	TimerAutoReset = "auto_reset"
	TimerSnooze    = "snooze"
)

// Break settings, stored under breaks/<break>/.
const (
	BreakEnabled         = "enabled"
	BreakDuration        = "duration"
	BreakPostponable     = "postponable"
	BreakSkippable       = "skippable"
	BreakMaxPreludes     = "max_preludes"
	BreakPreludeLead     = "prelude_lead"
	BreakPreludeDuration = "prelude_duration"
	BreakResetOnTaken    = "reset_on_taken"
	BreakAutoNatural     = "auto_natural"
)

// TimerKey returns the key of a timer setting of a break.
func TimerKey(id model.BreakID, name string) string {
	return "timers/" + id.Name() + "/" + name
}

// BreakKey returns the key of a break setting.
func BreakKey(id model.BreakID, name string) string {
	return "breaks/" + id.Name() + "/" + name
}

// TimerPrefix and BreakPrefix select every setting of one break for listeners.
func TimerPrefix(id model.BreakID) string { return "timers/" + id.Name() + "/" }
func BreakPrefix(id model.BreakID) string { return "breaks/" + id.Name() + "/" }

// Defaults returns the built-in value of every recognized key. Durations are
// stored in seconds, except monitor thresholds which are in milliseconds.
func Defaults() map[string]string {
	defaults := map[string]string{
		KeyOperationMode:  model.ModeNormal.String(),
		KeyUsageMode:      model.UsageNormal.String(),
		KeyAutostart:      "false",
		KeyOverlayOpacity: "0.85",
		KeyFullscreen:     "true",
	}

	monitor := model.DefaultMonitorConfig()
	defaults[KeyMonitorNoise] = millis(monitor.Noise)
	defaults[KeyMonitorActivity] = millis(monitor.Activity)
	defaults[KeyMonitorIdle] = millis(monitor.Idle)
	defaults[KeyMonitorSensitivity] = strconv.Itoa(monitor.Sensitivity)

	for _, id := range model.AllBreaks {
		config := model.DefaultBreakConfig(id)
		defaults[TimerKey(id, TimerLimit)] = secs(config.Limit)
		defaults[TimerKey(id, TimerAutoReset)] = secs(config.AutoReset)
		defaults[TimerKey(id, TimerSnooze)] = secs(config.SnoozeTime)
		defaults[BreakKey(id, BreakEnabled)] = strconv.FormatBool(config.Enabled)
		defaults[BreakKey(id, BreakDuration)] = secs(config.Duration)
		defaults[BreakKey(id, BreakPostponable)] = strconv.FormatBool(config.Postponable)
		defaults[BreakKey(id, BreakSkippable)] = strconv.FormatBool(config.Skippable)
		defaults[BreakKey(id, BreakMaxPreludes)] = strconv.Itoa(config.MaxPreludes)
		defaults[BreakKey(id, BreakPreludeLead)] = secs(config.PreludeLead)
		defaults[BreakKey(id, BreakPreludeDuration)] = secs(config.PreludeDuration)
		defaults[BreakKey(id, BreakResetOnTaken)] = strconv.FormatBool(config.ResetOnTaken)
		defaults[BreakKey(id, BreakAutoNatural)] = strconv.FormatBool(config.AutoNatural)
	}
	return defaults
}

func secs(duration time.Duration) string {
	return strconv.FormatInt(int64(duration/time.Second), 10)
}

func millis(duration time.Duration) string {
	return strconv.FormatInt(duration.Milliseconds(), 10)
}
