package model

import (
	"fmt"
	"time"
)

// BreakID identifies one of the break kinds.
type BreakID int

const (
	MicroBreak BreakID = iota
	RestBreak
	DailyLimit
)

// BreakCount is the number of break kinds.
const BreakCount = 3

// AllBreaks lists break ids in declaration order.
var AllBreaks = [BreakCount]BreakID{MicroBreak, RestBreak, DailyLimit}

// PriorityOrder lists break ids from highest to lowest priority.
var PriorityOrder = [BreakCount]BreakID{DailyLimit, RestBreak, MicroBreak}

// Name returns the configuration name of the break.
func (id BreakID) Name() string {
	switch id {
	case MicroBreak:
		return "micro_pause"
	case RestBreak:
		return "rest_break"
	case DailyLimit:
		return "daily_limit"
	}
	panic(fmt.Sprintf("model: invalid break id %d", int(id)))
}

// Label returns a human readable break name.
func (id BreakID) Label() string {
	switch id {
	case MicroBreak:
		return "Micro-break"
	case RestBreak:
		return "Rest break"
	case DailyLimit:
		return "Daily limit"
	}
	panic(fmt.Sprintf("model: invalid break id %d", int(id)))
}

func (id BreakID) String() string {
	return id.Name()
}

// Valid reports whether id names a known break.
func (id BreakID) Valid() bool {
	return id >= MicroBreak && id <= DailyLimit
}

// ParseBreakID maps a configuration name back to its id.
func ParseBreakID(name string) (BreakID, bool) {
	for _, id := range AllBreaks {
		if id.Name() == name {
			return id, true
		}
	}
	return 0, false
}

// BreakConfig defines the limits of a single break kind.
type BreakConfig struct {
	Enabled     bool
	Limit       time.Duration
	AutoReset   time.Duration
	Duration    time.Duration
	Postponable bool
	Skippable   bool

	PreludeLead     time.Duration
	PreludeDuration time.Duration
	MaxPreludes     int
	SnoozeTime      time.Duration

	ResetOnTaken bool
	AutoNatural  bool
}

// BreakDuration returns the idle time needed to complete the break.
func (config BreakConfig) BreakDuration() time.Duration {
	if config.Duration > 0 {
		return config.Duration
	}
	return config.AutoReset
}

// MonitorConfig holds activity classification thresholds.
type MonitorConfig struct {
	Noise       time.Duration
	Activity    time.Duration
	Idle        time.Duration
	Sensitivity int
}

// DefaultMonitorConfig returns the default activity thresholds.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Noise:       9 * time.Second,
		Activity:    time.Second,
		Idle:        5 * time.Second,
		Sensitivity: 3,
	}
}

// DefaultBreakConfig returns the built-in configuration for a break.
func DefaultBreakConfig(id BreakID) BreakConfig {
	config := BreakConfig{
		Enabled:         true,
		Postponable:     true,
		Skippable:       true,
		PreludeLead:     30 * time.Second,
		PreludeDuration: 30 * time.Second,
		MaxPreludes:     3,
		ResetOnTaken:    true,
	}
	switch id {
	case MicroBreak:
		config.Limit = 3 * time.Minute
		config.AutoReset = 30 * time.Second
		config.SnoozeTime = 150 * time.Second
	case RestBreak:
		config.Limit = 45 * time.Minute
		config.AutoReset = 10 * time.Minute
		config.SnoozeTime = 180 * time.Second
		config.AutoNatural = true
	case DailyLimit:
		config.Limit = 4 * time.Hour
		config.AutoReset = 0
		config.Duration = 10 * time.Minute
		config.SnoozeTime = 20 * time.Minute
		config.ResetOnTaken = false
	default:
		panic(fmt.Sprintf("model: invalid break id %d", int(id)))
	}
	return config
}

// OperationMode globally gates break monitoring.
type OperationMode int

const (
	ModeNormal OperationMode = iota
	ModeSuspended
	ModeQuiet
)

func (mode OperationMode) String() string {
	switch mode {
	case ModeNormal:
		return "normal"
	case ModeSuspended:
		return "suspended"
	case ModeQuiet:
		return "quiet"
	default:
		return fmt.Sprintf("mode(%d)", int(mode))
	}
}

// ParseOperationMode parses the configuration representation of a mode.
func ParseOperationMode(value string) (OperationMode, bool) {
	switch value {
	case "normal":
		return ModeNormal, true
	case "suspended":
		return ModeSuspended, true
	case "quiet":
		return ModeQuiet, true
	}
	return ModeNormal, false
}

// UsageMode alters how idle time is interpreted.
type UsageMode int

const (
	UsageNormal UsageMode = iota
	UsageReading
)

func (mode UsageMode) String() string {
	if mode == UsageReading {
		return "reading"
	}
	return "normal"
}

// ParseUsageMode parses the configuration representation of a usage mode.
func ParseUsageMode(value string) (UsageMode, bool) {
	switch value {
	case "normal":
		return UsageNormal, true
	case "reading":
		return UsageReading, true
	}
	return UsageNormal, false
}

// BreakFlags describe how a break window must behave.
type BreakFlags uint8

const (
	FlagPostponable BreakFlags = 1 << iota
	FlagSkippable
	FlagUserInitiated
	FlagNatural
	FlagNoExercises
)

// Has reports whether all bits of flag are set.
func (flags BreakFlags) Has(flag BreakFlags) bool {
	return flags&flag == flag
}

// BreakHint explains why a break was started outside the normal schedule.
type BreakHint int

const (
	HintNormal BreakHint = iota
	HintUserInitiated
	HintNatural
)

// PreludeStage escalates the prelude window.
type PreludeStage int

const (
	PreludeInitial PreludeStage = iota
	PreludeWarn
	PreludeAlert
)

func (stage PreludeStage) String() string {
	switch stage {
	case PreludeWarn:
		return "warn"
	case PreludeAlert:
		return "alert"
	default:
		return "initial"
	}
}
