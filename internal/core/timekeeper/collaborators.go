package timekeeper

import (
	"time"

	"respite/internal/core/activity"
	"respite/internal/core/model"
)

// Presenter shows prelude and break windows. Calls are made outside the
// TimeKeeper lock, so a presenter may call back into the TimeKeeper.
type Presenter interface {
	CreatePreludeWindow(id model.BreakID)
	CreateBreakWindow(id model.BreakID, flags model.BreakFlags)
	SetBreakProgress(value, max int)
	SetPreludeStage(stage model.PreludeStage)
	HideBreakWindow()
}

// ActivityMonitor is the part of activity.Monitor the TimeKeeper drives.
type ActivityMonitor interface {
	CurrentState() activity.State
	ForceIdle()
	Suspend()
	Resume()
}

// Settings supplies break configuration and persists the user modes.
type Settings interface {
	BreakConfig(id model.BreakID) model.BreakConfig
	OperationMode() model.OperationMode
	SetOperationMode(mode model.OperationMode) error
	UsageMode() model.UsageMode
	SetUsageMode(mode model.UsageMode) error
}

// Observer receives heartbeat measurements.
type Observer interface {
	ObserveHeartbeat(duration time.Duration, state activity.State, mode model.OperationMode)
	ObserveDroppedHeartbeat()
}

type nopPresenter struct{}

func (nopPresenter) CreatePreludeWindow(model.BreakID)                 {}
func (nopPresenter) CreateBreakWindow(model.BreakID, model.BreakFlags) {}
func (nopPresenter) SetBreakProgress(int, int)                         {}
func (nopPresenter) SetPreludeStage(model.PreludeStage)                {}
func (nopPresenter) HideBreakWindow()                                  {}

type nopObserver struct{}

func (nopObserver) ObserveHeartbeat(time.Duration, activity.State, model.OperationMode) {}
func (nopObserver) ObserveDroppedHeartbeat()                                            {}

// defaultSettings serves built-in defaults and keeps modes in memory.
type defaultSettings struct {
	mode  model.OperationMode
	usage model.UsageMode
}

func (settings *defaultSettings) BreakConfig(id model.BreakID) model.BreakConfig {
	return model.DefaultBreakConfig(id)
}

func (settings *defaultSettings) OperationMode() model.OperationMode {
	return settings.mode
}

func (settings *defaultSettings) SetOperationMode(mode model.OperationMode) error {
	settings.mode = mode
	return nil
}

func (settings *defaultSettings) UsageMode() model.UsageMode {
	return settings.usage
}

func (settings *defaultSettings) SetUsageMode(mode model.UsageMode) error {
	settings.usage = mode
	return nil
}
