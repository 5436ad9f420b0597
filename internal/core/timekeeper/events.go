package timekeeper

import (
	"time"

	"respite/internal/core/activity"
	"respite/internal/core/breaks"
	"respite/internal/core/model"
)

// EventType defines the type of TimeKeeper event.
type EventType string

const (
	EventStateChange    EventType = "state_change"
	EventProgress       EventType = "progress"
	EventPrelude        EventType = "prelude"
	EventBreakStarted   EventType = "break_started"
	EventBreakTaken     EventType = "break_taken"
	EventBreakSkipped   EventType = "break_skipped"
	EventBreakPostponed EventType = "break_postponed"
	EventBreakForced    EventType = "break_forced"
	EventAutoReset      EventType = "auto_reset"
	EventModeChanged    EventType = "mode_changed"
	EventDayRollover    EventType = "day_rollover"
	EventMonitorError   EventType = "monitor_error"
)

// Event represents a TimeKeeper update for observers.
type Event struct {
	Type     EventType
	Break    model.BreakID
	From     breaks.Stage
	Stage    breaks.Stage
	Mode     model.OperationMode
	Flags    model.BreakFlags
	Natural  bool
	Elapsed  time.Duration
	Limit    time.Duration
	Progress float64
	Message  string
	At       time.Time
}

// BreakStatus is the externally visible state of one break.
type BreakStatus struct {
	Break         model.BreakID
	Enabled       bool
	Stage         breaks.Stage
	ElapsedActive time.Duration
	ElapsedIdle   time.Duration
	Limit         time.Duration
	Remaining     time.Duration
	PreludeCount  int
	Overdue       bool
}

// Status is a point in time view of the scheduler.
type Status struct {
	Mode     model.OperationMode
	Regular  model.OperationMode
	Usage    model.UsageMode
	Activity activity.State
	Visible  *model.BreakID
	Breaks   [model.BreakCount]BreakStatus
	At       time.Time
}

func eventTypeFor(outcome breaks.Outcome) EventType {
	switch outcome {
	case breaks.OutcomePrelude:
		return EventPrelude
	case breaks.OutcomeStarted:
		return EventBreakStarted
	case breaks.OutcomeTaken:
		return EventBreakTaken
	case breaks.OutcomeSkipped:
		return EventBreakSkipped
	case breaks.OutcomePostponed:
		return EventBreakPostponed
	case breaks.OutcomeForced:
		return EventBreakForced
	case breaks.OutcomeAutoReset:
		return EventAutoReset
	default:
		return EventStateChange
	}
}
