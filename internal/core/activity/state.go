package activity

import (
	"context"
	"errors"
	"time"
)

// ErrMonitorUnavailable indicates the platform input hook could not be installed.
var ErrMonitorUnavailable = errors.New("activity monitor unavailable")

// State classifies recent user input.
type State int

const (
	StateUnknown State = iota
	StateSuspended
	StateIdle
	StateNoise
	StateActive
)

func (state State) String() string {
	switch state {
	case StateSuspended:
		return "suspended"
	case StateIdle:
		return "idle"
	case StateNoise:
		return "noise"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// EventKind is the type of a raw input event.
type EventKind int

const (
	EventKeyPress EventKind = iota
	EventKeyRelease
	EventMouseMove
	EventButtonPress
	EventButtonRelease
	EventScroll
	// EventAction is input observed without detail, as reported by polling sources.
	EventAction
)

// Event is a raw input event delivered by an InputSource.
type Event struct {
	Kind EventKind
	X    int
	Y    int
	At   time.Time
}

// Sink receives input events.
type Sink interface {
	NotifyEvent(event Event)
}

// InputSource delivers input events from the operating system.
// Init installs the hook; Run feeds the sink until ctx is done.
type InputSource interface {
	Init() error
	Run(ctx context.Context, sink Sink)
}

// Listener is told when the user becomes active.
// Returning false detaches the listener.
type Listener interface {
	ActionNotify() bool
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func() bool

// ActionNotify calls fn.
func (fn ListenerFunc) ActionNotify() bool {
	return fn()
}

// Counters accumulate input statistics between reads.
type Counters struct {
	Keystrokes    int64
	MouseClicks   int64
	MouseMovement int64
}
