package activity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"respite/internal/core/model"
)

// Options configures a Monitor.
type Options struct {
	Source InputSource
	Logger *zap.Logger
	Now    func() time.Time
}

// Monitor turns raw input events into an activity state.
type Monitor struct {
	mu       sync.Mutex
	config   model.MonitorConfig
	source   InputSource
	logger   *zap.Logger
	now      func() time.Time
	state    State
	failure  error
	listener Listener
	// listenerGen changes on every SetListener so a detaching listener
	// never clears its replacement.
	listenerGen uint64

	firstAction time.Time
	lastAction  time.Time
	lastX       int
	lastY       int
	hasPosition bool
	counters    Counters

	started bool
	parent  context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor creates a monitor in the idle state.
func NewMonitor(config model.MonitorConfig, options Options) *Monitor {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Monitor{
		config: config,
		source: options.Source,
		logger: options.Logger.Named("activity"),
		now:    options.Now,
		state:  StateIdle,
	}
}

// Start installs the input source and begins delivering events.
// A failing source leaves the monitor in StateUnknown and returns an error
// wrapping ErrMonitorUnavailable.
func (monitor *Monitor) Start(ctx context.Context) error {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()

	if monitor.started {
		return nil
	}
	if monitor.source != nil {
		if err := monitor.source.Init(); err != nil {
			if !errors.Is(err, ErrMonitorUnavailable) {
				err = fmt.Errorf("%w: %w", ErrMonitorUnavailable, err)
			}
			monitor.failure = err
			monitor.state = StateUnknown
			monitor.logger.Error("input source failed to initialize", zap.Error(err))
			return err
		}
	}
	monitor.started = true
	monitor.parent = ctx
	monitor.failure = nil
	if monitor.state != StateSuspended {
		monitor.state = StateIdle
		monitor.runSourceLocked(ctx)
	}
	return nil
}

// Failure returns the initialization error, if any.
func (monitor *Monitor) Failure() error {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	return monitor.failure
}

// Terminate stops the input source and waits for it to exit.
func (monitor *Monitor) Terminate() {
	monitor.mu.Lock()
	monitor.started = false
	done := monitor.stopSourceLocked()
	monitor.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Suspend masks all input until Resume. The input source is stopped before
// Suspend returns.
func (monitor *Monitor) Suspend() {
	monitor.mu.Lock()
	monitor.state = StateSuspended
	done := monitor.stopSourceLocked()
	monitor.mu.Unlock()

	if done != nil {
		<-done
	}
	monitor.logger.Debug("suspended")
}

// Resume lifts a previous Suspend.
func (monitor *Monitor) Resume() {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	if monitor.state != StateSuspended {
		return
	}
	if monitor.failure != nil {
		monitor.state = StateUnknown
		return
	}
	monitor.state = StateIdle
	if monitor.started {
		monitor.runSourceLocked(monitor.parent)
	}
	monitor.logger.Debug("resumed")
}

// ForceIdle moves to idle without waiting for the idle threshold.
func (monitor *Monitor) ForceIdle() {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	if monitor.state == StateSuspended || monitor.state == StateUnknown {
		return
	}
	monitor.state = StateIdle
}

// SetListener replaces the activity listener.
func (monitor *Monitor) SetListener(listener Listener) {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	monitor.listener = listener
	monitor.listenerGen++
}

// SetConfig replaces the classification thresholds.
func (monitor *Monitor) SetConfig(config model.MonitorConfig) {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	monitor.config = config
}

// CurrentState returns the activity state, decaying to idle when input stopped.
func (monitor *Monitor) CurrentState() State {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	monitor.decayLocked(monitor.now())
	return monitor.state
}

// LastAction returns the time of the last qualifying event.
func (monitor *Monitor) LastAction() time.Time {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	return monitor.lastAction
}

// TakeCounters returns and clears the input counters.
func (monitor *Monitor) TakeCounters() Counters {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()
	counters := monitor.counters
	monitor.counters = Counters{}
	return counters
}

// NotifyEvent feeds a raw input event into the classifier.
func (monitor *Monitor) NotifyEvent(event Event) {
	monitor.mu.Lock()
	if monitor.state == StateSuspended || monitor.state == StateUnknown {
		monitor.mu.Unlock()
		return
	}
	at := event.At
	if at.IsZero() {
		at = monitor.now()
	}
	if !monitor.countLocked(event) {
		monitor.mu.Unlock()
		return
	}
	fire := monitor.actionLocked(at)
	listener, gen := monitor.listener, monitor.listenerGen
	monitor.mu.Unlock()

	if fire && listener != nil && !listener.ActionNotify() {
		monitor.mu.Lock()
		if monitor.listenerGen == gen {
			monitor.listener = nil
		}
		monitor.mu.Unlock()
	}
}

// countLocked updates counters and reports whether the event qualifies as activity.
func (monitor *Monitor) countLocked(event Event) bool {
	switch event.Kind {
	case EventMouseMove:
		if !monitor.hasPosition {
			monitor.lastX, monitor.lastY = event.X, event.Y
			monitor.hasPosition = true
			return true
		}
		distance := max(abs(event.X-monitor.lastX), abs(event.Y-monitor.lastY))
		if distance < monitor.config.Sensitivity {
			return false
		}
		monitor.counters.MouseMovement += int64(distance)
		monitor.lastX, monitor.lastY = event.X, event.Y
	case EventKeyPress:
		monitor.counters.Keystrokes++
	case EventButtonPress:
		monitor.counters.MouseClicks++
	}
	return true
}

// actionLocked advances the state machine and reports an edge into StateActive.
func (monitor *Monitor) actionLocked(at time.Time) bool {
	if at.Before(monitor.lastAction) {
		at = monitor.lastAction
	}
	monitor.decayLocked(at)

	switch monitor.state {
	case StateIdle:
		monitor.firstAction = at
		monitor.lastAction = at
		if monitor.config.Activity <= 0 {
			monitor.state = StateActive
			return true
		}
		monitor.state = StateNoise
	case StateNoise:
		monitor.lastAction = at
		if at.Sub(monitor.firstAction) >= monitor.config.Activity {
			monitor.state = StateActive
			return true
		}
	case StateActive:
		monitor.lastAction = at
	}
	return false
}

func (monitor *Monitor) decayLocked(now time.Time) {
	switch monitor.state {
	case StateActive:
		if now.Sub(monitor.lastAction) >= monitor.config.Idle {
			monitor.state = StateIdle
		}
	case StateNoise:
		if now.Sub(monitor.lastAction) >= monitor.config.Noise {
			monitor.state = StateIdle
		}
	}
}

func (monitor *Monitor) runSourceLocked(parent context.Context) {
	if monitor.source == nil || monitor.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	monitor.cancel = cancel
	monitor.done = done

	go func() {
		defer close(done)
		monitor.source.Run(ctx, monitor)
	}()
}

func (monitor *Monitor) stopSourceLocked() <-chan struct{} {
	if monitor.cancel == nil {
		return nil
	}
	monitor.cancel()
	done := monitor.done
	monitor.cancel = nil
	monitor.done = nil
	return done
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
