package timekeeper

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"respite/internal/core/activity"
	"respite/internal/core/breaks"
	"respite/internal/core/model"
	"respite/internal/core/opmode"
)

var (
	// ErrSuspended is returned for break requests while monitoring is suspended.
	ErrSuspended = errors.New("break monitoring is suspended")
	// ErrUnknownBreak is returned for break ids outside the known set.
	ErrUnknownBreak = errors.New("unknown break")
)

// Override names used by the TimeKeeper itself.
const (
	OverrideScreensaver    = "screensaver"
	OverrideMonitorFailure = "monitor-failure"
)

// Config contains runtime options for TimeKeeper.
type Config struct {
	TickInterval time.Duration
	// MaxGap is the longest heartbeat interval that still counts as activity.
	// Longer gaps, such as a suspended laptop, count as idle time.
	MaxGap time.Duration
	// DailyResetAt is the offset from local midnight at which the daily
	// limit starts over.
	DailyResetAt time.Duration
	Logger       *zap.Logger
	Observer     Observer
	Now          func() time.Time
}

// TimeKeeper converts activity into break obligations on every heartbeat.
type TimeKeeper struct {
	mu        sync.Mutex
	options   Config
	logger    *zap.Logger
	observer  Observer
	now       func() time.Time
	monitor   ActivityMonitor
	settings  Settings
	presenter Presenter

	machines  [model.BreakCount]*breaks.Machine
	modes     *opmode.Stack
	effective model.OperationMode
	usage     model.UsageMode
	activity  activity.State

	lastHeartbeat time.Time
	day           time.Time
	preludeStage  model.PreludeStage
	effects       []func()

	events  []chan Event
	stopCh  chan struct{}
	done    chan struct{}
	running bool

	beating   atomic.Bool
	reentered rate.Sometimes
}

// New creates a TimeKeeper. A nil monitor behaves as permanently idle and nil
// settings serve the built-in defaults.
func New(monitor ActivityMonitor, settings Settings, options Config) *TimeKeeper {
	if options.TickInterval <= 0 {
		options.TickInterval = time.Second
	}
	if options.MaxGap <= 0 {
		options.MaxGap = 10 * options.TickInterval
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Observer == nil {
		options.Observer = nopObserver{}
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if settings == nil {
		settings = &defaultSettings{}
	}

	keeper := &TimeKeeper{
		options:   options,
		logger:    options.Logger.Named("timekeeper"),
		observer:  options.Observer,
		now:       options.Now,
		monitor:   monitor,
		settings:  settings,
		presenter: nopPresenter{},
		modes:     opmode.NewStack(settings.OperationMode()),
		usage:     settings.UsageMode(),
		activity:  activity.StateIdle,
		reentered: rate.Sometimes{Interval: time.Minute},
	}
	keeper.effective = keeper.modes.Effective()
	for _, id := range model.AllBreaks {
		keeper.machines[id] = breaks.NewMachine(id, settings.BreakConfig(id), options.Logger)
	}
	keeper.day = keeper.dayStart(keeper.now())
	return keeper
}

// SetPresenter installs the window presenter.
func (keeper *TimeKeeper) SetPresenter(presenter Presenter) {
	keeper.mu.Lock()
	defer keeper.mu.Unlock()
	if presenter == nil {
		presenter = nopPresenter{}
	}
	keeper.presenter = presenter
}

// Subscribe registers a new observer channel.
func (keeper *TimeKeeper) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	keeper.mu.Lock()
	keeper.events = append(keeper.events, ch)
	keeper.mu.Unlock()
	return ch
}

// Start launches the heartbeat loop.
func (keeper *TimeKeeper) Start() {
	keeper.mu.Lock()
	if keeper.running {
		keeper.mu.Unlock()
		return
	}
	keeper.running = true
	stopCh, done := make(chan struct{}), make(chan struct{})
	keeper.stopCh, keeper.done = stopCh, done
	keeper.lastHeartbeat = time.Time{}
	mode := keeper.effective
	keeper.emitLocked(Event{Type: EventModeChanged, Mode: mode, At: keeper.now()})
	keeper.mu.Unlock()

	if mode != model.ModeNormal {
		keeper.logger.Warn("break monitoring starts in a reduced operation mode", zap.Stringer("mode", mode))
	}
	go keeper.run(stopCh, done)
}

// Stop terminates the heartbeat loop, waits for it to exit and closes observers.
func (keeper *TimeKeeper) Stop() {
	keeper.mu.Lock()
	if !keeper.running {
		keeper.mu.Unlock()
		return
	}
	close(keeper.stopCh)
	keeper.running = false
	done := keeper.done
	keeper.mu.Unlock()

	<-done

	keeper.mu.Lock()
	events := keeper.events
	keeper.events = nil
	keeper.mu.Unlock()
	for _, ch := range events {
		close(ch)
	}
}

func (keeper *TimeKeeper) run(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(keeper.options.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			keeper.Heartbeat()
		}
	}
}

// Heartbeat advances every break by the time passed since the previous
// heartbeat. Overlapping calls are dropped and panics are logged.
func (keeper *TimeKeeper) Heartbeat() {
	if !keeper.beating.CompareAndSwap(false, true) {
		keeper.observer.ObserveDroppedHeartbeat()
		keeper.reentered.Do(func() {
			keeper.logger.Warn("heartbeat re-entered, dropping")
		})
		return
	}
	defer keeper.beating.Store(false)
	defer func() {
		if recovered := recover(); recovered != nil {
			keeper.logger.Error("heartbeat failed", zap.Any("panic", recovered), zap.Stack("stack"))
		}
	}()

	started := time.Now()
	var state activity.State
	var mode model.OperationMode
	keeper.locked(func() {
		keeper.heartbeatLocked()
		state, mode = keeper.activity, keeper.effective
	})
	keeper.observer.ObserveHeartbeat(time.Since(started), state, mode)
}

func (keeper *TimeKeeper) heartbeatLocked() {
	now := keeper.now()
	delta := keeper.options.TickInterval
	if !keeper.lastHeartbeat.IsZero() {
		delta = max(now.Sub(keeper.lastHeartbeat), 0)
	}
	keeper.lastHeartbeat = now
	gap := delta > keeper.options.MaxGap

	keeper.checkDayLocked(now)

	state := activity.StateIdle
	if keeper.monitor != nil {
		state = keeper.monitor.CurrentState()
	}
	keeper.activity = state

	mode := keeper.effective
	frozen := mode == model.ModeSuspended || state == activity.StateSuspended
	active := state == activity.StateActive && !gap
	start := mode == model.ModeNormal

	// A break that closed its window during this heartbeat holds the lower
	// ones back until the next heartbeat.
	resolved := false
	visible := keeper.visibleLocked()
	for _, id := range model.PriorityOrder {
		machine := keeper.machines[id]
		machineActive := active
		if keeper.usage == model.UsageReading && !machine.Visible() && !gap {
			machineActive = true
		}
		grant := start && !resolved && (visible == nil || higherPriority(id, visible.ID()))
		transition, ok := machine.Advance(breaks.Tick{
			Now:    now,
			Delta:  delta,
			Active: machineActive,
			Frozen: frozen,
			Start:  grant,
		})
		if !ok {
			continue
		}
		if machine.Visible() && visible != nil && visible != machine {
			keeper.logger.Debug("break preempted",
				zap.Stringer("break", visible.ID()),
				zap.Stringer("by", id))
			if interrupted, ok := visible.Interrupt(); ok {
				keeper.handleTransitionLocked(interrupted, now)
			}
		}
		keeper.handleTransitionLocked(transition, now)
		if wasVisible(transition.From) && !machine.Visible() {
			resolved = true
		}
		visible = keeper.visibleLocked()
	}

	keeper.updateWindowLocked(now)
	keeper.emitProgressLocked(now)
}

// handleTransitionLocked reports a machine transition to observers and the presenter.
func (keeper *TimeKeeper) handleTransitionLocked(transition breaks.Transition, now time.Time) {
	machine := keeper.machines[transition.Break]

	switch transition.To {
	case breaks.StagePrelude:
		keeper.preludeStage = model.PreludeInitial
		keeper.present(func(presenter Presenter) {
			presenter.CreatePreludeWindow(transition.Break)
			presenter.SetPreludeStage(model.PreludeInitial)
		})
	case breaks.StageTaking:
		flags := transition.Flags
		keeper.present(func(presenter Presenter) {
			presenter.CreateBreakWindow(transition.Break, flags)
		})
	default:
		if wasVisible(transition.From) {
			keeper.present(Presenter.HideBreakWindow)
		}
	}

	if transition.Break == model.RestBreak &&
		(transition.Outcome == breaks.OutcomeTaken || transition.Outcome == breaks.OutcomeSkipped) {
		micro := keeper.machines[model.MicroBreak]
		if micro.Visible() {
			keeper.present(Presenter.HideBreakWindow)
		}
		micro.Reset()
	}

	keeper.logger.Debug("break transition",
		zap.Stringer("break", transition.Break),
		zap.Stringer("from", transition.From),
		zap.Stringer("to", transition.To),
		zap.Stringer("outcome", transition.Outcome))

	keeper.emitLocked(Event{
		Type:    eventTypeFor(transition.Outcome),
		Break:   transition.Break,
		From:    transition.From,
		Stage:   transition.To,
		Mode:    keeper.effective,
		Flags:   transition.Flags,
		Natural: transition.Natural,
		Elapsed: machine.ElapsedActive(),
		Limit:   machine.Config().Limit,
		Message: transition.Outcome.String(),
		At:      now,
	})
}

func (keeper *TimeKeeper) updateWindowLocked(now time.Time) {
	visible := keeper.visibleLocked()
	if visible == nil {
		return
	}
	value, total := visible.Progress(now)
	keeper.present(func(presenter Presenter) {
		presenter.SetBreakProgress(int(value/time.Second), int(total/time.Second))
	})
	if visible.Stage() != breaks.StagePrelude {
		return
	}
	if stage := visible.PreludeStage(now); stage != keeper.preludeStage {
		keeper.preludeStage = stage
		keeper.present(func(presenter Presenter) {
			presenter.SetPreludeStage(stage)
		})
	}
}

// emitProgressLocked publishes the break closest to its limit, or the visible one.
func (keeper *TimeKeeper) emitProgressLocked(now time.Time) {
	target := keeper.visibleLocked()
	if target == nil {
		for _, machine := range keeper.machines {
			if !machine.Config().Enabled {
				continue
			}
			if target == nil || machine.Remaining() < target.Remaining() {
				target = machine
			}
		}
	}
	if target == nil {
		return
	}
	value, total := target.Progress(now)
	progress := 1.0
	if total > 0 {
		progress = float64(value) / float64(total)
	}
	keeper.emitLocked(Event{
		Type:     EventProgress,
		Break:    target.ID(),
		Stage:    target.Stage(),
		Mode:     keeper.effective,
		Elapsed:  target.ElapsedActive(),
		Limit:    target.Config().Limit,
		Progress: progress,
		At:       now,
	})
}

func (keeper *TimeKeeper) checkDayLocked(now time.Time) {
	day := keeper.dayStart(now)
	if !day.After(keeper.day) {
		return
	}
	keeper.day = day
	daily := keeper.machines[model.DailyLimit]
	if daily.Visible() {
		keeper.present(Presenter.HideBreakWindow)
	}
	daily.Reset()
	keeper.logger.Info("daily limit reset", zap.Time("day", day))
	keeper.emitLocked(Event{Type: EventDayRollover, Break: model.DailyLimit, Mode: keeper.effective, At: now})
}

func (keeper *TimeKeeper) dayStart(now time.Time) time.Time {
	year, month, date := now.Date()
	start := time.Date(year, month, date, 0, 0, 0, 0, now.Location()).Add(keeper.options.DailyResetAt)
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// PostponeBreak postpones the visible break.
func (keeper *TimeKeeper) PostponeBreak(id model.BreakID) error {
	return keeper.action(id, func(machine *breaks.Machine, now time.Time) (breaks.Transition, error) {
		return machine.Postpone(now)
	})
}

// SkipBreak skips the break, resetting its active time.
func (keeper *TimeKeeper) SkipBreak(id model.BreakID) error {
	return keeper.action(id, func(machine *breaks.Machine, _ time.Time) (breaks.Transition, error) {
		return machine.Skip()
	})
}

// ForceBreak starts a break right away, hiding any other visible break.
func (keeper *TimeKeeper) ForceBreak(id model.BreakID, hint model.BreakHint) error {
	return keeper.action(id, func(machine *breaks.Machine, now time.Time) (breaks.Transition, error) {
		if keeper.effective == model.ModeSuspended {
			return breaks.Transition{}, ErrSuspended
		}
		if visible := keeper.visibleLocked(); visible != nil && visible != machine {
			if transition, ok := visible.Interrupt(); ok {
				keeper.handleTransitionLocked(transition, now)
			}
		}
		transition, ok := machine.Force(hint)
		if !ok {
			return breaks.Transition{}, nil
		}
		return transition, nil
	})
}

func (keeper *TimeKeeper) action(id model.BreakID, fn func(*breaks.Machine, time.Time) (breaks.Transition, error)) error {
	if !id.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownBreak, int(id))
	}
	var err error
	keeper.locked(func() {
		now := keeper.now()
		var transition breaks.Transition
		transition, err = fn(keeper.machines[id], now)
		if err != nil || transition.Outcome == breaks.OutcomeNone {
			return
		}
		keeper.handleTransitionLocked(transition, now)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", id.Name(), err)
	}
	return nil
}

// SetOperationMode changes and persists the regular operation mode.
func (keeper *TimeKeeper) SetOperationMode(mode model.OperationMode) error {
	if err := keeper.settings.SetOperationMode(mode); err != nil {
		return fmt.Errorf("persist operation mode: %w", err)
	}
	keeper.locked(func() {
		keeper.applyModeLocked(keeper.modes.SetRegular(mode))
	})
	return nil
}

// SetOperationModeOverride applies a named temporary mode on top of the regular one.
func (keeper *TimeKeeper) SetOperationModeOverride(name string, mode model.OperationMode) {
	keeper.locked(func() {
		keeper.applyModeLocked(keeper.modes.Set(name, mode))
	})
}

// RemoveOperationModeOverride drops a named override.
func (keeper *TimeKeeper) RemoveOperationModeOverride(name string) {
	keeper.locked(func() {
		keeper.applyModeLocked(keeper.modes.Remove(name))
	})
}

// OperationMode returns the effective operation mode.
func (keeper *TimeKeeper) OperationMode() model.OperationMode {
	keeper.mu.Lock()
	defer keeper.mu.Unlock()
	return keeper.effective
}

// RegularOperationMode returns the user configured operation mode.
func (keeper *TimeKeeper) RegularOperationMode() model.OperationMode {
	return keeper.modes.Regular()
}

// SetUsageMode switches between normal and reading usage.
func (keeper *TimeKeeper) SetUsageMode(mode model.UsageMode) error {
	if err := keeper.settings.SetUsageMode(mode); err != nil {
		return fmt.Errorf("persist usage mode: %w", err)
	}
	keeper.mu.Lock()
	keeper.usage = mode
	keeper.mu.Unlock()
	return nil
}

// UsageMode returns the current usage mode.
func (keeper *TimeKeeper) UsageMode() model.UsageMode {
	keeper.mu.Lock()
	defer keeper.mu.Unlock()
	return keeper.usage
}

func (keeper *TimeKeeper) applyModeLocked(mode model.OperationMode) {
	previous := keeper.effective
	if mode == previous {
		return
	}
	keeper.effective = mode
	now := keeper.now()

	if mode != model.ModeNormal {
		if visible := keeper.visibleLocked(); visible != nil {
			if transition, ok := visible.Interrupt(); ok {
				keeper.handleTransitionLocked(transition, now)
			}
		}
	}
	if monitor := keeper.monitor; monitor != nil {
		switch {
		case mode == model.ModeSuspended:
			keeper.effects = append(keeper.effects, monitor.Suspend)
		case previous == model.ModeSuspended:
			keeper.effects = append(keeper.effects, monitor.Resume)
		}
	}

	keeper.logger.Info("operation mode changed",
		zap.Stringer("from", previous),
		zap.Stringer("to", mode))
	keeper.emitLocked(Event{Type: EventModeChanged, Mode: mode, At: now})
}

// SessionIdleChanged reacts to the screensaver or session lock turning on or off.
func (keeper *TimeKeeper) SessionIdleChanged(idle bool) {
	keeper.locked(func() {
		if keeper.usage == model.UsageReading && keeper.monitor != nil {
			keeper.effects = append(keeper.effects, keeper.monitor.ForceIdle)
		}

		rest := keeper.machines[model.RestBreak]
		if idle {
			if !rest.Taking() {
				keeper.applyModeLocked(keeper.modes.Set(OverrideScreensaver, model.ModeSuspended))
			}
			return
		}
		keeper.applyModeLocked(keeper.modes.Remove(OverrideScreensaver))

		now := keeper.now()
		config := rest.Config()
		if config.AutoNatural &&
			keeper.modes.Regular() == model.ModeNormal &&
			config.Enabled &&
			rest.ElapsedIdle() < config.AutoReset &&
			!rest.Taking() &&
			!keeper.outrankedLocked(model.RestBreak, now) {
			if visible := keeper.visibleLocked(); visible != nil && visible != rest {
				if transition, ok := visible.Interrupt(); ok {
					keeper.handleTransitionLocked(transition, now)
				}
			}
			if transition, ok := rest.NaturalBreak(now); ok {
				keeper.handleTransitionLocked(transition, now)
			}
		}
	})
}

// ReportMonitorFailure suspends break monitoring after the input source failed.
func (keeper *TimeKeeper) ReportMonitorFailure(err error) {
	keeper.locked(func() {
		keeper.emitLocked(Event{
			Type:    EventMonitorError,
			Mode:    keeper.effective,
			Message: err.Error(),
			At:      keeper.now(),
		})
		keeper.applyModeLocked(keeper.modes.Set(OverrideMonitorFailure, model.ModeSuspended))
	})
}

// ConfigChanged reloads the configuration affected by key.
func (keeper *TimeKeeper) ConfigChanged(key string) {
	keeper.locked(func() {
		switch key {
		case "general/operation_mode":
			keeper.applyModeLocked(keeper.modes.SetRegular(keeper.settings.OperationMode()))
			return
		case "general/usage_mode":
			keeper.usage = keeper.settings.UsageMode()
			return
		}
		parts := strings.Split(key, "/")
		if len(parts) < 2 || (parts[0] != "timers" && parts[0] != "breaks") {
			return
		}
		id, ok := model.ParseBreakID(parts[1])
		if !ok {
			return
		}
		keeper.machines[id].SetConfig(keeper.settings.BreakConfig(id))
		keeper.logger.Debug("break configuration reloaded", zap.Stringer("break", id), zap.String("key", key))
	})
}

// Status returns the current state of all breaks.
func (keeper *TimeKeeper) Status() Status {
	keeper.mu.Lock()
	defer keeper.mu.Unlock()

	status := Status{
		Mode:     keeper.effective,
		Regular:  keeper.modes.Regular(),
		Usage:    keeper.usage,
		Activity: keeper.activity,
		At:       keeper.now(),
	}
	if visible := keeper.visibleLocked(); visible != nil {
		id := visible.ID()
		status.Visible = &id
	}
	for _, machine := range keeper.machines {
		config := machine.Config()
		status.Breaks[machine.ID()] = BreakStatus{
			Break:         machine.ID(),
			Enabled:       config.Enabled,
			Stage:         machine.Stage(),
			ElapsedActive: machine.ElapsedActive(),
			ElapsedIdle:   machine.ElapsedIdle(),
			Limit:         config.Limit,
			Remaining:     machine.Remaining(),
			PreludeCount:  machine.PreludeCount(),
			Overdue:       machine.Overdue(),
		}
	}
	return status
}

// Snapshots captures the persistent state of every break.
func (keeper *TimeKeeper) Snapshots() []breaks.Snapshot {
	keeper.mu.Lock()
	defer keeper.mu.Unlock()
	snapshots := make([]breaks.Snapshot, 0, len(keeper.machines))
	for _, machine := range keeper.machines {
		snapshots = append(snapshots, machine.Snapshot())
	}
	return snapshots
}

// Restore seeds the breaks from snapshots saved at savedAt. A daily limit
// saved before the last daily reset is ignored.
func (keeper *TimeKeeper) Restore(snapshots []breaks.Snapshot, savedAt time.Time) {
	keeper.mu.Lock()
	defer keeper.mu.Unlock()
	now := keeper.now()
	downtime := max(now.Sub(savedAt), 0)
	for _, snapshot := range snapshots {
		if !snapshot.Break.Valid() {
			continue
		}
		if snapshot.Break == model.DailyLimit && keeper.dayStart(savedAt).Before(keeper.day) {
			continue
		}
		keeper.machines[snapshot.Break].Restore(snapshot, downtime)
	}
	keeper.logger.Info("break state restored", zap.Duration("downtime", downtime))
}

// Tooltip renders the remaining time of every enabled break.
func (keeper *TimeKeeper) Tooltip() string {
	status := keeper.Status()
	var builder strings.Builder
	for _, entry := range status.Breaks {
		if !entry.Enabled {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteByte('\n')
		}
		fmt.Fprintf(&builder, "%s: %s", entry.Break.Label(), FormatRemaining(entry.Remaining))
	}
	if status.Mode != model.ModeNormal {
		fmt.Fprintf(&builder, "\n(%s)", status.Mode)
	}
	if status.Usage == model.UsageReading {
		builder.WriteString("\n(reading)")
	}
	return builder.String()
}

// FormatRemaining renders a duration as H:MM:SS or M:SS. Negative values
// are prefixed with a minus sign.
func FormatRemaining(remaining time.Duration) string {
	sign := ""
	if remaining < 0 {
		sign = "-"
		remaining = -remaining
	}
	seconds := int(remaining / time.Second)
	hours, minutes := seconds/3600, seconds/60%60
	if hours > 0 {
		return fmt.Sprintf("%s%d:%02d:%02d", sign, hours, minutes, seconds%60)
	}
	return fmt.Sprintf("%s%d:%02d", sign, minutes, seconds%60)
}

// outrankedLocked reports whether a break above id is showing or due.
func (keeper *TimeKeeper) outrankedLocked(id model.BreakID, now time.Time) bool {
	for _, other := range model.PriorityOrder {
		if !higherPriority(other, id) {
			continue
		}
		if machine := keeper.machines[other]; machine.Visible() || machine.Due(now) {
			return true
		}
	}
	return false
}

func wasVisible(stage breaks.Stage) bool {
	return stage == breaks.StagePrelude || stage == breaks.StageTaking
}

func (keeper *TimeKeeper) visibleLocked() *breaks.Machine {
	for _, machine := range keeper.machines {
		if machine.Visible() {
			return machine
		}
	}
	return nil
}

// higherPriority reports whether a ranks above b.
func higherPriority(a, b model.BreakID) bool {
	for _, id := range model.PriorityOrder {
		switch id {
		case a:
			return a != b
		case b:
			return false
		}
	}
	return false
}

// locked runs fn under the lock and then performs the side effects it queued.
func (keeper *TimeKeeper) locked(fn func()) {
	var effects []func()
	func() {
		keeper.mu.Lock()
		defer keeper.mu.Unlock()
		defer func() {
			effects, keeper.effects = keeper.effects, nil
		}()
		fn()
	}()

	for _, effect := range effects {
		effect()
	}
}

func (keeper *TimeKeeper) present(call func(Presenter)) {
	presenter := keeper.presenter
	keeper.effects = append(keeper.effects, func() {
		call(presenter)
	})
}

func (keeper *TimeKeeper) emitLocked(event Event) {
	events := append([]chan Event(nil), keeper.events...)
	for _, ch := range events {
		select {
		case ch <- event:
		default:
		}
	}
}
