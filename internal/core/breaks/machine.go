package breaks

import (
	"time"

	"go.uber.org/zap"

	"respite/internal/core/model"
)

// Machine tracks the active and idle time of one break and drives it through
// prelude, break and postponement. A Machine is not safe for concurrent use;
// the scheduler serializes all calls.
type Machine struct {
	id     model.BreakID
	config model.BreakConfig
	logger *zap.Logger

	stage         Stage
	elapsedActive time.Duration
	elapsedIdle   time.Duration
	preludeCount  int

	preludeStarted time.Time
	deadline       time.Time
	snoozeUntil    time.Time

	hint   model.BreakHint
	flags  model.BreakFlags
	forced bool
}

// NewMachine creates an idle machine.
func NewMachine(id model.BreakID, config model.BreakConfig, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		id:     id,
		config: config,
		logger: logger.Named("breaks").With(zap.String("break", id.Name())),
	}
}

// ID returns the break this machine tracks.
func (machine *Machine) ID() model.BreakID {
	return machine.id
}

// Config returns the current configuration.
func (machine *Machine) Config() model.BreakConfig {
	return machine.config
}

func (machine *Machine) Stage() Stage {
	return machine.stage
}

func (machine *Machine) ElapsedActive() time.Duration {
	return machine.elapsedActive
}

func (machine *Machine) ElapsedIdle() time.Duration {
	return machine.elapsedIdle
}

func (machine *Machine) PreludeCount() int {
	return machine.preludeCount
}

// Flags returns the window flags of the running break.
func (machine *Machine) Flags() model.BreakFlags {
	return machine.flags
}

func (machine *Machine) Hint() model.BreakHint {
	return machine.hint
}

// Visible reports whether a prelude or break window is shown.
func (machine *Machine) Visible() bool {
	return machine.stage == StagePrelude || machine.stage == StageTaking
}

// Taking reports whether the break window is counting down the break itself.
func (machine *Machine) Taking() bool {
	return machine.stage == StageTaking
}

// Remaining returns the active time left before the limit. It is negative
// once the break is overdue.
func (machine *Machine) Remaining() time.Duration {
	return machine.config.Limit - machine.elapsedActive
}

// Overdue reports whether the active time exceeds the limit.
func (machine *Machine) Overdue() bool {
	return machine.elapsedActive > machine.config.Limit
}

func (machine *Machine) transition(from Stage, outcome Outcome) Transition {
	return Transition{Break: machine.id, From: from, To: machine.stage, Outcome: outcome, Flags: machine.flags}
}

// SetConfig replaces the break configuration. A disabled break is
// interrupted on the next Advance.
func (machine *Machine) SetConfig(config model.BreakConfig) {
	machine.config = config
}

// Due reports whether a prelude should be shown.
func (machine *Machine) Due(now time.Time) bool {
	if !machine.config.Enabled {
		return false
	}
	switch machine.stage {
	case StageIdle:
		if !machine.snoozeUntil.IsZero() && now.Before(machine.snoozeUntil) {
			return false
		}
		return machine.elapsedActive >= machine.config.Limit-machine.config.PreludeLead
	case StagePostponed:
		return !now.Before(machine.snoozeUntil)
	}
	return false
}

// Advance applies one heartbeat. It returns the transition taken, if any.
func (machine *Machine) Advance(tick Tick) (Transition, bool) {
	if tick.Frozen {
		return Transition{}, false
	}
	if !machine.config.Enabled {
		if machine.stage != StageIdle {
			return machine.Interrupt()
		}
		return Transition{}, false
	}

	if tick.Active {
		machine.elapsedActive += tick.Delta
		machine.elapsedIdle = 0
	} else {
		machine.elapsedIdle += tick.Delta
	}

	if machine.stage != StageTaking && machine.autoResetReached() {
		return machine.autoReset(), true
	}

	switch machine.stage {
	case StageIdle:
		if tick.Start && machine.Due(tick.Now) {
			return machine.enterPrelude(tick.Now), true
		}
	case StagePrelude:
		if !tick.Active || !tick.Now.Before(machine.deadline) {
			from := machine.stage
			machine.startTaking(model.HintNormal)
			return machine.transition(from, OutcomeStarted), true
		}
	case StageTaking:
		if machine.elapsedIdle >= machine.config.BreakDuration() {
			return machine.taken(tick.Now), true
		}
	case StagePostponed:
		if tick.Start && machine.Due(tick.Now) {
			if machine.config.MaxPreludes > 0 && machine.preludeCount >= machine.config.MaxPreludes {
				from := machine.stage
				machine.forced = true
				machine.startTaking(model.HintNormal)
				machine.logger.Info("break forced after maximum preludes",
					zap.Int("preludes", machine.preludeCount))
				return machine.transition(from, OutcomeForced), true
			}
			return machine.enterPrelude(tick.Now), true
		}
	}
	return Transition{}, false
}

// Postpone hides the visible break for the snooze time. Elapsed time is kept.
func (machine *Machine) Postpone(now time.Time) (Transition, error) {
	if !machine.Visible() {
		return Transition{}, ErrNotVisible
	}
	if machine.stage == StageTaking && !machine.flags.Has(model.FlagPostponable) {
		return Transition{}, ErrNotPostponable
	}
	if machine.stage == StagePrelude && !machine.config.Postponable {
		return Transition{}, ErrNotPostponable
	}
	from := machine.stage
	if machine.hint != model.HintNormal {
		// Breaks the user asked for are simply dismissed.
		machine.stage = StageIdle
		machine.clearBreak()
		return machine.transition(from, OutcomePostponed), nil
	}
	machine.stage = StagePostponed
	machine.snoozeUntil = now.Add(machine.config.SnoozeTime)
	machine.logger.Debug("postponed",
		zap.Duration("snooze", machine.config.SnoozeTime),
		zap.Int("preludes", machine.preludeCount))
	return machine.transition(from, OutcomePostponed), nil
}

// Skip ends the break cycle as if the break had been taken.
func (machine *Machine) Skip() (Transition, error) {
	if !machine.config.Skippable {
		return Transition{}, ErrNotSkippable
	}
	from := machine.stage
	flags := machine.flags
	machine.elapsedActive = 0
	machine.preludeCount = 0
	machine.snoozeUntil = time.Time{}
	machine.stage = StageIdle
	machine.clearBreak()
	transition := machine.transition(from, OutcomeSkipped)
	transition.Flags = flags
	return transition, nil
}

// Force starts the break immediately, bypassing the prelude.
func (machine *Machine) Force(hint model.BreakHint) (Transition, bool) {
	if machine.stage == StageTaking {
		return Transition{}, false
	}
	from := machine.stage
	machine.startTaking(hint)
	return machine.transition(from, OutcomeStarted), true
}

// NaturalBreak reacts to the user stepping away on their own. A break that is
// not yet overdue starts right away without a prelude; an overdue break goes
// through the prelude first.
func (machine *Machine) NaturalBreak(now time.Time) (Transition, bool) {
	if !machine.config.Enabled || machine.Visible() {
		return Transition{}, false
	}
	if machine.Overdue() {
		return machine.enterPrelude(now), true
	}
	from := machine.stage
	machine.startTaking(model.HintNatural)
	transition := machine.transition(from, OutcomeStarted)
	transition.Natural = true
	return transition, true
}

// Interrupt hides a visible or postponed break without touching elapsed time.
func (machine *Machine) Interrupt() (Transition, bool) {
	if machine.stage == StageIdle {
		return Transition{}, false
	}
	from := machine.stage
	machine.stage = StageIdle
	machine.clearBreak()
	return machine.transition(from, OutcomeInterrupted), true
}

// Reset clears all accumulated time and returns to idle.
func (machine *Machine) Reset() Transition {
	from := machine.stage
	machine.elapsedActive = 0
	machine.elapsedIdle = 0
	machine.preludeCount = 0
	machine.snoozeUntil = time.Time{}
	machine.stage = StageIdle
	machine.clearBreak()
	return machine.transition(from, OutcomeReset)
}

// Progress returns the progress of the visible window as value and maximum.
func (machine *Machine) Progress(now time.Time) (time.Duration, time.Duration) {
	switch machine.stage {
	case StageTaking:
		total := machine.config.BreakDuration()
		return min(machine.elapsedIdle, total), total
	case StagePrelude:
		total := machine.config.PreludeDuration
		return min(max(now.Sub(machine.preludeStarted), 0), total), total
	}
	return min(machine.elapsedActive, machine.config.Limit), machine.config.Limit
}

// PreludeStage returns the escalation level of the prelude window.
func (machine *Machine) PreludeStage(now time.Time) model.PreludeStage {
	if machine.config.MaxPreludes > 0 && machine.preludeCount >= machine.config.MaxPreludes {
		return model.PreludeAlert
	}
	if now.Sub(machine.preludeStarted) >= machine.config.PreludeDuration/2 {
		return model.PreludeWarn
	}
	return model.PreludeInitial
}

// Snapshot captures the persistent state.
func (machine *Machine) Snapshot() Snapshot {
	return Snapshot{
		Break:         machine.id,
		Stage:         machine.stage,
		Enabled:       machine.config.Enabled,
		Limit:         machine.config.Limit,
		ElapsedActive: machine.elapsedActive,
		ElapsedIdle:   machine.elapsedIdle,
		PreludeCount:  machine.preludeCount,
	}
}

// Restore seeds the accumulated time from a snapshot. The time the process was
// not running counts as idle. Visible stages are not restored.
func (machine *Machine) Restore(snapshot Snapshot, downtime time.Duration) {
	machine.elapsedActive = max(snapshot.ElapsedActive, 0)
	machine.elapsedIdle = max(snapshot.ElapsedIdle, 0) + max(downtime, 0)
	machine.preludeCount = snapshot.PreludeCount
	machine.stage = StageIdle
	machine.clearBreak()
}

func (machine *Machine) autoResetReached() bool {
	return machine.config.AutoReset > 0 &&
		machine.elapsedIdle >= machine.config.AutoReset &&
		(machine.elapsedActive > 0 || machine.stage != StageIdle || machine.preludeCount > 0)
}

func (machine *Machine) autoReset() Transition {
	from := machine.stage
	natural := machine.elapsedActive >= machine.config.Limit-machine.config.PreludeLead
	machine.elapsedActive = 0
	machine.preludeCount = 0
	machine.snoozeUntil = time.Time{}
	machine.stage = StageIdle
	machine.clearBreak()
	transition := machine.transition(from, OutcomeAutoReset)
	transition.Natural = natural
	machine.logger.Debug("idle time credited", zap.Bool("natural", natural))
	return transition
}

func (machine *Machine) enterPrelude(now time.Time) Transition {
	from := machine.stage
	machine.stage = StagePrelude
	machine.preludeCount++
	machine.preludeStarted = now
	machine.deadline = now.Add(machine.config.PreludeDuration)
	machine.hint = model.HintNormal
	machine.flags = 0
	machine.logger.Debug("prelude", zap.Int("count", machine.preludeCount))
	return machine.transition(from, OutcomePrelude)
}

func (machine *Machine) startTaking(hint model.BreakHint) {
	machine.stage = StageTaking
	machine.hint = hint
	machine.flags = machine.flagsFor(hint)
}

func (machine *Machine) taken(now time.Time) Transition {
	from := machine.stage
	flags := machine.flags
	natural := machine.hint == model.HintNatural
	if machine.config.ResetOnTaken {
		machine.elapsedActive = 0
		machine.snoozeUntil = time.Time{}
	} else {
		machine.snoozeUntil = now.Add(machine.config.SnoozeTime)
	}
	machine.preludeCount = 0
	machine.stage = StageIdle
	machine.clearBreak()
	transition := machine.transition(from, OutcomeTaken)
	transition.Flags = flags
	transition.Natural = natural
	return transition
}

func (machine *Machine) clearBreak() {
	machine.hint = model.HintNormal
	machine.flags = 0
	machine.forced = false
	machine.deadline = time.Time{}
}

func (machine *Machine) flagsFor(hint model.BreakHint) model.BreakFlags {
	var flags model.BreakFlags
	switch hint {
	case model.HintUserInitiated:
		flags = model.FlagPostponable | model.FlagUserInitiated
	case model.HintNatural:
		flags = model.FlagPostponable | model.FlagNatural | model.FlagNoExercises
	default:
		if machine.config.Postponable && !machine.forced {
			flags |= model.FlagPostponable
		}
	}
	if machine.config.Skippable {
		flags |= model.FlagSkippable
	}
	return flags
}
