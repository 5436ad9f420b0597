package breaks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"respite/internal/core/model"
)

var epoch = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func microConfig() model.BreakConfig {
	return model.BreakConfig{
		Enabled:         true,
		Limit:           1500 * time.Second,
		AutoReset:       180 * time.Second,
		Postponable:     true,
		Skippable:       true,
		PreludeLead:     30 * time.Second,
		PreludeDuration: 30 * time.Second,
		MaxPreludes:     3,
		SnoozeTime:      60 * time.Second,
		ResetOnTaken:    true,
	}
}

type driver struct {
	t       *testing.T
	machine *Machine
	now     time.Time
}

func newDriver(t *testing.T, config model.BreakConfig) *driver {
	return &driver{
		t:       t,
		machine: NewMachine(model.MicroBreak, config, zaptest.NewLogger(t)),
		now:     epoch,
	}
}

func (d *driver) tick(active bool) (Transition, bool) {
	d.now = d.now.Add(time.Second)
	return d.machine.Advance(Tick{Now: d.now, Delta: time.Second, Active: active, Start: true})
}

// run ticks until a transition occurs or the limit is reached. It returns the
// transition and the number of ticks taken.
func (d *driver) run(active bool, limit int) (Transition, int) {
	for count := 1; count <= limit; count++ {
		if transition, ok := d.tick(active); ok {
			return transition, count
		}
	}
	d.t.Fatalf("no transition within %d ticks", limit)
	return Transition{}, 0
}

func TestMachineScheduledPreludeAndBreak(t *testing.T) {
	d := newDriver(t, microConfig())

	var previous time.Duration
	for count := 1; count < 1470; count++ {
		_, ok := d.tick(true)
		require.False(t, ok, "tick %d", count)
		require.GreaterOrEqual(t, d.machine.ElapsedActive(), previous)
		previous = d.machine.ElapsedActive()
	}

	transition, ok := d.tick(true)
	require.True(t, ok)
	assert.Equal(t, OutcomePrelude, transition.Outcome)
	assert.Equal(t, StagePrelude, d.machine.Stage())
	assert.Equal(t, 1, d.machine.PreludeCount())

	transition, count := d.run(true, 100)
	assert.Equal(t, 30, count, "break window opens at tick 1500")
	assert.Equal(t, OutcomeStarted, transition.Outcome)
	assert.Equal(t, StageTaking, d.machine.Stage())
	assert.True(t, transition.Flags.Has(model.FlagPostponable))
	assert.True(t, transition.Flags.Has(model.FlagSkippable))
}

func TestMachinePreludeEndsEarlyWhenUserStops(t *testing.T) {
	d := newDriver(t, microConfig())
	d.run(true, 1500)
	require.Equal(t, StagePrelude, d.machine.Stage())

	transition, ok := d.tick(false)
	require.True(t, ok)
	assert.Equal(t, StageTaking, transition.To)
}

func TestMachineBreakTakenAfterIdleDuration(t *testing.T) {
	config := microConfig()
	config.Duration = 20 * time.Second
	d := newDriver(t, config)
	d.run(true, 1500)
	d.run(true, 100)
	require.Equal(t, StageTaking, d.machine.Stage())

	transition, count := d.run(false, 100)
	assert.Equal(t, 20, count)
	assert.Equal(t, OutcomeTaken, transition.Outcome)
	assert.Equal(t, StageIdle, d.machine.Stage())
	assert.Zero(t, d.machine.ElapsedActive())
	assert.Zero(t, d.machine.PreludeCount())
}

func TestMachineTakingOnlyWhileBreakRuns(t *testing.T) {
	d := newDriver(t, microConfig())
	assert.False(t, d.machine.Taking())

	d.run(true, 1500)
	require.Equal(t, StagePrelude, d.machine.Stage())
	assert.False(t, d.machine.Taking(), "a prelude is visible but not taking")

	d.run(true, 100)
	assert.True(t, d.machine.Taking())

	_, err := d.machine.Postpone(d.now)
	require.NoError(t, err)
	assert.False(t, d.machine.Taking())
}

func TestMachineActivityDuringBreakRestartsProgress(t *testing.T) {
	config := microConfig()
	config.Duration = 20 * time.Second
	d := newDriver(t, config)
	d.run(true, 1500)
	d.run(true, 100)

	for i := 0; i < 15; i++ {
		d.tick(false)
	}
	value, total := d.machine.Progress(d.now)
	assert.Equal(t, 15*time.Second, value)
	assert.Equal(t, 20*time.Second, total)

	d.tick(true)
	value, _ = d.machine.Progress(d.now)
	assert.Zero(t, value)
	assert.Equal(t, StageTaking, d.machine.Stage())
}

func TestMachinePostponeKeepsElapsed(t *testing.T) {
	d := newDriver(t, microConfig())
	d.run(true, 1500)
	d.run(true, 100)
	before := d.machine.ElapsedActive()

	transition, err := d.machine.Postpone(d.now)
	require.NoError(t, err)
	assert.Equal(t, OutcomePostponed, transition.Outcome)
	assert.Equal(t, StagePostponed, d.machine.Stage())
	assert.Equal(t, before, d.machine.ElapsedActive())

	transition, count := d.run(true, 200)
	assert.Equal(t, 60, count, "prelude returns after the snooze time")
	assert.Equal(t, OutcomePrelude, transition.Outcome)
	assert.Equal(t, 2, d.machine.PreludeCount())
	assert.Greater(t, d.machine.ElapsedActive(), before)
}

func TestMachineForcedAfterMaxPreludes(t *testing.T) {
	d := newDriver(t, microConfig())
	d.run(true, 1500)

	for prelude := 1; prelude <= 3; prelude++ {
		require.Equal(t, StagePrelude, d.machine.Stage())
		require.Equal(t, prelude, d.machine.PreludeCount())
		_, err := d.machine.Postpone(d.now)
		require.NoError(t, err)
		transition, _ := d.run(true, 200)
		if prelude < 3 {
			require.Equal(t, OutcomePrelude, transition.Outcome)
		} else {
			require.Equal(t, OutcomeForced, transition.Outcome)
		}
	}

	assert.Equal(t, StageTaking, d.machine.Stage())
	assert.False(t, d.machine.Flags().Has(model.FlagPostponable))
	_, err := d.machine.Postpone(d.now)
	assert.ErrorIs(t, err, ErrNotPostponable)
}

func TestMachinePreludeStages(t *testing.T) {
	d := newDriver(t, microConfig())
	d.run(true, 1500)
	assert.Equal(t, model.PreludeInitial, d.machine.PreludeStage(d.now))

	for i := 0; i < 15; i++ {
		d.tick(true)
	}
	assert.Equal(t, model.PreludeWarn, d.machine.PreludeStage(d.now))

	for prelude := 1; prelude < 3; prelude++ {
		_, err := d.machine.Postpone(d.now)
		require.NoError(t, err)
		d.run(true, 200)
	}
	assert.Equal(t, model.PreludeAlert, d.machine.PreludeStage(d.now))
}

func TestMachineSkipResetsElapsed(t *testing.T) {
	d := newDriver(t, microConfig())
	d.run(true, 1500)
	d.run(true, 100)

	transition, err := d.machine.Skip()
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, transition.Outcome)
	assert.Equal(t, StageTaking, transition.From)
	assert.Zero(t, d.machine.ElapsedActive())
	assert.Equal(t, StageIdle, d.machine.Stage())
}

func TestMachineSkipRequiresSkippable(t *testing.T) {
	config := microConfig()
	config.Skippable = false
	d := newDriver(t, config)
	d.run(true, 1500)

	_, err := d.machine.Skip()
	assert.ErrorIs(t, err, ErrNotSkippable)
	assert.Equal(t, StagePrelude, d.machine.Stage())
}

func TestMachineAutoResetCreditsIdleTime(t *testing.T) {
	d := newDriver(t, microConfig())
	for i := 0; i < 600; i++ {
		d.tick(true)
	}

	transition, count := d.run(false, 500)
	assert.Equal(t, 180, count)
	assert.Equal(t, OutcomeAutoReset, transition.Outcome)
	assert.False(t, transition.Natural)
	assert.Zero(t, d.machine.ElapsedActive())

	for i := 0; i < 500; i++ {
		_, ok := d.tick(false)
		require.False(t, ok, "credit is applied once per idle period")
	}
}

func TestMachineAutoResetDuringPostponeIsNatural(t *testing.T) {
	d := newDriver(t, microConfig())
	d.run(true, 1500)
	d.machine.config.SnoozeTime = time.Hour
	_, err := d.machine.Postpone(d.now)
	require.NoError(t, err)

	transition, _ := d.run(false, 500)
	assert.Equal(t, OutcomeAutoReset, transition.Outcome)
	assert.True(t, transition.Natural)
	assert.Equal(t, StageIdle, d.machine.Stage())
	assert.Zero(t, d.machine.PreludeCount())
}

func TestMachineNaturalBreak(t *testing.T) {
	t.Run("not overdue starts the break directly", func(t *testing.T) {
		d := newDriver(t, microConfig())
		for i := 0; i < 600; i++ {
			d.tick(true)
		}

		transition, ok := d.machine.NaturalBreak(d.now)
		require.True(t, ok)
		assert.Equal(t, StageTaking, transition.To)
		assert.True(t, transition.Natural)
		assert.True(t, transition.Flags.Has(model.FlagNatural))
		assert.True(t, transition.Flags.Has(model.FlagNoExercises))
		assert.Zero(t, d.machine.PreludeCount())
	})

	t.Run("overdue goes through the prelude", func(t *testing.T) {
		config := microConfig()
		d := newDriver(t, config)
		for i := 0; i < 2000; i++ {
			d.machine.Advance(Tick{Now: d.now, Delta: time.Second, Active: true})
		}
		require.True(t, d.machine.Overdue())

		transition, ok := d.machine.NaturalBreak(d.now)
		require.True(t, ok)
		assert.Equal(t, OutcomePrelude, transition.Outcome)
		assert.Equal(t, StagePrelude, d.machine.Stage())
	})

	t.Run("ignored while visible", func(t *testing.T) {
		d := newDriver(t, microConfig())
		d.run(true, 1500)
		_, ok := d.machine.NaturalBreak(d.now)
		assert.False(t, ok)
	})
}

func TestMachineUserInitiatedBreak(t *testing.T) {
	d := newDriver(t, microConfig())
	for i := 0; i < 100; i++ {
		d.tick(true)
	}

	transition, ok := d.machine.Force(model.HintUserInitiated)
	require.True(t, ok)
	assert.True(t, transition.Flags.Has(model.FlagUserInitiated))

	_, ok = d.machine.Force(model.HintUserInitiated)
	assert.False(t, ok)

	transition, err := d.machine.Postpone(d.now)
	require.NoError(t, err)
	assert.Equal(t, StageIdle, transition.To, "a requested break is dismissed rather than snoozed")
	assert.Equal(t, 100*time.Second, d.machine.ElapsedActive())
}

func TestMachineFrozenTicksDoNotAccumulate(t *testing.T) {
	d := newDriver(t, microConfig())
	for i := 0; i < 10; i++ {
		d.now = d.now.Add(time.Second)
		_, ok := d.machine.Advance(Tick{Now: d.now, Delta: time.Second, Active: true, Frozen: true, Start: true})
		require.False(t, ok)
	}
	assert.Zero(t, d.machine.ElapsedActive())
	assert.Zero(t, d.machine.ElapsedIdle())
}

func TestMachineWithoutStartGrantStaysPending(t *testing.T) {
	d := newDriver(t, microConfig())
	for i := 0; i < 1600; i++ {
		d.now = d.now.Add(time.Second)
		_, ok := d.machine.Advance(Tick{Now: d.now, Delta: time.Second, Active: true})
		require.False(t, ok)
	}
	assert.True(t, d.machine.Due(d.now))
	assert.True(t, d.machine.Overdue())
	assert.Equal(t, StageIdle, d.machine.Stage())
}

func TestMachineDisableInterruptsVisibleBreak(t *testing.T) {
	d := newDriver(t, microConfig())
	d.run(true, 1500)
	elapsed := d.machine.ElapsedActive()

	config := microConfig()
	config.Enabled = false
	d.machine.SetConfig(config)

	transition, ok := d.tick(true)
	require.True(t, ok)
	assert.Equal(t, OutcomeInterrupted, transition.Outcome)
	assert.Equal(t, elapsed, d.machine.ElapsedActive())
}

func TestMachineSnoozeAfterTakenWithoutReset(t *testing.T) {
	config := microConfig()
	config.ResetOnTaken = false
	config.AutoReset = 0
	config.Duration = 10 * time.Second
	d := newDriver(t, config)
	d.run(true, 1500)
	d.run(true, 100)
	d.run(false, 100)
	require.Equal(t, StageIdle, d.machine.Stage())
	assert.NotZero(t, d.machine.ElapsedActive())
	assert.False(t, d.machine.Due(d.now))

	transition, count := d.run(true, 200)
	assert.Equal(t, 60, count)
	assert.Equal(t, OutcomePrelude, transition.Outcome)
}

func TestMachineSnapshotRestore(t *testing.T) {
	d := newDriver(t, microConfig())
	for i := 0; i < 300; i++ {
		d.tick(true)
	}
	snapshot := d.machine.Snapshot()
	assert.Equal(t, 300*time.Second, snapshot.ElapsedActive)
	assert.Equal(t, model.MicroBreak, snapshot.Break)

	restored := NewMachine(model.MicroBreak, microConfig(), nil)
	restored.Restore(snapshot, 10*time.Minute)
	assert.Equal(t, 300*time.Second, restored.ElapsedActive())

	transition, ok := restored.Advance(Tick{Now: d.now, Delta: time.Second})
	require.True(t, ok, "downtime counts toward the idle credit")
	assert.Equal(t, OutcomeAutoReset, transition.Outcome)
}

func TestMachineResetClearsEverything(t *testing.T) {
	d := newDriver(t, microConfig())
	d.run(true, 1500)
	transition := d.machine.Reset()
	assert.Equal(t, StagePrelude, transition.From)
	assert.Equal(t, Snapshot{Break: model.MicroBreak, Enabled: true, Limit: 1500 * time.Second}, d.machine.Snapshot())
}
