package stats

import (
	"context"
	"time"

	"go.uber.org/zap"

	"respite/internal/core/activity"
	"respite/internal/core/breaks"
	"respite/internal/core/timekeeper"
)

// ActivitySource provides input counters and the current activity state.
type ActivitySource interface {
	CurrentState() activity.State
	TakeCounters() activity.Counters
}

// RecorderConfig tunes a Recorder.
type RecorderConfig struct {
	SampleInterval time.Duration
	Logger         *zap.Logger
	Now            func() time.Time
}

// Recorder turns scheduler events and activity samples into daily statistics.
type Recorder struct {
	store    *Store
	source   ActivitySource
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewRecorder creates a recorder writing to store. source may be nil.
func NewRecorder(store *Store, source ActivitySource, config RecorderConfig) *Recorder {
	if config.SampleInterval <= 0 {
		config.SampleInterval = time.Minute
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Recorder{
		store:    store,
		source:   source,
		interval: config.SampleInterval,
		logger:   config.Logger.Named("stats"),
		now:      config.Now,
	}
}

// Run consumes events until ctx is done or the channel is closed.
func (recorder *Recorder) Run(ctx context.Context, events <-chan timekeeper.Event) {
	ticker := time.NewTicker(recorder.interval)
	defer ticker.Stop()
	defer recorder.Sample(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			recorder.Record(ctx, event)
		case <-ticker.C:
			recorder.Sample(ctx)
		}
	}
}

// Record applies a single scheduler event.
func (recorder *Recorder) Record(ctx context.Context, event timekeeper.Event) {
	for _, counter := range countersFor(event) {
		if err := recorder.store.AddBreak(ctx, event.At, event.Break, counter, 1); err != nil {
			recorder.logger.Warn("record break statistic failed",
				zap.Stringer("break", event.Break),
				zap.String("counter", string(counter)),
				zap.Error(err))
		}
	}
}

// Sample stores the input counters gathered since the previous sample.
func (recorder *Recorder) Sample(ctx context.Context) {
	if recorder.source == nil {
		return
	}
	counters := recorder.source.TakeCounters()
	sample := ActivityStats{
		Keystrokes:    counters.Keystrokes,
		MouseClicks:   counters.MouseClicks,
		MouseMovement: counters.MouseMovement,
	}
	if recorder.source.CurrentState() == activity.StateActive {
		sample.Active = recorder.interval
	}
	if sample == (ActivityStats{}) {
		return
	}
	if err := recorder.store.AddActivity(ctx, recorder.now(), sample); err != nil {
		recorder.logger.Warn("record activity statistic failed", zap.Error(err))
	}
}

func countersFor(event timekeeper.Event) []Counter {
	switch event.Type {
	case timekeeper.EventPrelude:
		if event.From == breaks.StageIdle {
			return []Counter{CounterPrompted, CounterUnique}
		}
		return []Counter{CounterPrompted}
	case timekeeper.EventBreakStarted:
		if event.Natural {
			return []Counter{CounterNatural}
		}
	case timekeeper.EventAutoReset:
		if event.Natural {
			return []Counter{CounterNatural}
		}
	case timekeeper.EventBreakTaken:
		return []Counter{CounterTaken}
	case timekeeper.EventBreakSkipped:
		return []Counter{CounterSkipped}
	case timekeeper.EventBreakPostponed:
		return []Counter{CounterPostponed}
	case timekeeper.EventBreakForced:
		return []Counter{CounterForced}
	}
	return nil
}
