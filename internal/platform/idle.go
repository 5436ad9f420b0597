package platform

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"respite/internal/core/activity"
)

// ErrIdleUnsupported indicates that no idle time query works on this system.
var ErrIdleUnsupported = fmt.Errorf("%w: idle time query not supported", activity.ErrMonitorUnavailable)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultActionWindow = time.Second
)

// IdleProvider returns the duration since last user input.
type IdleProvider interface {
	IdleDuration() (time.Duration, error)
}

// NewIdleProvider returns a platform-specific idle provider.
func NewIdleProvider() IdleProvider {
	return newIdleProvider()
}

// IdleSource turns an IdleProvider into an activity.InputSource by polling:
// an idle time shorter than the action window counts as one input action.
type IdleSource struct {
	provider IdleProvider
	interval time.Duration
	window   time.Duration
	logger   *zap.Logger
	now      func() time.Time
	warn     rate.Sometimes
}

// NewInputSource returns the input source of this platform.
func NewInputSource(logger *zap.Logger) *IdleSource {
	return NewIdleSource(NewIdleProvider(), logger)
}

// NewIdleSource polls provider every 500ms.
func NewIdleSource(provider IdleProvider, logger *zap.Logger) *IdleSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdleSource{
		provider: provider,
		interval: defaultPollInterval,
		window:   defaultActionWindow,
		logger:   logger.Named("input"),
		now:      time.Now,
		warn:     rate.Sometimes{Interval: time.Minute},
	}
}

// Init checks that the provider answers at least once.
func (source *IdleSource) Init() error {
	if _, err := source.provider.IdleDuration(); err != nil {
		return fmt.Errorf("probe idle provider: %w", err)
	}
	return nil
}

// Run polls until ctx is done.
func (source *IdleSource) Run(ctx context.Context, sink activity.Sink) {
	ticker := time.NewTicker(source.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			source.poll(sink)
		}
	}
}

func (source *IdleSource) poll(sink activity.Sink) {
	idle, err := source.provider.IdleDuration()
	if err != nil {
		source.warn.Do(func() {
			source.logger.Warn("idle time query failed", zap.Error(err))
		})
		return
	}
	if idle < source.window {
		sink.NotifyEvent(activity.Event{Kind: activity.EventAction, At: source.now().Add(-idle)})
	}
}
