package platform

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"respite/internal/core/activity"
)

type scriptedProvider struct {
	mu      sync.Mutex
	results []time.Duration
	err     error
}

func (provider *scriptedProvider) IdleDuration() (time.Duration, error) {
	provider.mu.Lock()
	defer provider.mu.Unlock()
	if provider.err != nil {
		return 0, provider.err
	}
	if len(provider.results) == 0 {
		return time.Hour, nil
	}
	next := provider.results[0]
	provider.results = provider.results[1:]
	return next, nil
}

type collectingSink struct {
	mu     sync.Mutex
	events []activity.Event
}

func (sink *collectingSink) NotifyEvent(event activity.Event) {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	sink.events = append(sink.events, event)
}

func (sink *collectingSink) count() int {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return len(sink.events)
}

func TestIdleSourceReportsRecentInput(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	provider := &scriptedProvider{results: []time.Duration{200 * time.Millisecond, 5 * time.Second, 999 * time.Millisecond}}
	source := NewIdleSource(provider, zaptest.NewLogger(t))
	source.now = func() time.Time { return now }
	sink := &collectingSink{}

	source.poll(sink)
	source.poll(sink)
	source.poll(sink)

	require.Len(t, sink.events, 2)
	assert.Equal(t, activity.EventAction, sink.events[0].Kind)
	assert.Equal(t, now.Add(-200*time.Millisecond), sink.events[0].At)
}

func TestIdleSourceInitFailureIsUnavailable(t *testing.T) {
	source := NewIdleSource(&scriptedProvider{err: ErrIdleUnsupported}, zaptest.NewLogger(t))
	err := source.Init()
	assert.ErrorIs(t, err, activity.ErrMonitorUnavailable)

	sink := &collectingSink{}
	source.poll(sink)
	assert.Zero(t, sink.count(), "query errors are logged, not reported as input")
}

func TestIdleSourceRunStopsWithContext(t *testing.T) {
	source := NewIdleSource(&scriptedProvider{results: []time.Duration{0, 0, 0}}, zaptest.NewLogger(t))
	source.interval = time.Millisecond
	sink := &collectingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		source.Run(ctx, sink)
		close(done)
	}()

	require.Eventually(t, func() bool { return sink.count() == 3 }, 5*time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("source did not stop")
	}
}

func TestScreensaverActive(t *testing.T) {
	tests := []struct {
		name   string
		signal *dbus.Signal
		active bool
		ok     bool
	}{
		{name: "activated", signal: &dbus.Signal{Name: "org.freedesktop.ScreenSaver.ActiveChanged", Body: []any{true}}, active: true, ok: true},
		{name: "deactivated", signal: &dbus.Signal{Name: "org.gnome.ScreenSaver.ActiveChanged", Body: []any{false}}, ok: true},
		{name: "other member", signal: &dbus.Signal{Name: "org.gnome.ScreenSaver.WakeUpScreen", Body: []any{true}}},
		{name: "wrong body", signal: &dbus.Signal{Name: "org.gnome.ScreenSaver.ActiveChanged", Body: []any{"yes"}}},
		{name: "nil", signal: nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			active, ok := screensaverActive(test.signal)
			assert.Equal(t, test.active, active)
			assert.Equal(t, test.ok, ok)
		})
	}
}

func TestSingleInstance(t *testing.T) {
	name := "respite-test-" + t.Name()
	guard, err := AcquireSingleInstance(name)
	require.NoError(t, err)

	_, err = AcquireSingleInstance(name)
	assert.True(t, errors.Is(err, ErrAlreadyRunning))

	activated := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		guard.Serve(ctx, func() { activated <- struct{}{} })
		close(served)
	}()

	require.NoError(t, NotifyRunning(name))
	select {
	case <-activated:
	case <-time.After(5 * time.Second):
		t.Fatal("running instance was not activated")
	}

	cancel()
	<-served
	assert.NoError(t, guard.Release())
}
