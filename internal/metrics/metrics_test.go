package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"respite/internal/core/activity"
	"respite/internal/core/model"
	"respite/internal/core/timekeeper"
)

func TestObserveHeartbeat(t *testing.T) {
	metrics := New(false)
	metrics.ObserveHeartbeat(time.Millisecond, activity.StateActive, model.ModeQuiet)
	metrics.ObserveHeartbeat(time.Millisecond, activity.StateIdle, model.ModeQuiet)
	metrics.ObserveDroppedHeartbeat()

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Heartbeats))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DroppedHeartbeats))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActivityState.WithLabelValues("idle")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActivityState.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OperationMode.WithLabelValues("quiet")))
}

func TestActivityStartsFollowMonitorEdges(t *testing.T) {
	metrics := New(false)
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	config := model.DefaultMonitorConfig()
	config.Activity = 0
	monitor := activity.NewMonitor(config, activity.Options{Now: func() time.Time { return now }})
	monitor.SetListener(metrics)

	monitor.NotifyEvent(activity.Event{Kind: activity.EventKeyPress, At: now})
	monitor.NotifyEvent(activity.Event{Kind: activity.EventKeyPress, At: now.Add(time.Second)})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActivityStarts), "one edge per active stretch")
}

func TestRunRecordsEvents(t *testing.T) {
	metrics := New(false)
	events := make(chan timekeeper.Event, 8)
	events <- timekeeper.Event{Type: timekeeper.EventPrelude, Break: model.RestBreak}
	events <- timekeeper.Event{Type: timekeeper.EventBreakTaken, Break: model.RestBreak}
	events <- timekeeper.Event{Type: timekeeper.EventBreakTaken, Break: model.RestBreak}
	events <- timekeeper.Event{Type: timekeeper.EventProgress, Break: model.MicroBreak, Elapsed: 90 * time.Second}
	events <- timekeeper.Event{Type: timekeeper.EventMonitorError}
	events <- timekeeper.Event{Type: timekeeper.EventModeChanged}
	close(events)

	metrics.Run(context.Background(), events)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.BreakEvents.WithLabelValues("rest_break", "break_taken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BreakEvents.WithLabelValues("rest_break", "prelude")))
	assert.Equal(t, 90.0, testutil.ToFloat64(metrics.BreakElapsed.WithLabelValues("micro_pause")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MonitorErrors))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.BreakEvents))
}

func TestHandlerExposesRegistry(t *testing.T) {
	metrics := New(true)
	metrics.Heartbeats.Inc()

	recorder := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, recorder.Code)
	body := recorder.Body.String()
	assert.True(t, strings.Contains(body, "respite_heartbeats_total 1"))
	assert.Contains(t, body, "go_goroutines")
}
