package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"respite/internal/core/activity"
	"respite/internal/core/model"
	"respite/internal/core/timekeeper"
)

// Metrics holds the Prometheus instrumentation of the scheduler.
type Metrics struct {
	registry *prometheus.Registry

	Heartbeats        prometheus.Counter
	DroppedHeartbeats prometheus.Counter
	HeartbeatDuration prometheus.Histogram
	ActivityState     *prometheus.GaugeVec
	OperationMode     *prometheus.GaugeVec
	BreakEvents       *prometheus.CounterVec
	BreakElapsed      *prometheus.GaugeVec
	MonitorErrors     prometheus.Counter
	ActivityStarts    prometheus.Counter
}

// New registers the metrics on a private registry. Process and Go runtime
// collectors are included when withRuntime is set.
func New(withRuntime bool) *Metrics {
	registry := prometheus.NewRegistry()
	if withRuntime {
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Heartbeats: factory.NewCounter(prometheus.CounterOpts{
			Name: "respite_heartbeats_total",
			Help: "Total number of scheduler heartbeats",
		}),
		DroppedHeartbeats: factory.NewCounter(prometheus.CounterOpts{
			Name: "respite_heartbeats_dropped_total",
			Help: "Heartbeats skipped because the previous one was still running",
		}),
		HeartbeatDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "respite_heartbeat_duration_seconds",
			Help:    "Time spent processing a heartbeat",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		}),
		ActivityState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "respite_activity_state",
			Help: "1 for the current activity state, 0 otherwise",
		}, []string{"state"}),
		OperationMode: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "respite_operation_mode",
			Help: "1 for the effective operation mode, 0 otherwise",
		}, []string{"mode"}),
		BreakEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "respite_break_events_total",
			Help: "Break lifecycle events by break and type",
		}, []string{"break", "type"}),
		BreakElapsed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "respite_break_elapsed_seconds",
			Help: "Active time accumulated towards each break",
		}, []string{"break"}),
		MonitorErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "respite_monitor_errors_total",
			Help: "Activity monitor failures",
		}),
		ActivityStarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "respite_activity_starts_total",
			Help: "Times the user became active after a pause",
		}),
	}
}

// Registry returns the registry holding the metrics.
func (metrics *Metrics) Registry() *prometheus.Registry {
	return metrics.registry
}

// ObserveHeartbeat records one processed heartbeat.
func (metrics *Metrics) ObserveHeartbeat(duration time.Duration, state activity.State, mode model.OperationMode) {
	metrics.Heartbeats.Inc()
	metrics.HeartbeatDuration.Observe(duration.Seconds())
	for _, known := range []activity.State{activity.StateUnknown, activity.StateSuspended, activity.StateIdle, activity.StateNoise, activity.StateActive} {
		metrics.ActivityState.WithLabelValues(known.String()).Set(indicator(known == state))
	}
	for _, known := range []model.OperationMode{model.ModeNormal, model.ModeSuspended, model.ModeQuiet} {
		metrics.OperationMode.WithLabelValues(known.String()).Set(indicator(known == mode))
	}
}

// ActionNotify counts a transition into activity. It stays attached to the
// monitor for the life of the process.
func (metrics *Metrics) ActionNotify() bool {
	metrics.ActivityStarts.Inc()
	return true
}

// ObserveDroppedHeartbeat records a heartbeat skipped due to reentry.
func (metrics *Metrics) ObserveDroppedHeartbeat() {
	metrics.DroppedHeartbeats.Inc()
}

// Record applies a scheduler event.
func (metrics *Metrics) Record(event timekeeper.Event) {
	switch event.Type {
	case timekeeper.EventProgress:
		metrics.BreakElapsed.WithLabelValues(event.Break.Name()).Set(event.Elapsed.Seconds())
	case timekeeper.EventMonitorError:
		metrics.MonitorErrors.Inc()
	case timekeeper.EventModeChanged, timekeeper.EventDayRollover:
	default:
		metrics.BreakEvents.WithLabelValues(event.Break.Name(), string(event.Type)).Inc()
	}
}

// Run records events until ctx is done or the channel is closed.
func (metrics *Metrics) Run(ctx context.Context, events <-chan timekeeper.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			metrics.Record(event)
		}
	}
}

// Handler exposes the registry in the Prometheus text format.
func (metrics *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{Registry: metrics.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (metrics *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}

func indicator(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
