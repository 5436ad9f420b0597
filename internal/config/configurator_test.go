package config

import (
	"errors"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"respite/internal/core/model"
)

type memoryStore struct {
	mu      sync.Mutex
	values  map[string]string
	saves   int
	saveErr error
}

func (store *memoryStore) Load() (map[string]string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	return maps.Clone(store.values), nil
}

func (store *memoryStore) Save(values map[string]string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.saves++
	store.values = maps.Clone(values)
	return store.saveErr
}

type recorder struct {
	mu   sync.Mutex
	keys []string
}

func (recorder *recorder) ConfigChanged(key string) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.keys = append(recorder.keys, key)
}

func (recorder *recorder) seen() []string {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	return append([]string(nil), recorder.keys...)
}

func TestDefaultsCoverEveryBreak(t *testing.T) {
	configurator := New(nil, zaptest.NewLogger(t))
	for _, id := range model.AllBreaks {
		assert.Equal(t, model.DefaultBreakConfig(id), configurator.BreakConfig(id), id.Name())
	}
	assert.Equal(t, model.DefaultMonitorConfig(), configurator.MonitorConfig())
	assert.Equal(t, model.ModeNormal, configurator.OperationMode())
	assert.Equal(t, model.UsageNormal, configurator.UsageMode())
	assert.InDelta(t, 0.85, configurator.Float(KeyOverlayOpacity), 1e-9)
}

func TestSetValuePersistsAndNotifiesByPrefix(t *testing.T) {
	store := &memoryStore{}
	configurator := New(store, zaptest.NewLogger(t))
	rest := &recorder{}
	all := &recorder{}
	configurator.AddListener(TimerPrefix(model.RestBreak), rest)
	configurator.AddListener("", all)

	require.NoError(t, configurator.SetDuration(TimerKey(model.RestBreak, TimerLimit), 30*time.Minute))
	require.NoError(t, configurator.SetDuration(TimerKey(model.MicroBreak, TimerLimit), time.Minute))

	assert.Equal(t, []string{"timers/rest_break/limit"}, rest.seen())
	assert.Len(t, all.seen(), 2)
	assert.Equal(t, "1800", store.values["timers/rest_break/limit"])
	assert.Equal(t, 30*time.Minute, configurator.BreakConfig(model.RestBreak).Limit)

	require.NoError(t, configurator.SetDuration(TimerKey(model.RestBreak, TimerLimit), 30*time.Minute))
	assert.Len(t, rest.seen(), 1, "unchanged values are not announced")
	assert.Equal(t, 2, store.saves)
}

func TestRemoveListener(t *testing.T) {
	configurator := New(nil, zaptest.NewLogger(t))
	listener := &recorder{}
	configurator.AddListener("general/", listener)
	configurator.RemoveListener(listener)

	require.NoError(t, configurator.SetOperationMode(model.ModeQuiet))
	assert.Empty(t, listener.seen())
	assert.Equal(t, model.ModeQuiet, configurator.OperationMode())
}

func TestSaveErrorStillAppliesValue(t *testing.T) {
	store := &memoryStore{saveErr: errors.New("disk full")}
	configurator := New(store, zaptest.NewLogger(t))

	err := configurator.SetUsageMode(model.UsageReading)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, model.UsageReading, configurator.UsageMode())
}

func TestMalformedValuesFallBackToDefaults(t *testing.T) {
	store := &memoryStore{values: map[string]string{
		BreakKey(model.MicroBreak, BreakMaxPreludes): "many",
		BreakKey(model.MicroBreak, BreakEnabled):     "maybe",
		KeyOperationMode:                             "vacation",
		KeyOverlayOpacity:                            "dim",
	}}
	configurator := New(store, zaptest.NewLogger(t))
	require.NoError(t, configurator.Load())

	config := configurator.BreakConfig(model.MicroBreak)
	defaults := model.DefaultBreakConfig(model.MicroBreak)
	assert.Equal(t, defaults.MaxPreludes, config.MaxPreludes)
	assert.Equal(t, defaults.Enabled, config.Enabled)
	assert.Equal(t, model.ModeNormal, configurator.OperationMode())
	assert.InDelta(t, 0.85, configurator.Float(KeyOverlayOpacity), 1e-9)
}

func TestSetDurationRejectsNegative(t *testing.T) {
	configurator := New(nil, zaptest.NewLogger(t))
	err := configurator.SetDuration(TimerKey(model.MicroBreak, TimerSnooze), -time.Second)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.ErrorIs(t, configurator.SetValue("", "x"), ErrInvalidValue)
}

func TestBreakConfigRoundTrip(t *testing.T) {
	configurator := New(&memoryStore{}, zaptest.NewLogger(t))
	config := model.DefaultBreakConfig(model.DailyLimit)
	config.Limit = 3 * time.Hour
	config.MaxPreludes = 0
	config.Skippable = false

	require.NoError(t, configurator.SetBreakConfig(model.DailyLimit, config))
	assert.Equal(t, config, configurator.BreakConfig(model.DailyLimit))
}

func TestReloadAnnouncesChangedKeys(t *testing.T) {
	store := &memoryStore{values: map[string]string{
		TimerKey(model.MicroBreak, TimerLimit): "120",
		KeyUsageMode:                           "reading",
	}}
	configurator := New(store, zaptest.NewLogger(t))
	require.NoError(t, configurator.Load())
	listener := &recorder{}
	configurator.AddListener("", listener)

	store.values = map[string]string{
		TimerKey(model.MicroBreak, TimerLimit): "240",
		KeyUsageMode:                           "reading",
		KeyMonitorSensitivity:                  configurator.String(KeyMonitorSensitivity),
	}
	require.NoError(t, configurator.Reload())

	assert.Equal(t, []string{"timers/micro_pause/limit"}, listener.seen())
	assert.Equal(t, 4*time.Minute, configurator.BreakConfig(model.MicroBreak).Limit)
}
