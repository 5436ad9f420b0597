package config

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"respite/internal/core/model"
)

// ErrInvalidValue is returned when a value cannot be stored for a key.
var ErrInvalidValue = errors.New("invalid configuration value")

// Listener is notified after a key under its prefix changed.
type Listener interface {
	ConfigChanged(key string)
}

// Store persists the flat key/value map.
type Store interface {
	Load() (map[string]string, error)
	Save(values map[string]string) error
}

type registration struct {
	prefix   string
	listener Listener
}

// Configurator is a key/value configuration with defaults and change
// notification. Keys are slash separated paths such as timers/rest_break/limit.
type Configurator struct {
	mu        sync.RWMutex
	values    map[string]string
	defaults  map[string]string
	listeners []registration
	store     Store
	logger    *zap.Logger
}

// New creates a configurator backed by store. A nil store keeps values in memory.
func New(store Store, logger *zap.Logger) *Configurator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Configurator{
		values:   map[string]string{},
		defaults: Defaults(),
		store:    store,
		logger:   logger.Named("config"),
	}
}

// Load replaces the values with the stored ones.
func (configurator *Configurator) Load() error {
	if configurator.store == nil {
		return nil
	}
	values, err := configurator.store.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if values == nil {
		values = map[string]string{}
	}
	configurator.mu.Lock()
	configurator.values = values
	configurator.mu.Unlock()
	return nil
}

// Reload reads the store again and notifies listeners about every key whose
// effective value changed.
func (configurator *Configurator) Reload() error {
	if configurator.store == nil {
		return nil
	}
	values, err := configurator.store.Load()
	if err != nil {
		return fmt.Errorf("reload configuration: %w", err)
	}
	if values == nil {
		values = map[string]string{}
	}

	configurator.mu.Lock()
	previous := configurator.values
	configurator.values = values
	var changed []string
	for key := range unionKeys(previous, values) {
		if configurator.effectiveLocked(previous, key) != configurator.effectiveLocked(values, key) {
			changed = append(changed, key)
		}
	}
	configurator.mu.Unlock()

	for _, key := range changed {
		configurator.notify(key)
	}
	if len(changed) > 0 {
		configurator.logger.Info("configuration reloaded", zap.Strings("changed", changed))
	}
	return nil
}

// GetValue returns the value of key, falling back to its default.
func (configurator *Configurator) GetValue(key string) (string, bool) {
	configurator.mu.RLock()
	defer configurator.mu.RUnlock()
	if value, ok := configurator.values[key]; ok {
		return value, true
	}
	value, ok := configurator.defaults[key]
	return value, ok
}

// SetValue stores value under key, persists the configuration and notifies listeners.
func (configurator *Configurator) SetValue(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidValue)
	}
	configurator.mu.Lock()
	if current, ok := configurator.values[key]; ok && current == value {
		configurator.mu.Unlock()
		return nil
	}
	configurator.values[key] = value
	snapshot := maps.Clone(configurator.values)
	configurator.mu.Unlock()

	var err error
	if configurator.store != nil {
		if err = configurator.store.Save(snapshot); err != nil {
			err = fmt.Errorf("save configuration: %w", err)
		}
	}
	configurator.notify(key)
	return err
}

// Values returns a copy of the explicitly set values.
func (configurator *Configurator) Values() map[string]string {
	configurator.mu.RLock()
	defer configurator.mu.RUnlock()
	return maps.Clone(configurator.values)
}

// AddListener registers listener for keys starting with prefix. Listeners
// must be comparable so they can be removed again.
func (configurator *Configurator) AddListener(prefix string, listener Listener) {
	configurator.mu.Lock()
	defer configurator.mu.Unlock()
	configurator.listeners = append(configurator.listeners, registration{prefix: prefix, listener: listener})
}

// RemoveListener drops every registration of listener.
func (configurator *Configurator) RemoveListener(listener Listener) {
	configurator.mu.Lock()
	defer configurator.mu.Unlock()
	kept := configurator.listeners[:0]
	for _, entry := range configurator.listeners {
		if entry.listener != listener {
			kept = append(kept, entry)
		}
	}
	configurator.listeners = kept
}

func (configurator *Configurator) notify(key string) {
	configurator.mu.RLock()
	var targets []Listener
	for _, entry := range configurator.listeners {
		if strings.HasPrefix(key, entry.prefix) {
			targets = append(targets, entry.listener)
		}
	}
	configurator.mu.RUnlock()

	for _, listener := range targets {
		listener.ConfigChanged(key)
	}
}

func (configurator *Configurator) effectiveLocked(values map[string]string, key string) string {
	if value, ok := values[key]; ok {
		return value
	}
	return configurator.defaults[key]
}

func unionKeys(a, b map[string]string) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for key := range a {
		keys[key] = struct{}{}
	}
	for key := range b {
		keys[key] = struct{}{}
	}
	return keys
}

// String returns the value of key or an empty string.
func (configurator *Configurator) String(key string) string {
	value, _ := configurator.GetValue(key)
	return value
}

// Int returns the integer value of key. Malformed values log a warning and
// yield the default.
func (configurator *Configurator) Int(key string) int {
	value, _ := configurator.GetValue(key)
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return configurator.fallbackInt(key, value)
	}
	return parsed
}

// Bool returns the boolean value of key.
func (configurator *Configurator) Bool(key string) bool {
	value, _ := configurator.GetValue(key)
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		configurator.malformed(key, value)
		parsed, _ = strconv.ParseBool(configurator.defaults[key])
	}
	return parsed
}

// Float returns the floating point value of key.
func (configurator *Configurator) Float(key string) float64 {
	value, _ := configurator.GetValue(key)
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		configurator.malformed(key, value)
		parsed, _ = strconv.ParseFloat(configurator.defaults[key], 64)
	}
	return parsed
}

// Duration returns a value stored in seconds.
func (configurator *Configurator) Duration(key string) time.Duration {
	return time.Duration(configurator.Int(key)) * time.Second
}

// Millis returns a value stored in milliseconds.
func (configurator *Configurator) Millis(key string) time.Duration {
	return time.Duration(configurator.Int(key)) * time.Millisecond
}

func (configurator *Configurator) SetInt(key string, value int) error {
	return configurator.SetValue(key, strconv.Itoa(value))
}

func (configurator *Configurator) SetBool(key string, value bool) error {
	return configurator.SetValue(key, strconv.FormatBool(value))
}

func (configurator *Configurator) SetFloat(key string, value float64) error {
	return configurator.SetValue(key, strconv.FormatFloat(value, 'f', -1, 64))
}

// SetDuration stores a duration in whole seconds.
func (configurator *Configurator) SetDuration(key string, value time.Duration) error {
	if value < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidValue, key)
	}
	return configurator.SetValue(key, secs(value))
}

func (configurator *Configurator) fallbackInt(key, value string) int {
	configurator.malformed(key, value)
	parsed, _ := strconv.Atoi(configurator.defaults[key])
	return parsed
}

func (configurator *Configurator) malformed(key, value string) {
	configurator.logger.Warn("malformed configuration value, using default",
		zap.String("key", key),
		zap.String("value", value))
}

// BreakConfig assembles the configuration of a break.
func (configurator *Configurator) BreakConfig(id model.BreakID) model.BreakConfig {
	return model.BreakConfig{
		Enabled:         configurator.Bool(BreakKey(id, BreakEnabled)),
		Limit:           configurator.Duration(TimerKey(id, TimerLimit)),
		AutoReset:       configurator.Duration(TimerKey(id, TimerAutoReset)),
		Duration:        configurator.Duration(BreakKey(id, BreakDuration)),
		Postponable:     configurator.Bool(BreakKey(id, BreakPostponable)),
		Skippable:       configurator.Bool(BreakKey(id, BreakSkippable)),
		PreludeLead:     configurator.Duration(BreakKey(id, BreakPreludeLead)),
		PreludeDuration: configurator.Duration(BreakKey(id, BreakPreludeDuration)),
		MaxPreludes:     configurator.Int(BreakKey(id, BreakMaxPreludes)),
		SnoozeTime:      configurator.Duration(TimerKey(id, TimerSnooze)),
		ResetOnTaken:    configurator.Bool(BreakKey(id, BreakResetOnTaken)),
		AutoNatural:     configurator.Bool(BreakKey(id, BreakAutoNatural)),
	}
}

// SetBreakConfig stores every field of a break configuration.
func (configurator *Configurator) SetBreakConfig(id model.BreakID, config model.BreakConfig) error {
	return errors.Join(
		configurator.SetBool(BreakKey(id, BreakEnabled), config.Enabled),
		configurator.SetDuration(TimerKey(id, TimerLimit), config.Limit),
		configurator.SetDuration(TimerKey(id, TimerAutoReset), config.AutoReset),
		configurator.SetDuration(BreakKey(id, BreakDuration), config.Duration),
		configurator.SetBool(BreakKey(id, BreakPostponable), config.Postponable),
		configurator.SetBool(BreakKey(id, BreakSkippable), config.Skippable),
		configurator.SetDuration(BreakKey(id, BreakPreludeLead), config.PreludeLead),
		configurator.SetDuration(BreakKey(id, BreakPreludeDuration), config.PreludeDuration),
		configurator.SetInt(BreakKey(id, BreakMaxPreludes), config.MaxPreludes),
		configurator.SetDuration(TimerKey(id, TimerSnooze), config.SnoozeTime),
		configurator.SetBool(BreakKey(id, BreakResetOnTaken), config.ResetOnTaken),
		configurator.SetBool(BreakKey(id, BreakAutoNatural), config.AutoNatural),
	)
}

// MonitorConfig assembles the activity thresholds.
func (configurator *Configurator) MonitorConfig() model.MonitorConfig {
	return model.MonitorConfig{
		Noise:       configurator.Millis(KeyMonitorNoise),
		Activity:    configurator.Millis(KeyMonitorActivity),
		Idle:        configurator.Millis(KeyMonitorIdle),
		Sensitivity: configurator.Int(KeyMonitorSensitivity),
	}
}

// OperationMode returns the regular operation mode.
func (configurator *Configurator) OperationMode() model.OperationMode {
	value := configurator.String(KeyOperationMode)
	mode, ok := model.ParseOperationMode(value)
	if !ok {
		configurator.malformed(KeyOperationMode, value)
	}
	return mode
}

func (configurator *Configurator) SetOperationMode(mode model.OperationMode) error {
	return configurator.SetValue(KeyOperationMode, mode.String())
}

// UsageMode returns the configured usage mode.
func (configurator *Configurator) UsageMode() model.UsageMode {
	value := configurator.String(KeyUsageMode)
	mode, ok := model.ParseUsageMode(value)
	if !ok {
		configurator.malformed(KeyUsageMode, value)
	}
	return mode
}

func (configurator *Configurator) SetUsageMode(mode model.UsageMode) error {
	return configurator.SetValue(KeyUsageMode, mode.String())
}
