package preferences

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"respite/internal/config"
	"respite/internal/core/model"
)

func TestLoadUsesEffectiveDurations(t *testing.T) {
	configurator := config.New(nil, zaptest.NewLogger(t))
	settings := Load(configurator)

	assert.Equal(t, 3*time.Minute, settings.Breaks[model.MicroBreak].Limit)
	assert.Equal(t, 30*time.Second, settings.Breaks[model.MicroBreak].Duration, "falls back to the auto reset time")
	assert.Equal(t, 10*time.Minute, settings.Breaks[model.DailyLimit].Duration)
	assert.InDelta(t, 0.85, settings.OverlayOpacity, 1e-9)
	assert.True(t, settings.Fullscreen)
}

func TestApplyStoresChanges(t *testing.T) {
	configurator := config.New(nil, zaptest.NewLogger(t))
	settings := Load(configurator)
	settings.Breaks[model.RestBreak].Limit = 50 * time.Minute
	settings.Breaks[model.RestBreak].Skippable = false
	settings.Breaks[model.MicroBreak].Duration = 20 * time.Second
	settings.Autostart = true

	require.NoError(t, settings.Apply(configurator))

	rest := configurator.BreakConfig(model.RestBreak)
	assert.Equal(t, 50*time.Minute, rest.Limit)
	assert.False(t, rest.Skippable)
	assert.Zero(t, rest.Duration, "an unchanged duration keeps following the auto reset time")
	assert.Equal(t, 20*time.Second, configurator.BreakConfig(model.MicroBreak).Duration)
	assert.True(t, configurator.Bool(config.KeyAutostart))
}

func TestValidate(t *testing.T) {
	configurator := config.New(nil, zaptest.NewLogger(t))
	settings := Load(configurator)
	require.NoError(t, settings.Validate())

	settings.Breaks[model.MicroBreak].Duration = 5 * time.Minute
	settings.OverlayOpacity = 0.2
	err := settings.Validate()
	assert.ErrorIs(t, err, ErrInvalidSetting)
	assert.ErrorContains(t, err, "Micro-break duration must be shorter")
	assert.ErrorContains(t, err, "overlay opacity")

	assert.ErrorIs(t, settings.Apply(configurator), ErrInvalidSetting)
	assert.Equal(t, 30*time.Second, configurator.BreakConfig(model.MicroBreak).BreakDuration())
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
		ok    bool
	}{
		{input: "45", want: 45 * time.Minute, ok: true},
		{input: " 1h30m ", want: 90 * time.Minute, ok: true},
		{input: "30s", want: 30 * time.Second, ok: true},
		{input: "0", ok: false},
		{input: "-5m", ok: false},
		{input: "soon", ok: false},
	}
	for _, test := range tests {
		got, ok := parseDuration(test.input, time.Minute)
		assert.Equal(t, test.ok, ok, test.input)
		assert.Equal(t, test.want, got, test.input)
	}
	assert.Equal(t, "45", formatDuration(45*time.Minute))
	assert.Equal(t, "30s", formatDuration(30*time.Second))
}
