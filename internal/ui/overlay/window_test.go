package overlay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"respite/internal/core/model"
)

func TestButtonStatesFollowFlags(t *testing.T) {
	tests := []struct {
		name        string
		flags       model.BreakFlags
		postponable bool
		skippable   bool
	}{
		{name: "forced", flags: 0},
		{name: "postpone only", flags: model.FlagPostponable, postponable: true},
		{name: "both", flags: model.FlagPostponable | model.FlagSkippable, postponable: true, skippable: true},
		{name: "natural", flags: model.FlagPostponable | model.FlagNatural | model.FlagNoExercises, postponable: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			postponable, skippable := buttonStates(test.flags)
			assert.Equal(t, test.postponable, postponable)
			assert.Equal(t, test.skippable, skippable)
		})
	}
}

func TestProgressFraction(t *testing.T) {
	assert.Equal(t, 0.5, progressFraction(15, 30))
	assert.Equal(t, 1.0, progressFraction(40, 30))
	assert.Equal(t, 0.0, progressFraction(-5, 30))
	assert.Equal(t, 0.0, progressFraction(5, 0))
}

func TestTexts(t *testing.T) {
	assert.Equal(t, "Rest break is due", preludeText(model.RestBreak, model.PreludeInitial))
	assert.Equal(t, "Daily limit: you must take a break now", preludeText(model.DailyLimit, model.PreludeAlert))
	assert.Equal(t, alertColor, stageColor(model.PreludeAlert))
	assert.Contains(t, breakSubtitle(model.RestBreak, model.FlagNatural), "away")
	assert.Equal(t, "Daily limit reached", breakTitle(model.DailyLimit))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "01:05", formatDuration(65*time.Second))
	assert.Equal(t, "00:00", formatDuration(-time.Second))
	assert.Equal(t, uint8(216), AlphaFromOpacity(0.85))
	assert.Equal(t, uint8(255), AlphaFromOpacity(3))
	assert.Equal(t, uint8(0), AlphaFromOpacity(-1))
}

func TestLayeredAlphaOnlyForTranslucentWindows(t *testing.T) {
	alpha, ok := layeredAlpha(Config{Opacity: 216})
	assert.True(t, ok)
	assert.Equal(t, uint8(216), alpha)

	_, ok = layeredAlpha(Config{Opacity: 216, Fullscreen: true})
	assert.False(t, ok, "fullscreen dims through its background")
	_, ok = layeredAlpha(Config{Opacity: 0})
	assert.False(t, ok)
	_, ok = layeredAlpha(Config{Opacity: 255})
	assert.False(t, ok)
}
