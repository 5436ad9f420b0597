package opmode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"respite/internal/core/model"
)

func TestStackRegularWithoutOverrides(t *testing.T) {
	stack := NewStack(model.ModeQuiet)
	assert.Equal(t, model.ModeQuiet, stack.Effective())

	assert.Equal(t, model.ModeNormal, stack.SetRegular(model.ModeNormal))
	assert.Equal(t, model.ModeNormal, stack.Regular())
}

func TestStackOverridesDoNotClobberEachOther(t *testing.T) {
	stack := NewStack(model.ModeNormal)

	assert.Equal(t, model.ModeSuspended, stack.Set("screensaver", model.ModeSuspended))
	assert.Equal(t, model.ModeQuiet, stack.Set("presentation", model.ModeQuiet))

	assert.Equal(t, model.ModeSuspended, stack.Remove("presentation"))
	assert.True(t, stack.Has("screensaver"))
	assert.Equal(t, model.ModeNormal, stack.Remove("screensaver"))
	assert.Equal(t, model.ModeNormal, stack.Remove("missing"))
}

func TestStackResetMovesOverrideToTop(t *testing.T) {
	stack := NewStack(model.ModeNormal)
	stack.Set("a", model.ModeQuiet)
	stack.Set("b", model.ModeSuspended)

	assert.Equal(t, model.ModeQuiet, stack.Set("a", model.ModeQuiet))
	assert.Equal(t, []string{"b", "a"}, stack.Overrides())

	stack.SetRegular(model.ModeSuspended)
	stack.Remove("a")
	stack.Remove("b")
	assert.Equal(t, model.ModeSuspended, stack.Effective())
}
