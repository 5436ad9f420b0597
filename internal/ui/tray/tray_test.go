package tray

import (
	"testing"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"respite/internal/core/model"
)

func find(t *testing.T, items []*fyne.MenuItem, label string) *fyne.MenuItem {
	t.Helper()
	for _, item := range items {
		if item.Label == label {
			return item
		}
	}
	require.Failf(t, "menu item missing", "label %q", label)
	return nil
}

func TestMenuReflectsState(t *testing.T) {
	var chosen []model.OperationMode
	var reading []bool
	rest := 0
	manager := &Manager{callbacks: Callbacks{
		OnSetMode:   func(mode model.OperationMode) { chosen = append(chosen, mode) },
		OnReading:   func(value bool) { reading = append(reading, value) },
		OnRestBreak: func() { rest++ },
	}}
	manager.SetStatus("Micro-break: 2:10\nRest break: 40:00")
	manager.SetMode(model.ModeQuiet)

	menu := manager.menu()
	assert.Equal(t, "Micro-break: 2:10", menu.Items[0].Label)
	assert.True(t, menu.Items[1].Disabled)

	modes := find(t, menu.Items, "Mode").ChildMenu.Items
	assert.True(t, find(t, modes, "Quiet").Checked)
	assert.False(t, find(t, modes, "Normal").Checked)
	find(t, modes, "Suspended").Action()
	assert.Equal(t, []model.OperationMode{model.ModeSuspended}, chosen)

	find(t, menu.Items, "Reading mode").Action()
	assert.Equal(t, []bool{true}, reading)

	find(t, menu.Items, "Take a rest break now").Action()
	assert.Equal(t, 1, rest)
}

func TestRestBreakDisabledWhenSuspended(t *testing.T) {
	manager := &Manager{}
	manager.SetMode(model.ModeSuspended)
	manager.SetReading(true)

	menu := manager.menu()
	assert.True(t, find(t, menu.Items, "Take a rest break now").Disabled)
	assert.True(t, find(t, menu.Items, "Reading mode").Checked)
}
