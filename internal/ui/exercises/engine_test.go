package exercises

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineCyclesAndStops(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	engine := New(func(exercise Exercise) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, exercise.Title)
	})

	list := []Exercise{
		{Title: "a", Duration: time.Millisecond},
		{Title: "b", Duration: time.Millisecond},
	}
	engine.Start(context.Background(), list)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 4
	}, 5*time.Second, time.Millisecond)
	engine.Stop()

	mu.Lock()
	count := len(seen)
	for i := 1; i < count; i++ {
		assert.NotEqual(t, seen[i-1], seen[i], "exercises alternate")
	}
	mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, count, len(seen), "no steps after Stop")
	mu.Unlock()
}

func TestEngineEmptyListIsNoop(t *testing.T) {
	engine := New(func(Exercise) { t.Fatal("unexpected step") })
	engine.Start(context.Background(), nil)
	engine.Stop()
}

func TestDefaultsAreUsable(t *testing.T) {
	for _, exercise := range Defaults() {
		assert.NotEmpty(t, exercise.Title)
		assert.Positive(t, exercise.Duration)
	}
}
