package exercises

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Engine steps through exercises while a break window is shown.
type Engine struct {
	mu     sync.Mutex
	onStep func(Exercise)
	cancel context.CancelFunc
	done   chan struct{}
	rng    *rand.Rand
}

// New creates an engine calling onStep for every exercise shown.
func New(onStep func(Exercise)) *Engine {
	return &Engine{
		onStep: onStep,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start cycles through list, beginning at a random position, until Stop or ctx is done.
func (engine *Engine) Start(ctx context.Context, list []Exercise) {
	engine.Stop()
	if len(list) == 0 {
		return
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	engine.cancel = cancel
	engine.done = done
	first := engine.rng.Intn(len(list))

	go func() {
		defer close(done)
		for index := first; ; index++ {
			exercise := list[index%len(list)]
			engine.onStep(exercise)
			if !sleepWithContext(runCtx, exercise.Duration) {
				return
			}
		}
	}()
}

// Stop terminates the running cycle and waits for it to exit.
func (engine *Engine) Stop() {
	engine.mu.Lock()
	cancel, done := engine.cancel, engine.done
	engine.cancel, engine.done = nil, nil
	engine.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func sleepWithContext(ctx context.Context, duration time.Duration) bool {
	if duration <= 0 {
		duration = time.Second
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
