// Package console presents breaks as text lines for headless use.
package console

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"respite/internal/core/model"
)

// progressStep limits progress output to every tenth of a break.
const progressStep = 10

// Presenter writes prelude and break notices to an io.Writer.
type Presenter struct {
	mu      sync.Mutex
	out     io.Writer
	logger  *zap.Logger
	current model.BreakID
	active  bool
	percent int
}

// New creates a presenter writing to out.
func New(out io.Writer, logger *zap.Logger) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{out: out, logger: logger.Named("console"), percent: -1}
}

func (presenter *Presenter) CreatePreludeWindow(id model.BreakID) {
	presenter.mu.Lock()
	defer presenter.mu.Unlock()
	presenter.current, presenter.active, presenter.percent = id, true, -1
	presenter.logger.Debug("prelude shown", zap.Stringer("break", id))
	presenter.printf("%s is due\n", id.Label())
}

func (presenter *Presenter) CreateBreakWindow(id model.BreakID, flags model.BreakFlags) {
	presenter.mu.Lock()
	defer presenter.mu.Unlock()
	presenter.current, presenter.active, presenter.percent = id, true, -1
	presenter.logger.Debug("break shown",
		zap.Stringer("break", id),
		zap.Bool("postponable", flags.Has(model.FlagPostponable)),
		zap.Bool("skippable", flags.Has(model.FlagSkippable)))

	switch {
	case flags.Has(model.FlagNatural):
		presenter.printf("%s: natural break, keep resting\n", id.Label())
	case flags.Has(model.FlagUserInitiated):
		presenter.printf("%s started on request\n", id.Label())
	default:
		presenter.printf("%s: time to step away from the keyboard\n", id.Label())
	}
}

func (presenter *Presenter) SetBreakProgress(value, max int) {
	presenter.mu.Lock()
	defer presenter.mu.Unlock()
	if !presenter.active || max <= 0 {
		return
	}
	percent := min(value*100/max, 100) / progressStep * progressStep
	if percent == presenter.percent {
		return
	}
	presenter.percent = percent
	presenter.printf("%s: %d%% (%d/%ds)\n", presenter.current.Label(), percent, value, max)
}

func (presenter *Presenter) SetPreludeStage(stage model.PreludeStage) {
	presenter.mu.Lock()
	defer presenter.mu.Unlock()
	if !presenter.active {
		return
	}
	switch stage {
	case model.PreludeWarn:
		presenter.printf("%s: please stop typing\n", presenter.current.Label())
	case model.PreludeAlert:
		presenter.printf("%s: take a break now\n", presenter.current.Label())
	}
}

func (presenter *Presenter) HideBreakWindow() {
	presenter.mu.Lock()
	defer presenter.mu.Unlock()
	if !presenter.active {
		return
	}
	presenter.active = false
	presenter.printf("%s over\n", presenter.current.Label())
}

func (presenter *Presenter) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(presenter.out, format, args...); err != nil {
		presenter.logger.Warn("console write failed", zap.Error(err))
	}
}
