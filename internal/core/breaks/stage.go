package breaks

import (
	"errors"
	"time"

	"respite/internal/core/model"
)

var (
	// ErrNotPostponable is returned when the current break may not be postponed.
	ErrNotPostponable = errors.New("break is not postponable")
	// ErrNotSkippable is returned when the break may not be skipped.
	ErrNotSkippable = errors.New("break is not skippable")
	// ErrNotVisible is returned for window actions while no window is shown.
	ErrNotVisible = errors.New("break is not in progress")
)

// Stage is the position of a break in its cycle.
type Stage int

const (
	StageIdle Stage = iota
	StagePrelude
	StageTaking
	StagePostponed
)

func (stage Stage) String() string {
	switch stage {
	case StagePrelude:
		return "prelude"
	case StageTaking:
		return "taking"
	case StagePostponed:
		return "postponed"
	default:
		return "idle"
	}
}

// ParseStage maps a stage name back to the stage.
func ParseStage(name string) (Stage, bool) {
	for _, stage := range []Stage{StageIdle, StagePrelude, StageTaking, StagePostponed} {
		if stage.String() == name {
			return stage, true
		}
	}
	return StageIdle, false
}

// Outcome names what caused a transition.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomePrelude
	OutcomeStarted
	OutcomeTaken
	OutcomeSkipped
	OutcomePostponed
	OutcomeForced
	OutcomeAutoReset
	OutcomeInterrupted
	OutcomeReset
)

func (outcome Outcome) String() string {
	switch outcome {
	case OutcomePrelude:
		return "prelude"
	case OutcomeStarted:
		return "started"
	case OutcomeTaken:
		return "taken"
	case OutcomeSkipped:
		return "skipped"
	case OutcomePostponed:
		return "postponed"
	case OutcomeForced:
		return "forced"
	case OutcomeAutoReset:
		return "auto_reset"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeReset:
		return "reset"
	default:
		return "none"
	}
}

// Transition describes one stage change of a machine.
type Transition struct {
	Break   model.BreakID
	From    Stage
	To      Stage
	Outcome Outcome
	Flags   model.BreakFlags
	// Natural is set for breaks the user took on their own: natural
	// break windows and idle credit earned while the break was due.
	Natural bool
}

// Tick is the input of one heartbeat for a single machine.
type Tick struct {
	Now    time.Time
	Delta  time.Duration
	Active bool
	Frozen bool
	// Start grants permission to show a prelude or break window.
	Start bool
}

// Snapshot is the persistent part of a machine's state.
type Snapshot struct {
	Break         model.BreakID
	Stage         Stage
	Enabled       bool
	Limit         time.Duration
	ElapsedActive time.Duration
	ElapsedIdle   time.Duration
	PreludeCount  int
}
