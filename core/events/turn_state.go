package events

import "time"

const (
	// KindTurnCompleted identifies a turn that played the agent's reply.
	KindTurnCompleted Kind = "turn_state.completed"
	// KindTurnSkipped identifies a turn that ended without a reply to play.
	KindTurnSkipped Kind = "turn_state.skipped"
	// KindTurnFailed identifies a turn that ended its session with an error.
	KindTurnFailed Kind = "turn_state.failed"
)

// TurnCompleted carries how long the turn took from recording start.
type TurnCompleted struct {
	Base
	Duration time.Duration
}

// NewTurnCompleted creates a turn completed event.
func NewTurnCompleted(duration time.Duration) TurnCompleted {
	return TurnCompleted{Base: NewBase(KindTurnCompleted), Duration: duration}
}

// TurnSkipped marks a turn that ended without playing a reply.
type TurnSkipped struct {
	Base
	Reason string
}

// NewTurnSkipped creates a turn skipped event.
func NewTurnSkipped(reason string) TurnSkipped {
	return TurnSkipped{Base: NewBase(KindTurnSkipped), Reason: reason}
}

// TurnFailed carries the failing step and error.
type TurnFailed struct {
	Base
	Step      string
	ErrorKind string
	Err       error
}

// NewTurnFailed creates a turn failed event.
func NewTurnFailed(step, errorKind string, err error) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), Step: step, ErrorKind: errorKind, Err: err}
}
