package orchestration

type State int32

const (
	StateAwaitingWake State = iota
	StateSessionStart
	StateTurn
)

func (s State) String() string {
	switch s {
	case StateAwaitingWake:
		return "awaiting_wake"
	case StateSessionStart:
		return "session_start"
	case StateTurn:
		return "turn"
	}
	return "unknown"
}

// Steps reported with failures.
const (
	StepWake         = "wake"
	StepWelcome      = "welcome"
	StepStartSession = "start_session"
	StepAwaitPress   = "await_press"
	StepCapture      = "capture"
	StepTranscribe   = "transcribe"
	StepConverse     = "converse"
	StepSynthesize   = "synthesize"
	StepPlay         = "play"
)
