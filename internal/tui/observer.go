package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/events"
)

// Observer forwards loop callbacks to a running program as messages.
type Observer struct {
	program *tea.Program
}

func NewObserver(program *tea.Program) *Observer {
	return &Observer{program: program}
}

func (o *Observer) OnEvent(event events.Event) {
	if o.program != nil {
		o.program.Send(EventMsg{Event: event})
	}
}

func (o *Observer) OnState(state orchestration.State) {
	if o.program != nil {
		o.program.Send(StateMsg{State: state})
	}
}
