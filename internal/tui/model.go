// Package tui renders the conversation loop status in the terminal and maps
// keys to the push-to-talk button and a manual wake.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/muesli/reflow/wordwrap"
)

const defaultWidth = 80

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stateStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Faint(true)
	replyStyle   = lipgloss.NewStyle().PaddingLeft(2)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

// Actions are invoked from key presses.
type Actions struct {
	Press func()
	Wake  func()
	Quit  func()
}

// StateMsg carries a loop state transition.
type StateMsg struct{ State orchestration.State }

// EventMsg carries a loop event.
type EventMsg struct{ Event events.Event }

type Model struct {
	actions Actions
	spinner spinner.Model
	width   int

	state      orchestration.State
	activity   string
	recording  time.Duration
	transcript string
	reply      string
	lastError  string
}

func NewModel(actions Actions) *Model {
	return &Model{
		actions: actions,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		width:   defaultWidth,
		state:   orchestration.StateAwaitingWake,
	}
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case StateMsg:
		m.state = msg.State
		if msg.State == orchestration.StateAwaitingWake {
			m.activity = ""
		}
	case EventMsg:
		m.handleEvent(msg.Event)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.actions.Quit != nil {
			m.actions.Quit()
		}
		return m, tea.Quit
	case " ", "enter":
		if m.actions.Press != nil {
			m.actions.Press()
		}
	case "w":
		if m.actions.Wake != nil {
			m.actions.Wake()
		}
	}
	return m, nil
}

func (m *Model) handleEvent(event events.Event) {
	switch event := event.(type) {
	case events.WakeDetected:
		m.activity = "wake phrase heard"
		m.lastError = ""
	case events.SessionStarted:
		m.activity = "connected to " + event.ConversationID
	case events.SessionFailed:
		m.lastError = fmt.Sprintf("%s failed (%s): %v", event.Step, event.ErrorKind, event.Err)
	case events.UserRecordingStarted:
		m.activity = "recording"
		m.recording = 0
	case events.UserRecordingProgress:
		m.recording = event.Elapsed
	case events.UserRecordingStopped:
		m.activity = "transcribing"
		m.recording = event.Duration
	case events.UserTranscriptFinal:
		m.transcript = event.Transcript
		m.reply = ""
		m.activity = "waiting for reply"
	case events.AssistantResponseFinal:
		m.reply = event.Response
		m.activity = "synthesizing"
	case events.AssistantPlaybackStarted:
		m.activity = "speaking"
		if event.Welcome {
			m.activity = "playing welcome"
		}
	case events.TurnCompleted:
		m.activity = ""
	case events.TurnSkipped:
		m.activity = "skipped: " + event.Reason
	case events.TurnFailed:
		m.lastError = fmt.Sprintf("%s failed (%s): %v", event.Step, event.ErrorKind, event.Err)
	}
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ema assistant"))
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("state "))
	b.WriteString(stateStyle.Render(m.state.String()))
	if m.activity != "" {
		b.WriteString("  " + m.spinner.View() + " " + m.activity)
		if m.activity == "recording" {
			b.WriteString(fmt.Sprintf(" %.1fs", m.recording.Seconds()))
		}
	}
	b.WriteString("\n\n")

	if m.transcript != "" {
		b.WriteString(labelStyle.Render("you"))
		b.WriteString("\n")
		b.WriteString(replyStyle.Render(m.wrap(m.transcript)))
		b.WriteString("\n")
	}
	if m.reply != "" {
		b.WriteString(labelStyle.Render("assistant"))
		b.WriteString("\n")
		b.WriteString(replyStyle.Render(m.wrap(m.reply)))
		b.WriteString("\n")
	}
	if m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.wrap(m.lastError)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help()))
	return b.String()
}

func (m *Model) help() string {
	switch m.state {
	case orchestration.StateAwaitingWake:
		return "w: wake • q: quit"
	case orchestration.StateTurn:
		return "space: start/stop recording • q: quit"
	}
	return "q: quit"
}

func (m *Model) wrap(text string) string {
	return wordwrap.String(text, max(m.width-4, 20))
}
