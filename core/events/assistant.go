package events

import "time"

const (
	// KindAssistantResponseFinal identifies the complete reply of the agent.
	KindAssistantResponseFinal Kind = "assistant_response.final"
	// KindAssistantSpeechSynthesized identifies a reply rendered to audio.
	KindAssistantSpeechSynthesized Kind = "assistant_speech.synthesized"
	// KindAssistantPlaybackStarted identifies playback start of a clip.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackEnded identifies playback completion of a clip.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantResponseFinal carries the agent's reply text.
type AssistantResponseFinal struct {
	Base
	Response string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(response string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Response: response}
}

// AssistantSpeechSynthesized carries the length of the synthesized reply.
type AssistantSpeechSynthesized struct {
	Base
	Duration time.Duration
}

// NewAssistantSpeechSynthesized creates an assistant speech synthesized event.
func NewAssistantSpeechSynthesized(duration time.Duration) AssistantSpeechSynthesized {
	return AssistantSpeechSynthesized{Base: NewBase(KindAssistantSpeechSynthesized), Duration: duration}
}

// AssistantPlaybackStarted marks the start of clip playback. Welcome is set
// for the session welcome clip.
type AssistantPlaybackStarted struct {
	Base
	Welcome bool
}

// NewAssistantPlaybackStarted creates an assistant playback started event.
func NewAssistantPlaybackStarted(welcome bool) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted), Welcome: welcome}
}

// AssistantPlaybackEnded marks the end of clip playback.
type AssistantPlaybackEnded struct {
	Base
	Welcome bool
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(welcome bool) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), Welcome: welcome}
}
