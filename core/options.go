package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/conversations"
	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/speechtotext"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

type WakeDetector interface {
	AwaitWake(ctx context.Context) error
}

func WithWakeDetector(detector WakeDetector) OrchestratorOption {
	return func(o *Orchestrator) { o.wake = detector }
}

type Button interface {
	WaitForPress(ctx context.Context) error
}

// WithButton sets the push-to-talk control. The first press starts a
// recording and the next one stops it.
func WithButton(button Button) OrchestratorOption {
	return func(o *Orchestrator) { o.button = button }
}

type AudioGateway interface {
	Capture(ctx context.Context, stop <-chan struct{}, opts ...audio.CaptureOption) (*audio.Utterance, error)
	Play(ctx context.Context, clip *audio.Clip) error
}

func WithAudioGateway(gateway AudioGateway) OrchestratorOption {
	return func(o *Orchestrator) { o.gateway = gateway }
}

type SpeechToText interface {
	Transcribe(ctx context.Context, utterance *audio.Utterance, opts ...speechtotext.TranscriptionOption) (string, error)
}

func WithSpeechToTextClient(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText = client }
}

type TextToSpeech interface {
	Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (*audio.Clip, error)
}

func WithTextToSpeechClient(client TextToSpeech) OrchestratorOption {
	return func(o *Orchestrator) { o.textToSpeech = client }
}

func WithConversationStarter(starter conversations.Starter) OrchestratorOption {
	return func(o *Orchestrator) { o.conversations = starter }
}

// WithWelcomeClip sets the clip played after every wake, before the
// conversation is opened.
func WithWelcomeClip(clip *audio.Clip) OrchestratorOption {
	return func(o *Orchestrator) { o.welcomeClip = clip }
}

// WithStepTimeout bounds each remote step of a turn (transcription,
// conversation and synthesis). Zero disables the bound.
func WithStepTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.stepTimeout = max(timeout, 0) }
}

// WithWakeRetryDelay sets the pause after a failed wake detection before
// listening again.
func WithWakeRetryDelay(delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if delay > 0 {
			o.wakeRetryDelay = delay
		}
	}
}

type OrchestrateOptions struct {
	onEvent             func(event events.Event)
	onStateChanged      func(state State)
	onTranscription     func(transcript string)
	onResponse          func(response string)
	onRecordingProgress func(elapsed time.Duration)
	onFailure           func(step string, err error)
}

type OrchestrateOption func(*OrchestrateOptions)

// WithEventCallback registers a callback receiving every loop event.
//
// Recording progress events are delivered from the progress observer
// goroutine, all others from the loop itself.
func WithEventCallback(callback func(event events.Event)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onEvent = callback }
}

func WithStateCallback(callback func(state State)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onStateChanged = callback }
}

// WithTranscriptionCallback registers a callback for every recognized
// utterance, including empty ones.
func WithTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onTranscription = callback }
}

func WithResponseCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onResponse = callback }
}

func WithRecordingProgressCallback(callback func(elapsed time.Duration)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onRecordingProgress = callback }
}

// WithFailureCallback registers a callback for errors that sent the loop
// back to waiting for the wake phrase.
func WithFailureCallback(callback func(step string, err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) { o.onFailure = callback }
}
