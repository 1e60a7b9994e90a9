package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/conversations"
	"github.com/koscakluka/ema-assistant/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultWakeRetryDelay = time.Second

var ErrAlreadyRunning = errors.New("orchestrator is already running")

// Orchestrator runs the conversation loop: wait for the wake phrase, open a
// conversation and then serve push-to-talk turns until one fails.
type Orchestrator struct {
	wake          WakeDetector
	button        Button
	gateway       AudioGateway
	speechToText  SpeechToText
	textToSpeech  TextToSpeech
	conversations conversations.Starter

	welcomeClip    *audio.Clip
	stepTimeout    time.Duration
	wakeRetryDelay time.Duration

	running atomic.Bool
	state   atomic.Int32
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{wakeRetryDelay: defaultWakeRetryDelay}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) State() State { return State(o.state.Load()) }

// Run serves wake phrases until ctx is done and then returns ctx.Err().
// Failures inside a session are logged and reported, and the loop goes back
// to waiting for the wake phrase.
//
// Run may only be called once at a time.
func (o *Orchestrator) Run(ctx context.Context, opts ...OrchestrateOption) error {
	if err := o.validate(); err != nil {
		return err
	}
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	options := OrchestrateOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	emit := newCallbackEventEmitter(options)
	setState := func(state State) {
		if State(o.state.Swap(int32(state))) != state && options.onStateChanged != nil {
			options.onStateChanged(state)
		}
	}

	for {
		setState(StateAwaitingWake)
		logger.InfoContext(ctx, "say the wake phrase")

		if err := o.wake.AwaitWake(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.WarnContext(ctx, "wake detection failed",
				"step", StepWake,
				"error", err,
				"error.kind", ErrorKind(err))
			if err := sleepContext(ctx, o.wakeRetryDelay); err != nil {
				return err
			}
			continue
		}
		emit(events.NewWakeDetected())

		session := panicSafeNamedWorker("session", func(ctx context.Context) error {
			return o.runSession(ctx, emit, setState)
		})
		err := session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			o.logFailure(ctx, err)
		}
	}
}

func (o *Orchestrator) validate() error {
	var missing []string
	if o.wake == nil {
		missing = append(missing, "wake detector")
	}
	if o.button == nil {
		missing = append(missing, "button")
	}
	if o.gateway == nil {
		missing = append(missing, "audio gateway")
	}
	if o.speechToText == nil {
		missing = append(missing, "speech-to-text client")
	}
	if o.textToSpeech == nil {
		missing = append(missing, "text-to-speech client")
	}
	if o.conversations == nil {
		missing = append(missing, "conversation starter")
	}
	if len(missing) > 0 {
		return fmt.Errorf("orchestrator is missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (o *Orchestrator) runSession(ctx context.Context, emit eventEmitter, setState func(State)) error {
	setState(StateSessionStart)

	ctx, span := tracer.Start(ctx, "session")
	defer span.End()

	conversation, err := o.startSession(ctx, emit)
	if err != nil {
		emit(events.NewSessionFailed(failedStep(err), ErrorKind(err), err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("conversation.id", conversation.ID()))
	emit(events.NewSessionStarted(conversation.ID()))
	defer emit(events.NewSessionEnded(conversation.ID()))

	setState(StateTurn)
	for {
		if err := o.runTurn(ctx, conversation, emit); err != nil {
			if ctx.Err() == nil {
				emit(events.NewTurnFailed(failedStep(err), ErrorKind(err), err))
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}

func (o *Orchestrator) startSession(ctx context.Context, emit eventEmitter) (conversations.Conversation, error) {
	if o.welcomeClip != nil {
		emit(events.NewAssistantPlaybackStarted(true))
		if err := o.gateway.Play(ctx, o.welcomeClip); err != nil {
			return nil, &stepError{step: StepWelcome, err: err}
		}
		emit(events.NewAssistantPlaybackEnded(true))
	}

	conversation, err := o.conversations.StartConversation(ctx)
	if err != nil {
		return nil, &stepError{step: StepStartSession, err: err}
	}
	return conversation, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, conversation conversations.Conversation, emit eventEmitter) error {
	if drainer, ok := o.button.(interface{ Drain() }); ok {
		drainer.Drain()
	}
	logger.InfoContext(ctx, "press the button to start recording")
	if err := o.button.WaitForPress(ctx); err != nil {
		return &stepError{step: StepAwaitPress, err: err}
	}

	ctx, span := tracer.Start(ctx, "turn")
	defer span.End()
	turnStart := time.Now()

	utterance, err := o.capture(ctx, emit)
	if err != nil {
		return &stepError{step: StepCapture, err: err}
	}

	transcript, err := o.transcribe(ctx, utterance)
	if err != nil {
		return &stepError{step: StepTranscribe, err: err}
	}
	emit(events.NewUserTranscriptFinal(transcript))
	logger.InfoContext(ctx, "user said", "transcript", transcript)
	if strings.TrimSpace(transcript) == "" {
		emit(events.NewTurnSkipped("empty transcript"))
		return nil
	}

	reply, err := o.converse(ctx, conversation, transcript)
	if err != nil {
		return &stepError{step: StepConverse, err: err}
	}
	emit(events.NewAssistantResponseFinal(reply))
	logger.InfoContext(ctx, "assistant replied", "response", reply)
	if strings.TrimSpace(reply) == "" {
		emit(events.NewTurnSkipped("empty reply"))
		return nil
	}

	clip, err := o.synthesize(ctx, reply)
	if err != nil {
		return &stepError{step: StepSynthesize, err: err}
	}
	emit(events.NewAssistantSpeechSynthesized(clip.Duration()))

	emit(events.NewAssistantPlaybackStarted(false))
	if err := o.gateway.Play(ctx, clip); err != nil {
		return &stepError{step: StepPlay, err: err}
	}
	emit(events.NewAssistantPlaybackEnded(false))

	emit(events.NewTurnCompleted(time.Since(turnStart)))
	return nil
}

// capture records until the button is pressed again.
func (o *Orchestrator) capture(ctx context.Context, emit eventEmitter) (*audio.Utterance, error) {
	pressCtx, cancelPress := context.WithCancel(ctx)
	defer cancelPress()

	stop := make(chan struct{})
	go func() {
		if err := o.button.WaitForPress(pressCtx); err == nil {
			close(stop)
		}
	}()

	emit(events.NewUserRecordingStarted())
	utterance, err := o.gateway.Capture(ctx, stop, audio.WithProgressCallback(func(elapsed time.Duration) {
		emit(events.NewUserRecordingProgress(elapsed))
	}))
	if err != nil {
		return nil, err
	}

	emit(events.NewUserRecordingStopped(utterance.Duration, utterance.Len()))
	return utterance, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, utterance *audio.Utterance) (string, error) {
	ctx, cancel := o.withStepTimeout(ctx)
	defer cancel()
	return o.speechToText.Transcribe(ctx, utterance)
}

func (o *Orchestrator) converse(ctx context.Context, conversation conversations.Conversation, text string) (string, error) {
	ctx, cancel := o.withStepTimeout(ctx)
	defer cancel()
	return conversation.Converse(ctx, text)
}

func (o *Orchestrator) synthesize(ctx context.Context, text string) (*audio.Clip, error) {
	ctx, cancel := o.withStepTimeout(ctx)
	defer cancel()
	return o.textToSpeech.Synthesize(ctx, text)
}

func (o *Orchestrator) logFailure(ctx context.Context, err error) {
	attrs := []any{
		"step", failedStep(err),
		"error", err,
		"error.kind", ErrorKind(err),
	}
	if status := HTTPStatus(err); status != 0 {
		attrs = append(attrs, "http.status", status)
	}
	logger.ErrorContext(ctx, "session ended by failure, waiting for wake phrase", attrs...)
}
