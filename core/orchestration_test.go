package orchestration

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/conversations"
	"github.com/koscakluka/ema-assistant/core/conversations/directline"
	"github.com/koscakluka/ema-assistant/core/credentials"
	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/speechtotext"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
	"github.com/koscakluka/ema-assistant/core/wakeword"
)

// scriptedButton is pressed immediately for the first limit waits and then
// blocks until cancelled.
type scriptedButton struct {
	limit   int32
	presses atomic.Int32
}

func (b *scriptedButton) WaitForPress(ctx context.Context) error {
	if b.presses.Add(1) <= b.limit {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

type gatewayStub struct {
	utteranceDuration time.Duration

	mu     sync.Mutex
	played []*audio.Clip
	playErr error
}

func (g *gatewayStub) Capture(ctx context.Context, stop <-chan struct{}, _ ...audio.CaptureOption) (*audio.Utterance, error) {
	select {
	case <-stop:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	encoding := audio.GetDefaultEncodingInfo()
	pcm := make([]byte, int(g.utteranceDuration.Seconds())*encoding.SampleRate*encoding.FrameSize())
	return &audio.Utterance{PCM: pcm, Encoding: encoding, Duration: g.utteranceDuration}, nil
}

func (g *gatewayStub) Play(_ context.Context, clip *audio.Clip) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.played = append(g.played, clip)
	return g.playErr
}

func (g *gatewayStub) plays() []*audio.Clip {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*audio.Clip(nil), g.played...)
}

type sttStub struct {
	calls atomic.Int32
	fn    func(call int32, utterance *audio.Utterance) (string, error)
}

func (s *sttStub) Transcribe(_ context.Context, utterance *audio.Utterance, _ ...speechtotext.TranscriptionOption) (string, error) {
	return s.fn(s.calls.Add(1), utterance)
}

type ttsStub struct {
	clip  *audio.Clip
	texts []string
}

func (s *ttsStub) Synthesize(_ context.Context, text string, _ ...texttospeech.SynthesisOption) (*audio.Clip, error) {
	s.texts = append(s.texts, text)
	return s.clip, nil
}

type conversationStub struct {
	id    string
	reply string
	sent  []string
}

func (c *conversationStub) ID() string { return c.id }

func (c *conversationStub) Converse(_ context.Context, text string) (string, error) {
	c.sent = append(c.sent, text)
	return c.reply, nil
}

type starterStub struct {
	started atomic.Int32
	err     error
	reply   string
}

func (s *starterStub) StartConversation(context.Context) (conversations.Conversation, error) {
	n := s.started.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &conversationStub{id: "conv-" + string(rune('0'+n)), reply: s.reply}, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
	notify chan events.Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{notify: make(chan events.Event, 256)}
}

func (r *eventRecorder) record(event events.Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	r.notify <- event
}

func (r *eventRecorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event.Kind() == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) await(t *testing.T, kind events.Kind) events.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event := <-r.notify:
			if event.Kind() == kind {
				return event
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
			return nil
		}
	}
}

func runInBackground(ctx context.Context, o *Orchestrator, opts ...OrchestrateOption) <-chan error {
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, opts...) }()
	return done
}

func TestRunServesTurnEndToEnd(t *testing.T) {
	var (
		mu         sync.Mutex
		watermarks []string
		sentText   string
	)
	bot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/conversations":
			_, _ = w.Write([]byte(`{"conversationId":"conv-1"}`))
		case r.Method == http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			sentText = string(body)
			_, _ = w.Write([]byte(`{"id":"conv-1|0003"}`))
		default:
			watermarks = append(watermarks, r.URL.Query().Get("watermark"))
			_, _ = w.Write([]byte(`{"activities":[{"type":"message","text":"It is 3 PM"}]}`))
		}
	}))
	defer bot.Close()

	wake := wakeword.NewManual()
	gateway := &gatewayStub{utteranceDuration: 2 * time.Second}
	reply := audio.NewRawClip([]byte{1, 2, 3, 4}, audio.GetDefaultEncodingInfo())
	tts := &ttsStub{clip: reply}
	stt := &sttStub{fn: func(_ int32, utterance *audio.Utterance) (string, error) {
		if utterance.Duration != 2*time.Second {
			t.Errorf("expected a 2 second utterance, got %s", utterance.Duration)
		}
		return "what time is it", nil
	}}

	o := NewOrchestrator(
		WithWakeDetector(wake),
		WithButton(&scriptedButton{limit: 2}),
		WithAudioGateway(gateway),
		WithSpeechToTextClient(stt),
		WithTextToSpeechClient(tts),
		WithConversationStarter(directline.NewClient("secret",
			directline.WithBaseURL(bot.URL),
			directline.WithHTTPClient(bot.Client()),
			directline.WithUserID("user-1"))),
	)

	recorder := newEventRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runInBackground(ctx, o, WithEventCallback(recorder.record))

	wake.Trigger()
	started := recorder.await(t, events.KindSessionStarted).(events.SessionStarted)
	if started.ConversationID != "conv-1" {
		t.Fatalf("expected conversation conv-1, got %q", started.ConversationID)
	}
	recorder.await(t, events.KindTurnCompleted)

	plays := gateway.plays()
	if len(plays) != 1 || plays[0] != reply {
		t.Fatalf("expected the synthesized clip to be played exactly once, got %d plays", len(plays))
	}
	if len(tts.texts) != 1 || tts.texts[0] != "It is 3 PM" {
		t.Fatalf("expected reply to be synthesized, got %v", tts.texts)
	}

	mu.Lock()
	if len(watermarks) != 1 || watermarks[0] != "3" {
		t.Fatalf("expected a single poll at watermark 3, got %v", watermarks)
	}
	if !strings.Contains(sentText, `"text":"what time is it"`) {
		t.Fatalf("expected transcript to be sent, got %s", sentText)
	}
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	if state := o.State(); state != StateTurn {
		t.Fatalf("expected loop to stay in turn, got %s", state)
	}
	if n := recorder.count(events.KindSessionEnded); n != 0 {
		t.Fatalf("expected session to stay open, got %d session ends", n)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected Run to return context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for Run to stop")
	}
}

func TestAuthErrorReturnsToAwaitingWake(t *testing.T) {
	wake := wakeword.NewManual()
	gateway := &gatewayStub{utteranceDuration: time.Second}
	starter := &starterStub{reply: "hello"}
	stt := &sttStub{fn: func(call int32, _ *audio.Utterance) (string, error) {
		if call == 1 {
			return "", &credentials.AuthError{StatusCode: http.StatusUnauthorized, Message: "invalid subscription key"}
		}
		return "hi", nil
	}}

	o := NewOrchestrator(
		WithWakeDetector(wake),
		WithButton(&scriptedButton{limit: 4}),
		WithAudioGateway(gateway),
		WithSpeechToTextClient(stt),
		WithTextToSpeechClient(&ttsStub{clip: audio.NewRawClip(nil, audio.EncodingInfo{})}),
		WithConversationStarter(starter),
	)

	var (
		failedStep string
		failedErr  error
		states     []State
	)
	recorder := newEventRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runInBackground(ctx, o,
		WithEventCallback(recorder.record),
		WithFailureCallback(func(step string, err error) { failedStep, failedErr = step, err }),
		WithStateCallback(func(state State) { states = append(states, state) }),
	)

	wake.Trigger()
	failed := recorder.await(t, events.KindTurnFailed).(events.TurnFailed)
	if failed.Step != StepTranscribe || failed.ErrorKind != "auth" {
		t.Fatalf("expected auth failure while transcribing, got %s/%s", failed.Step, failed.ErrorKind)
	}
	recorder.await(t, events.KindSessionEnded)

	wake.Trigger()
	recorder.await(t, events.KindTurnCompleted)

	if starter.started.Load() != 2 {
		t.Fatalf("expected a fresh session after the failure, got %d sessions", starter.started.Load())
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected Run to end only on cancellation, got %v", err)
	}

	if failedStep != StepTranscribe {
		t.Fatalf("expected failure callback for transcribe, got %q", failedStep)
	}
	if HTTPStatus(failedErr) != http.StatusUnauthorized {
		t.Fatalf("expected failure to carry status 401, got %d", HTTPStatus(failedErr))
	}
	expectedStates := []State{StateAwaitingWake, StateSessionStart, StateTurn, StateAwaitingWake, StateSessionStart, StateTurn}
	if len(states) < len(expectedStates) {
		t.Fatalf("expected states %v, got %v", expectedStates, states)
	}
	for i, state := range expectedStates {
		if states[i] != state {
			t.Fatalf("expected states %v, got %v", expectedStates, states)
		}
	}
}

func TestSessionErrorReturnsToAwaitingWake(t *testing.T) {
	wake := wakeword.NewManual()
	gateway := &gatewayStub{}
	welcome := audio.NewRawClip([]byte{0, 0}, audio.GetDefaultEncodingInfo())
	starter := &starterStub{err: &conversations.SessionError{StatusCode: http.StatusForbidden}}

	o := NewOrchestrator(
		WithWakeDetector(wake),
		WithButton(&scriptedButton{}),
		WithAudioGateway(gateway),
		WithSpeechToTextClient(&sttStub{}),
		WithTextToSpeechClient(&ttsStub{}),
		WithConversationStarter(starter),
		WithWelcomeClip(welcome),
	)

	recorder := newEventRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runInBackground(ctx, o, WithEventCallback(recorder.record))

	wake.Trigger()
	failed := recorder.await(t, events.KindSessionFailed).(events.SessionFailed)
	if failed.Step != StepStartSession || failed.ErrorKind != "session" {
		t.Fatalf("expected session failure, got %s/%s", failed.Step, failed.ErrorKind)
	}

	wake.Trigger()
	recorder.await(t, events.KindSessionFailed)

	if plays := gateway.plays(); len(plays) != 2 || plays[0] != welcome {
		t.Fatalf("expected the welcome clip before every session start, got %d plays", len(plays))
	}
	if n := recorder.count(events.KindSessionStarted); n != 0 {
		t.Fatalf("expected no started sessions, got %d", n)
	}

	cancel()
	<-done
}

// droppingSpotter loses its connection on the first wait, hears the wake
// phrase on the second and stays silent afterwards.
type droppingSpotter struct{ calls atomic.Int32 }

func (d *droppingSpotter) AwaitWake(ctx context.Context) error {
	switch d.calls.Add(1) {
	case 1:
		return errors.New("socket closed")
	case 2:
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestWakeFailureRearmsEveryDetector(t *testing.T) {
	spotter := &droppingSpotter{}
	starter := &starterStub{err: &conversations.SessionError{StatusCode: http.StatusForbidden}}

	o := NewOrchestrator(
		WithWakeDetector(wakeword.FirstOf(spotter, wakeword.NewManual())),
		WithButton(&scriptedButton{}),
		WithAudioGateway(&gatewayStub{}),
		WithSpeechToTextClient(&sttStub{}),
		WithTextToSpeechClient(&ttsStub{}),
		WithConversationStarter(starter),
		WithWakeRetryDelay(10*time.Millisecond),
	)

	recorder := newEventRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runInBackground(ctx, o, WithEventCallback(recorder.record))

	recorder.await(t, events.KindWakeDetected)
	if calls := spotter.calls.Load(); calls < 2 {
		t.Fatalf("expected spotter to be re-armed after failing, got %d calls", calls)
	}

	cancel()
	<-done
}

func TestEmptyTranscriptSkipsConversation(t *testing.T) {
	wake := wakeword.NewManual()
	starter := &starterStub{reply: "unused"}
	tts := &ttsStub{}

	o := NewOrchestrator(
		WithWakeDetector(wake),
		WithButton(&scriptedButton{limit: 2}),
		WithAudioGateway(&gatewayStub{}),
		WithSpeechToTextClient(&sttStub{fn: func(int32, *audio.Utterance) (string, error) { return "", nil }}),
		WithTextToSpeechClient(tts),
		WithConversationStarter(starter),
	)

	recorder := newEventRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runInBackground(ctx, o, WithEventCallback(recorder.record))

	wake.Trigger()
	skipped := recorder.await(t, events.KindTurnSkipped).(events.TurnSkipped)
	if skipped.Reason != "empty transcript" {
		t.Fatalf("expected empty transcript skip, got %q", skipped.Reason)
	}
	if len(tts.texts) != 0 {
		t.Fatalf("expected nothing to be synthesized, got %v", tts.texts)
	}
	if n := recorder.count(events.KindAssistantResponseFinal); n != 0 {
		t.Fatalf("expected no reply events, got %d", n)
	}

	cancel()
	<-done
}

func TestPanickingCollaboratorDoesNotStopLoop(t *testing.T) {
	wake := wakeword.NewManual()
	stt := &sttStub{fn: func(call int32, _ *audio.Utterance) (string, error) {
		if call == 1 {
			panic("decoder exploded")
		}
		return "hi", nil
	}}

	o := NewOrchestrator(
		WithWakeDetector(wake),
		WithButton(&scriptedButton{limit: 4}),
		WithAudioGateway(&gatewayStub{}),
		WithSpeechToTextClient(stt),
		WithTextToSpeechClient(&ttsStub{clip: audio.NewRawClip(nil, audio.EncodingInfo{})}),
		WithConversationStarter(&starterStub{reply: "hello"}),
	)

	recorder := newEventRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runInBackground(ctx, o, WithEventCallback(recorder.record))

	wake.Trigger()
	recorder.await(t, events.KindUserRecordingStopped)
	time.Sleep(20 * time.Millisecond)

	wake.Trigger()
	recorder.await(t, events.KindTurnCompleted)

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected Run to survive the panic, got %v", err)
	}
}

func TestRunRequiresCollaborators(t *testing.T) {
	err := NewOrchestrator(WithWakeDetector(wakeword.NewManual())).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "audio gateway") {
		t.Fatalf("expected missing collaborator error, got %v", err)
	}
}

func TestErrorKind(t *testing.T) {
	testCases := []struct {
		err      error
		expected string
	}{
		{err: &audio.DeviceError{Op: "play", Err: errors.New("no device")}, expected: "device"},
		{err: &stepError{step: StepTranscribe, err: &credentials.AuthError{StatusCode: 401}}, expected: "auth"},
		{err: &speechtotext.TranscriptionError{StatusCode: 400}, expected: "transcription"},
		{err: &texttospeech.SynthesisError{StatusCode: 500}, expected: "synthesis"},
		{err: &conversations.SessionError{}, expected: "session"},
		{err: &conversations.TransportError{Op: "poll"}, expected: "transport"},
		{err: context.DeadlineExceeded, expected: "timeout"},
		{err: errors.New("boom"), expected: "internal"},
	}

	for _, testCase := range testCases {
		if got := ErrorKind(testCase.err); got != testCase.expected {
			t.Fatalf("expected %q for %v, got %q", testCase.expected, testCase.err, got)
		}
	}
}
