package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsSessionsAndTurns(t *testing.T) {
	r := NewRecorder()

	for _, event := range []events.Event{
		events.NewWakeDetected(),
		events.NewSessionStarted("conv-1"),
		events.NewUserRecordingStarted(),
		events.NewUserRecordingProgress(500 * time.Millisecond),
		events.NewUserRecordingStopped(1500*time.Millisecond, 48000),
		events.NewUserTranscriptFinal("what time is it"),
		events.NewAssistantResponseFinal("It is 3 PM"),
		events.NewAssistantSpeechSynthesized(time.Second),
		events.NewAssistantPlaybackStarted(false),
		events.NewAssistantPlaybackEnded(false),
		events.NewTurnCompleted(3 * time.Second),
		events.NewUserTranscriptFinal(""),
		events.NewTurnSkipped("empty transcript"),
		events.NewTurnFailed(orchestration.StepConverse, "transport", errors.New("poll failed")),
		events.NewSessionEnded("conv-1"),
		events.NewWakeDetected(),
		events.NewSessionFailed(orchestration.StepStartSession, "auth", errors.New("denied")),
	} {
		r.Record(event)
	}

	if got := testutil.ToFloat64(r.eventsTotal.WithLabelValues("session")); got != 3 {
		t.Fatalf("expected 3 session events, got %v", got)
	}
	if got := testutil.ToFloat64(r.wakesTotal); got != 2 {
		t.Fatalf("expected 2 wakes, got %v", got)
	}
	if got := testutil.ToFloat64(r.sessionsTotal.WithLabelValues("started")); got != 1 {
		t.Fatalf("expected 1 started session, got %v", got)
	}
	if got := testutil.ToFloat64(r.sessionsTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed session, got %v", got)
	}
	if got := testutil.ToFloat64(r.sessionsActive); got != 0 {
		t.Fatalf("expected no active sessions, got %v", got)
	}
	for outcome, want := range map[string]float64{"completed": 1, "skipped": 1, "failed": 1} {
		if got := testutil.ToFloat64(r.turnsTotal.WithLabelValues(outcome)); got != want {
			t.Fatalf("expected %v %s turns, got %v", want, outcome, got)
		}
	}
	if got := testutil.ToFloat64(r.failuresTotal.WithLabelValues(orchestration.StepConverse, "transport")); got != 1 {
		t.Fatalf("expected 1 converse failure, got %v", got)
	}
	if got := testutil.ToFloat64(r.failuresTotal.WithLabelValues(orchestration.StepStartSession, "auth")); got != 1 {
		t.Fatalf("expected 1 start_session failure, got %v", got)
	}
	if got := testutil.ToFloat64(r.lastRecording); got != 1.5 {
		t.Fatalf("expected last recording of 1.5s, got %v", got)
	}
	if got := testutil.ToFloat64(r.recordedBytes); got != 48000 {
		t.Fatalf("expected 48000 recorded bytes, got %v", got)
	}
	if count := testutil.CollectAndCount(r.stepDuration); count == 0 {
		t.Fatalf("expected step duration observations")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.Record(events.NewWakeDetected())

	server := httptest.NewServer(r.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "ema_wakes_total 1") {
		t.Fatalf("expected wake counter in output, got %s", body)
	}

	health, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("expected healthy status, got %d", health.StatusCode)
	}
}
