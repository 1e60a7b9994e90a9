package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/conversations"
	"github.com/koscakluka/ema-assistant/core/credentials"
	"github.com/koscakluka/ema-assistant/core/speechtotext"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
)

// stepError ties an error to the loop step it came from.
type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string { return e.step + ": " + e.err.Error() }

func (e *stepError) Unwrap() error { return e.err }

func failedStep(err error) string {
	var stepErr *stepError
	if errors.As(err, &stepErr) {
		return stepErr.step
	}
	return "session"
}

// ErrorKind classifies err into the loop's error taxonomy.
func ErrorKind(err error) string {
	var (
		authErr          *credentials.AuthError
		deviceErr        *audio.DeviceError
		transcriptionErr *speechtotext.TranscriptionError
		synthesisErr     *texttospeech.SynthesisError
		sessionErr       *conversations.SessionError
		transportErr     *conversations.TransportError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &deviceErr):
		return "device"
	case errors.As(err, &transcriptionErr):
		return "transcription"
	case errors.As(err, &synthesisErr):
		return "synthesis"
	case errors.As(err, &sessionErr):
		return "session"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "internal"
}

// HTTPStatus returns the HTTP status carried by err, or 0.
func HTTPStatus(err error) int {
	var statusErr interface{ HTTPStatus() int }
	if errors.As(err, &statusErr) {
		return statusErr.HTTPStatus()
	}
	return 0
}

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}

func (o *Orchestrator) withStepTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.stepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.stepTimeout)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
