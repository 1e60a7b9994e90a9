package speechtotext

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDisplayText is returned when a successful recognition has no
	// display text.
	ErrMissingDisplayText = errors.New("response has no display text")
	// ErrMalformedResponse is returned when the response is not valid JSON.
	ErrMalformedResponse = errors.New("malformed response")
)

// TranscriptionError represents an error during transcription.
type TranscriptionError struct {
	// Provider is the STT provider name.
	Provider string
	// StatusCode is the HTTP status of the recognition call, 0 when unknown.
	StatusCode int
	// Message is a human-readable error message.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

func (e *TranscriptionError) Error() string {
	msg := fmt.Sprintf("%s transcription error: %s", e.Provider, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s transcription error [%d]: %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TranscriptionError) Unwrap() error { return e.Cause }

func (e *TranscriptionError) HTTPStatus() int { return e.StatusCode }
