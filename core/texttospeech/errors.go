package texttospeech

import "fmt"

// SynthesisError provides detailed error information from TTS providers.
type SynthesisError struct {
	// Provider is the TTS provider that returned the error.
	Provider string
	// StatusCode is the HTTP status of the synthesis call, 0 when unknown.
	StatusCode int
	// Message is the error message.
	Message string
	// Cause is the underlying error (if any).
	Cause error
}

func (e *SynthesisError) Error() string {
	msg := e.Provider + ": " + e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s [%d]: %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SynthesisError) Unwrap() error { return e.Cause }

func (e *SynthesisError) HTTPStatus() int { return e.StatusCode }
