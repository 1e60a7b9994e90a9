package conversations

import "fmt"

// SessionError reports a conversation that could not be started.
type SessionError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *SessionError) Error() string {
	msg := "failed to start conversation"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SessionError) Unwrap() error { return e.Cause }

func (e *SessionError) HTTPStatus() int { return e.StatusCode }

// TransportError reports a failed or malformed message exchange within an
// open conversation. Op names the exchange step, "send" or "poll".
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("conversation %s failed", e.Op)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Cause }

func (e *TransportError) HTTPStatus() int { return e.StatusCode }
