package events

const (
	// KindSessionStarted identifies a newly opened conversation.
	KindSessionStarted Kind = "session.started"
	// KindSessionFailed identifies a conversation that could not be opened.
	KindSessionFailed Kind = "session.failed"
	// KindSessionEnded identifies the loop abandoning a conversation.
	KindSessionEnded Kind = "session.ended"
)

// SessionStarted carries the identity of the opened conversation.
type SessionStarted struct {
	Base
	ConversationID string
}

// NewSessionStarted creates a session started event.
func NewSessionStarted(conversationID string) SessionStarted {
	return SessionStarted{Base: NewBase(KindSessionStarted), ConversationID: conversationID}
}

// SessionFailed carries the error that prevented a conversation from opening.
// Step names where it failed and ErrorKind classifies the error.
type SessionFailed struct {
	Base
	Step      string
	ErrorKind string
	Err       error
}

// NewSessionFailed creates a session failed event.
func NewSessionFailed(step, errorKind string, err error) SessionFailed {
	return SessionFailed{Base: NewBase(KindSessionFailed), Step: step, ErrorKind: errorKind, Err: err}
}

// SessionEnded marks the loop going back to waiting for the wake phrase.
type SessionEnded struct {
	Base
	ConversationID string
}

// NewSessionEnded creates a session ended event.
func NewSessionEnded(conversationID string) SessionEnded {
	return SessionEnded{Base: NewBase(KindSessionEnded), ConversationID: conversationID}
}
