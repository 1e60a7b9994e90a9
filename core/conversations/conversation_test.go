package conversations

import (
	"errors"
	"testing"
)

func TestJoinMessagesSkipsOtherActivities(t *testing.T) {
	activities := []Activity{
		{Type: ActivityTypeMessage, Text: "Hello "},
		{Type: "typing"},
		{Type: ActivityTypeMessage, Text: "world"},
	}

	if reply := JoinMessages(activities); reply != "Hello world" {
		t.Fatalf("expected %q, got %q", "Hello world", reply)
	}
}

func TestJoinMessagesEmpty(t *testing.T) {
	if reply := JoinMessages(nil); reply != "" {
		t.Fatalf("expected empty reply, got %q", reply)
	}
}

func TestTransportErrorExposesStatus(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&TransportError{Op: "poll", StatusCode: 502, Cause: cause})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T", err)
	}
	if transportErr.HTTPStatus() != 502 {
		t.Fatalf("expected status 502, got %d", transportErr.HTTPStatus())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be unwrapped")
	}
}
