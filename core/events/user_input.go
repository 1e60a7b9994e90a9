package events

import "time"

const (
	// KindUserRecordingStarted identifies the start of an utterance recording.
	KindUserRecordingStarted Kind = "user_input.recording_started"
	// KindUserRecordingProgress identifies periodic elapsed recording time.
	KindUserRecordingProgress Kind = "user_input.recording_progress"
	// KindUserRecordingStopped identifies the end of an utterance recording.
	KindUserRecordingStopped Kind = "user_input.recording_stopped"
	// KindUserTranscriptFinal identifies the transcript of an utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
)

// UserRecordingStarted marks the start of an utterance recording.
type UserRecordingStarted struct{ Base }

// NewUserRecordingStarted creates a recording started event.
func NewUserRecordingStarted() UserRecordingStarted {
	return UserRecordingStarted{Base: NewBase(KindUserRecordingStarted)}
}

// UserRecordingProgress carries the elapsed time of the running recording.
type UserRecordingProgress struct {
	Base
	Elapsed time.Duration
}

// NewUserRecordingProgress creates a recording progress event.
func NewUserRecordingProgress(elapsed time.Duration) UserRecordingProgress {
	return UserRecordingProgress{Base: NewBase(KindUserRecordingProgress), Elapsed: elapsed}
}

// UserRecordingStopped carries the length of the finished recording.
type UserRecordingStopped struct {
	Base
	Duration time.Duration
	Bytes    int
}

// NewUserRecordingStopped creates a recording stopped event.
func NewUserRecordingStopped(duration time.Duration, bytes int) UserRecordingStopped {
	return UserRecordingStopped{Base: NewBase(KindUserRecordingStopped), Duration: duration, Bytes: bytes}
}

// UserTranscriptFinal carries the recognized text of an utterance. An empty
// transcript means nothing was recognized.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a user transcript final event.
func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}
