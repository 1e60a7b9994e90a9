package speechtotext

type TranscriptionOptions struct {
	// Language overrides the recognition language configured on the client.
	Language string
	// TranscriptionCallback is called with the recognised text before it is
	// returned.
	TranscriptionCallback func(transcript string)
}

type TranscriptionOption func(*TranscriptionOptions)

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}
