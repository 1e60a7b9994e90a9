package texttospeech

const (
	DefaultLanguage     = "en-US"
	DefaultVoiceName    = "en-US-JessaRUS"
	DefaultVoiceGender  = "Female"
	DefaultOutputFormat = "riff-16khz-16bit-mono-pcm"
)

// Voice selects the speaker used to render speech markup.
type Voice struct {
	Name     string
	Language string
	Gender   string
}

func DefaultVoice() Voice {
	return Voice{Name: DefaultVoiceName, Language: DefaultLanguage, Gender: DefaultVoiceGender}
}

type SynthesisOptions struct {
	Voice Voice
	// OutputFormat is the encoding requested from the service.
	OutputFormat string
	// SpeechCallback is called with the synthesized audio before it is
	// returned.
	SpeechCallback func(audio []byte)
}

type SynthesisOption func(*SynthesisOptions)

func WithVoice(voice Voice) SynthesisOption {
	return func(o *SynthesisOptions) {
		if voice.Name == "" {
			return
		}
		o.Voice = voice
	}
}

func WithOutputFormat(format string) SynthesisOption {
	return func(o *SynthesisOptions) {
		if format != "" {
			o.OutputFormat = format
		}
	}
}

func WithSpeechCallback(callback func(audio []byte)) SynthesisOption {
	return func(o *SynthesisOptions) { o.SpeechCallback = callback }
}
