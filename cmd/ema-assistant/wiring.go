package main

import (
	"fmt"
	"net/http"
	"time"

	orchestration "github.com/koscakluka/ema-assistant/core"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/audio/miniaudio"
	"github.com/koscakluka/ema-assistant/core/audio/portaudio"
	"github.com/koscakluka/ema-assistant/core/conversations/directline"
	"github.com/koscakluka/ema-assistant/core/credentials"
	azurestt "github.com/koscakluka/ema-assistant/core/speechtotext/azure"
	deepgramstt "github.com/koscakluka/ema-assistant/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
	azuretts "github.com/koscakluka/ema-assistant/core/texttospeech/azure"
	deepgramtts "github.com/koscakluka/ema-assistant/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-assistant/core/wakeword"
	deepgramwake "github.com/koscakluka/ema-assistant/core/wakeword/deepgram"
	"github.com/koscakluka/ema-assistant/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// audioDevice is a hardware backend owned by the process.
type audioDevice interface {
	audio.Device
	Close()
}

func newAudioDevice(cfg *config.Config) (audioDevice, error) {
	encoding := audio.GetDefaultEncodingInfo()
	encoding.SampleRate = cfg.Audio.SampleRate

	if cfg.Audio.Backend == config.BackendPortaudio {
		device, err := portaudio.NewClient(encoding, cfg.Audio.BufferSize)
		if err != nil {
			return nil, err
		}
		return device, nil
	}

	device, err := miniaudio.NewClient(encoding)
	if err != nil {
		return nil, err
	}
	return device, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		),
	}
}

func newTokenSource(cfg *config.Config, client *http.Client) credentials.TokenSource {
	issuer := credentials.NewIssuer(cfg.Speech.TokenURL, cfg.Speech.Key, client)
	return credentials.NewCachedSource(issuer, cfg.TokenTTL())
}

func newSpeechToText(cfg *config.Config, tokens credentials.TokenSource, client *http.Client) (orchestration.SpeechToText, error) {
	switch cfg.Speech.STTProvider {
	case config.ProviderAzure:
		return azurestt.NewTranscriptionClient(cfg.Speech.STTURL, tokens,
			azurestt.WithHTTPClient(client),
			azurestt.WithLanguage(cfg.Speech.Language),
		), nil
	case config.ProviderDeepgram:
		return deepgramstt.NewTranscriptionClient(cfg.Speech.Deepgram.APIKey,
			deepgramstt.WithModel(cfg.Speech.Deepgram.Model),
			deepgramstt.WithLanguage(cfg.Speech.Language),
		), nil
	}
	return nil, fmt.Errorf("unknown speech-to-text provider %q", cfg.Speech.STTProvider)
}

func newTextToSpeech(cfg *config.Config, tokens credentials.TokenSource, client *http.Client, encoding audio.EncodingInfo) (orchestration.TextToSpeech, error) {
	switch cfg.Speech.TTSProvider {
	case config.ProviderAzure:
		return azuretts.NewSpeechClient(cfg.Speech.TTSURL, tokens,
			azuretts.WithHTTPClient(client),
			azuretts.WithVoice(texttospeech.Voice{
				Name:     cfg.Speech.Voice.Name,
				Language: cfg.Speech.Language,
				Gender:   cfg.Speech.Voice.Gender,
			}),
			azuretts.WithOutputFormat(cfg.Speech.OutputFormat),
		), nil
	case config.ProviderDeepgram:
		voice := deepgramtts.DefaultVoice
		if cfg.Speech.Deepgram.Voice != "" {
			voice = deepgramtts.Voice(cfg.Speech.Deepgram.Voice)
		}
		client, err := deepgramtts.NewSpeechClient(cfg.Speech.Deepgram.APIKey, voice,
			deepgramtts.WithEncoding(encoding),
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown text-to-speech provider %q", cfg.Speech.TTSProvider)
}

func newConversationStarter(cfg *config.Config, client *http.Client) *directline.Client {
	opts := []directline.ClientOption{
		directline.WithBaseURL(cfg.Bot.BaseURL),
		directline.WithHTTPClient(client),
		directline.WithPollRetries(cfg.Bot.PollRetries, cfg.Bot.PollInterval.Std()),
	}
	if cfg.Bot.UserID != "" {
		opts = append(opts, directline.WithUserID(cfg.Bot.UserID))
	}
	return directline.NewClient(cfg.Bot.Secret, opts...)
}

// newWakeDetector listens for the wake phrase when a Deepgram key is
// configured. The manual detector always works alongside it.
func newWakeDetector(cfg *config.Config, mic deepgramwake.Microphone, manual *wakeword.Manual) wakeword.Detector {
	if cfg.Speech.Deepgram.APIKey == "" || cfg.Wake.Phrase == "" {
		return manual
	}
	spotter := deepgramwake.NewSpotter(cfg.Speech.Deepgram.APIKey, cfg.Wake.Phrase, mic,
		deepgramwake.WithSensitivity(cfg.WakeSensitivity()),
		deepgramwake.WithLanguage(cfg.Speech.Language),
	)
	return wakeword.FirstOf(spotter, manual)
}
