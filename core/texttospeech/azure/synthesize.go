package azure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/credentials"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	providerName = "azure"

	outputFormatHeader = "X-Microsoft-OutputFormat"
	userAgent          = "ema-assistant"

	// maxClipSize bounds a single synthesized clip.
	maxClipSize = 32 << 20
)

// SpeechClient renders reply text to a playable clip with one REST call.
type SpeechClient struct {
	endpoint string
	tokens   credentials.TokenSource
	client   *http.Client

	voice        texttospeech.Voice
	outputFormat string
}

type SpeechClientOption func(*SpeechClient)

func WithHTTPClient(client *http.Client) SpeechClientOption {
	return func(c *SpeechClient) { c.client = client }
}

func WithVoice(voice texttospeech.Voice) SpeechClientOption {
	return func(c *SpeechClient) {
		if voice.Name != "" {
			c.voice = voice
		}
	}
}

func WithOutputFormat(format string) SpeechClientOption {
	return func(c *SpeechClient) {
		if format != "" {
			c.outputFormat = format
		}
	}
}

func NewSpeechClient(endpoint string, tokens credentials.TokenSource, opts ...SpeechClientOption) *SpeechClient {
	c := &SpeechClient{
		endpoint:     endpoint,
		tokens:       tokens,
		client:       http.DefaultClient,
		voice:        texttospeech.DefaultVoice(),
		outputFormat: texttospeech.DefaultOutputFormat,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize returns text spoken by the configured voice. Empty text still
// produces a well-formed request.
func (c *SpeechClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (*audio.Clip, error) {
	options := texttospeech.SynthesisOptions{Voice: c.voice, OutputFormat: c.outputFormat}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(
		attribute.Int("request.text_length", len(text)),
		attribute.String("request.voice", options.Voice.Name),
		attribute.String("request.output_format", options.OutputFormat),
	)

	clip, err := c.synthesize(ctx, text, options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if options.SpeechCallback != nil {
		options.SpeechCallback(clip.Data)
	}
	return clip, nil
}

func (c *SpeechClient) synthesize(ctx context.Context, text string, options texttospeech.SynthesisOptions) (*audio.Clip, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire token for synthesis: %w", err)
	}

	document := texttospeech.BuildSSML(text, options.Voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(document))
	if err != nil {
		return nil, &texttospeech.SynthesisError{Provider: providerName, Message: "error creating HTTP request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set(outputFormatHeader, options.OutputFormat)
	req.Header.Set("User-Agent", userAgent)
	credentials.SetBearer(req, token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &texttospeech.SynthesisError{Provider: providerName, Message: "error sending request", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		credentials.Invalidate(c.tokens)
	}
	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &texttospeech.SynthesisError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("non-OK HTTP status: %s %s", resp.Status, strings.TrimSpace(string(errorBody))),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxClipSize))
	if err != nil {
		return nil, &texttospeech.SynthesisError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    "error reading audio",
			Cause:      err,
		}
	}
	logger.DebugContext(ctx, "synthesized speech", "bytes", len(data), "format", options.OutputFormat)

	clip, err := clipForFormat(options.OutputFormat, data)
	if err != nil {
		return nil, &texttospeech.SynthesisError{Provider: providerName, StatusCode: resp.StatusCode, Message: "unplayable output", Cause: err}
	}
	return clip, nil
}

// clipForFormat wraps data according to an output format name such as
// "riff-16khz-16bit-mono-pcm" or "raw-24khz-16bit-mono-pcm".
func clipForFormat(format string, data []byte) (*audio.Clip, error) {
	parts := strings.Split(format, "-")
	if len(parts) != 5 || parts[2] != "16bit" || parts[4] != "pcm" {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}

	switch parts[0] {
	case "riff":
		return audio.NewWAVClip(data), nil
	case "raw":
		sampleRate, err := strconv.Atoi(strings.TrimSuffix(parts[1], "khz"))
		if err != nil {
			return nil, fmt.Errorf("invalid sample rate in output format %q: %w", format, err)
		}

		channels := 1
		if parts[3] == "stereo" {
			channels = 2
		}
		return audio.NewRawClip(data, audio.EncodingInfo{
			SampleRate: sampleRate * 1000,
			Channels:   channels,
			Format:     audio.EncodingLinear16,
		}), nil
	}

	return nil, fmt.Errorf("unsupported output container in format %q", format)
}
