package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/credentials"
	"github.com/koscakluka/ema-assistant/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	providerName = "azure"

	defaultLanguage = "en-US"
	resultFormat    = "simple"

	// streamChunkSize matches the chunk size audio is uploaded in.
	streamChunkSize = 1024
)

const (
	recognitionSuccess               = "Success"
	recognitionNoMatch               = "NoMatch"
	recognitionInitialSilenceTimeout = "InitialSilenceTimeout"
	recognitionBabbleTimeout         = "BabbleTimeout"
)

// TranscriptionClient turns recorded utterances into text with a single
// REST recognition call per utterance.
type TranscriptionClient struct {
	endpoint string
	language string
	tokens   credentials.TokenSource
	client   *http.Client
}

type TranscriptionClientOption func(*TranscriptionClient)

func WithHTTPClient(client *http.Client) TranscriptionClientOption {
	return func(c *TranscriptionClient) { c.client = client }
}

func WithLanguage(language string) TranscriptionClientOption {
	return func(c *TranscriptionClient) { c.language = language }
}

func NewTranscriptionClient(endpoint string, tokens credentials.TokenSource, opts ...TranscriptionClientOption) *TranscriptionClient {
	c := &TranscriptionClient{
		endpoint: endpoint,
		language: defaultLanguage,
		tokens:   tokens,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type recognitionResponse struct {
	RecognitionStatus string  `json:"RecognitionStatus"`
	DisplayText       *string `json:"DisplayText"`
	Offset            int64   `json:"Offset"`
	Duration          int64   `json:"Duration"`
}

// Transcribe uploads the utterance and returns its display text. Utterances
// without audio, and recognitions that heard nothing, yield empty text.
func (c *TranscriptionClient) Transcribe(ctx context.Context, utterance *audio.Utterance, opts ...speechtotext.TranscriptionOption) (string, error) {
	options := speechtotext.TranscriptionOptions{Language: c.language}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "transcribe utterance")
	defer span.End()
	span.SetAttributes(
		attribute.Int("request.audio_bytes", utterance.Len()),
		attribute.String("request.language", options.Language),
	)

	if utterance.Len() == 0 {
		logger.DebugContext(ctx, "skipping recognition of empty utterance")
		return "", nil
	}

	transcript, err := c.transcribe(ctx, utterance, options)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if options.TranscriptionCallback != nil {
		options.TranscriptionCallback(transcript)
	}
	return transcript, nil
}

func (c *TranscriptionClient) transcribe(ctx context.Context, utterance *audio.Utterance, options speechtotext.TranscriptionOptions) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire token for transcription: %w", err)
	}

	requestURL, err := c.requestURL(options.Language)
	if err != nil {
		return "", &speechtotext.TranscriptionError{Provider: providerName, Message: "invalid endpoint", Cause: err}
	}

	// Wrapping the reader hides its length so the body is sent chunked.
	body := io.NopCloser(&chunkedReader{r: utterance.Reader(), size: streamChunkSize})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, body)
	if err != nil {
		return "", &speechtotext.TranscriptionError{Provider: providerName, Message: "error creating HTTP request", Cause: err}
	}
	req.ContentLength = -1
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", fmt.Sprintf("audio/wav; codecs=audio/pcm; samplerate=%d", utterance.Encoding.SampleRate))
	credentials.SetBearer(req, token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &speechtotext.TranscriptionError{Provider: providerName, Message: "error sending request", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		credentials.Invalidate(c.tokens)
	}
	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &speechtotext.TranscriptionError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("non-OK HTTP status: %s %s", resp.Status, string(errorBody)),
		}
	}

	var result recognitionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &speechtotext.TranscriptionError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    "error unmarshalling JSON",
			Cause:      fmt.Errorf("%w: %w", speechtotext.ErrMalformedResponse, err),
		}
	}

	switch result.RecognitionStatus {
	case recognitionNoMatch, recognitionInitialSilenceTimeout, recognitionBabbleTimeout:
		logger.InfoContext(ctx, "nothing recognised", "status", result.RecognitionStatus)
		return "", nil
	case recognitionSuccess, "":
	default:
		return "", &speechtotext.TranscriptionError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    "recognition status " + result.RecognitionStatus,
		}
	}

	if result.DisplayText == nil {
		return "", &speechtotext.TranscriptionError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    "recognition returned no text",
			Cause:      speechtotext.ErrMissingDisplayText,
		}
	}

	return *result.DisplayText, nil
}

func (c *TranscriptionClient) requestURL(language string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", err
	}
	query := u.Query()
	if language != "" {
		query.Set("language", language)
	}
	if query.Get("format") == "" {
		query.Set("format", resultFormat)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// chunkedReader never returns more than size bytes per Read.
type chunkedReader struct {
	r    io.Reader
	size int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(p) > c.size {
		p = p[:c.size]
	}
	return c.r.Read(p)
}
