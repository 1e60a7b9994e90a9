package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	providerName = "deepgram"

	DefaultListenURL = "wss://api.deepgram.com/v1/listen"

	defaultModel    = "nova-3"
	defaultLanguage = "en-US"

	// metadataMessageType is the last message sent before the server closes.
	metadataMessageType api.TypeResponse = "Metadata"

	// audioChunkSize is how much audio goes into one websocket frame.
	audioChunkSize = 8192
)

// TranscriptionClient transcribes a finished utterance by streaming it to
// Deepgram live transcription and collecting the final results.
type TranscriptionClient struct {
	apiKey    string
	listenURL string
	model     string
	language  string
	dialer    *websocket.Dialer
}

type TranscriptionClientOption func(*TranscriptionClient)

func WithListenURL(listenURL string) TranscriptionClientOption {
	return func(c *TranscriptionClient) {
		if listenURL != "" {
			c.listenURL = listenURL
		}
	}
}

func WithModel(model string) TranscriptionClientOption {
	return func(c *TranscriptionClient) {
		if model != "" {
			c.model = model
		}
	}
}

func WithLanguage(language string) TranscriptionClientOption {
	return func(c *TranscriptionClient) {
		if language != "" {
			c.language = language
		}
	}
}

func WithDialer(dialer *websocket.Dialer) TranscriptionClientOption {
	return func(c *TranscriptionClient) { c.dialer = dialer }
}

func NewTranscriptionClient(apiKey string, opts ...TranscriptionClientOption) *TranscriptionClient {
	c := &TranscriptionClient{
		apiKey:    apiKey,
		listenURL: DefaultListenURL,
		model:     defaultModel,
		language:  defaultLanguage,
		dialer:    websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe returns the utterance's final transcript. Utterances without
// audio yield empty text.
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
	conn, err := c.connect(ctx, utterance.Encoding, options.Language)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	hookDone := withContextCancelHook(ctx, func() { _ = conn.Close() })
	defer close(hookDone)

	type result struct {
		transcript string
		err        error
	}
	done := make(chan result, 1)
	go func() {
		transcript, err := c.collect(ctx, conn)
		done <- result{transcript: transcript, err: err}
	}()

	if err := c.stream(ctx, conn, utterance.PCM); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.transcript, res.err
	}
}

func (c *TranscriptionClient) connect(ctx context.Context, encoding audio.EncodingInfo, language string) (*websocket.Conn, error) {
	listenURL, err := url.Parse(c.listenURL)
	if err != nil {
		return nil, &speechtotext.TranscriptionError{Provider: providerName, Message: "invalid listen url", Cause: err}
	}

	queryParams := listenURL.Query()
	if err := SetEncodingParams(queryParams, encoding); err != nil {
		return nil, &speechtotext.TranscriptionError{Provider: providerName, Message: "invalid encoding", Cause: err}
	}
	queryParams.Set("model", c.model)
	queryParams.Set("language", language)
	queryParams.Set("smart_format", "true")
	listenURL.RawQuery = queryParams.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		transcriptionErr := &speechtotext.TranscriptionError{Provider: providerName, Message: "failed to open socket connection", Cause: err}
		if resp != nil {
			transcriptionErr.StatusCode = resp.StatusCode
		}
		return nil, transcriptionErr
	}
	return conn, nil
}

// stream sends the whole utterance followed by a close request, after which
// the server flushes its final results and closes the socket.
func (c *TranscriptionClient) stream(ctx context.Context, conn *websocket.Conn, pcm []byte) error {
	for offset := 0; offset < len(pcm); offset += audioChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := pcm[offset:min(offset+audioChunkSize, len(pcm))]
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return &speechtotext.TranscriptionError{Provider: providerName, Message: "failed to send audio", Cause: err}
		}
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return &speechtotext.TranscriptionError{Provider: providerName, Message: "failed to close stream", Cause: err}
	}
	return nil
}

func (c *TranscriptionClient) collect(ctx context.Context, conn *websocket.Conn) (string, error) {
	var segments []string
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return strings.Join(segments, " "), nil
			}
			return "", &speechtotext.TranscriptionError{Provider: providerName, Message: "connection closed before final results", Cause: err}
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		var parsedMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
			continue
		}

		switch api.TypeResponse(parsedMsg.Type) {
		case api.TypeMessageResponse:
			var msgResp api.MessageResponse
			if err := json.Unmarshal(msg, &msgResp); err != nil {
				return "", &speechtotext.TranscriptionError{
					Provider: providerName,
					Message:  "error unmarshalling JSON",
					Cause:    fmt.Errorf("%w: %w", speechtotext.ErrMalformedResponse, err),
				}
			}
			if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
				continue
			}
			if transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript); transcript != "" {
				segments = append(segments, transcript)
			}

		case metadataMessageType:
			return strings.Join(segments, " "), nil
		}
	}
}
