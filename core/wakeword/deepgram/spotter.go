package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"unicode"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-assistant/core/audio"
	deepgramstt "github.com/koscakluka/ema-assistant/core/speechtotext/deepgram"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultListenURL   = "wss://api.deepgram.com/v1/listen"
	DefaultSensitivity = 0.55

	defaultModel    = "nova-3"
	defaultLanguage = "en-US"
)

// Microphone is the capture side of an audio device.
type Microphone interface {
	EncodingInfo() audio.EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

// Spotter listens for a wake phrase by streaming microphone audio to
// Deepgram live transcription. The phrase is matched against final
// transcripts whose confidence reaches the configured sensitivity.
type Spotter struct {
	apiKey string
	phrase []string
	mic    Microphone

	listenURL   string
	model       string
	language    string
	sensitivity float64
	dialer      *websocket.Dialer
}

type SpotterOption func(*Spotter)

// WithSensitivity sets the minimum transcript confidence, between 0 and 1,
// for a phrase match to count as a wake.
func WithSensitivity(sensitivity float64) SpotterOption {
	return func(s *Spotter) {
		if sensitivity > 0 && sensitivity <= 1 {
			s.sensitivity = sensitivity
		}
	}
}

func WithListenURL(listenURL string) SpotterOption {
	return func(s *Spotter) {
		if listenURL != "" {
			s.listenURL = listenURL
		}
	}
}

func WithModel(model string) SpotterOption {
	return func(s *Spotter) {
		if model != "" {
			s.model = model
		}
	}
}

func WithLanguage(language string) SpotterOption {
	return func(s *Spotter) {
		if language != "" {
			s.language = language
		}
	}
}

func WithDialer(dialer *websocket.Dialer) SpotterOption {
	return func(s *Spotter) { s.dialer = dialer }
}

func NewSpotter(apiKey, phrase string, mic Microphone, opts ...SpotterOption) *Spotter {
	s := &Spotter{
		apiKey:      apiKey,
		phrase:      normalizeWords(phrase),
		mic:         mic,
		listenURL:   DefaultListenURL,
		model:       defaultModel,
		language:    defaultLanguage,
		sensitivity: DefaultSensitivity,
		dialer:      websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AwaitWake captures from the microphone until the wake phrase is heard. The
// microphone is released before returning.
func (s *Spotter) AwaitWake(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "await wake phrase")
	defer span.End()

	err := s.awaitWake(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Spotter) awaitWake(ctx context.Context) error {
	if len(s.phrase) == 0 {
		return fmt.Errorf("wake phrase is empty")
	}

	conn, err := s.connect(ctx, s.mic.EncodingInfo())
	if err != nil {
		return err
	}
	defer conn.Close()

	var writeMu sync.Mutex
	writeFailed := make(chan error, 1)
	onAudio := func(chunk []byte) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			select {
			case writeFailed <- err:
			default:
			}
		}
	}

	if err := s.mic.StartCapture(ctx, onAudio); err != nil {
		return &audio.DeviceError{Op: "capture", Err: err}
	}
	defer func() {
		if err := s.mic.StopCapture(); err != nil {
			logger.Warn("failed to stop wake word capture", "error", err)
		}

		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: string(api.TypeCloseStreamResponse)})
	}()

	detected := make(chan error, 1)
	go func() { detected <- s.listen(ctx, conn) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-writeFailed:
		return fmt.Errorf("failed to write to deepgram: %w", err)
	case err := <-detected:
		return err
	}
}

func (s *Spotter) connect(ctx context.Context, encoding audio.EncodingInfo) (*websocket.Conn, error) {
	listenURL, err := url.Parse(s.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	queryParams := listenURL.Query()
	if err := deepgramstt.SetEncodingParams(queryParams, encoding); err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}
	queryParams.Set("model", s.model)
	queryParams.Set("language", s.language)
	queryParams.Set("keyterm", strings.Join(s.phrase, " "))
	queryParams.Set("endpointing", "300")
	listenURL.RawQuery = queryParams.Encode()

	conn, resp, err := s.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + s.apiKey}})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to open socket connection to deepgram (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

// listen reads transcripts until the phrase matches or the socket fails.
func (s *Spotter) listen(ctx context.Context, conn *websocket.Conn) error {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read deepgram websocket message: %w", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		if s.processMessage(ctx, msg) {
			return nil
		}
	}
}

func (s *Spotter) processMessage(ctx context.Context, msg []byte) bool {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
		return false
	}
	if api.TypeResponse(parsedMsg.Type) != api.TypeMessageResponse {
		return false
	}

	var msgResp api.MessageResponse
	if err := json.Unmarshal(msg, &msgResp); err != nil {
		logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
		return false
	}
	if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
		return false
	}

	alternative := msgResp.Channel.Alternatives[0]
	if !containsPhrase(normalizeWords(alternative.Transcript), s.phrase) {
		return false
	}
	if alternative.Confidence < s.sensitivity {
		logger.DebugContext(ctx, "wake phrase below sensitivity",
			"confidence", alternative.Confidence,
			"sensitivity", s.sensitivity)
		return false
	}

	logger.InfoContext(ctx, "wake phrase detected", "confidence", alternative.Confidence)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Float64("wake.confidence", alternative.Confidence))
	return true
}

func normalizeWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(words) < len(phrase) {
		return false
	}
	for start := 0; start+len(phrase) <= len(words); start++ {
		matched := true
		for i, word := range phrase {
			if words[start+i] != word {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
