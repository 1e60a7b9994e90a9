package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-assistant/core/audio"
	"github.com/koscakluka/ema-assistant/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	providerName = "deepgram"

	DefaultSpeakURL = "wss://api.deepgram.com/v1/speak"
)

// SpeechClient renders reply text to raw PCM over the Deepgram speak
// websocket. One connection is opened per reply.
type SpeechClient struct {
	apiKey   string
	voice    Voice
	speakURL string
	encoding audio.EncodingInfo
	dialer   *websocket.Dialer
}

type SpeechClientOption func(*SpeechClient)

func WithSpeakURL(speakURL string) SpeechClientOption {
	return func(c *SpeechClient) {
		if speakURL != "" {
			c.speakURL = speakURL
		}
	}
}

func WithEncoding(encoding audio.EncodingInfo) SpeechClientOption {
	return func(c *SpeechClient) {
		if !encoding.IsZero() {
			c.encoding = encoding
		}
	}
}

func WithDialer(dialer *websocket.Dialer) SpeechClientOption {
	return func(c *SpeechClient) { c.dialer = dialer }
}

func NewSpeechClient(apiKey string, voice Voice, opts ...SpeechClientOption) (*SpeechClient, error) {
	if voice == "" {
		voice = DefaultVoice
	}
	if !slices.Contains(GetAvailableVoices(), voice) {
		return nil, fmt.Errorf("invalid voice %q", voice)
	}

	c := &SpeechClient{
		apiKey:   apiKey,
		voice:    voice,
		speakURL: DefaultSpeakURL,
		encoding: audio.GetDefaultEncodingInfo(),
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type websocketMessage struct {
	Type string `json:"type"`
}

type speakMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

// Synthesize speaks text and returns the audio once the server confirms it
// has flushed everything.
func (c *SpeechClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (*audio.Clip, error) {
	options := texttospeech.SynthesisOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()
	span.SetAttributes(
		attribute.Int("request.text_length", len(text)),
		attribute.String("request.voice", string(c.voice)),
	)

	pcm, err := c.synthesize(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if options.SpeechCallback != nil {
		options.SpeechCallback(pcm)
	}
	return audio.NewRawClip(pcm, c.encoding), nil
}

func (c *SpeechClient) synthesize(ctx context.Context, text string) ([]byte, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	hookDone := withContextCancelHook(ctx, func() { _ = conn.Close() })
	defer close(hookDone)

	var writeMu sync.Mutex
	send := func(msg any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	if err := send(speakMessage{Type: "Speak", Text: text}); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &texttospeech.SynthesisError{Provider: providerName, Message: "failed to send text", Cause: err}
	}
	if err := send(flushMsg); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &texttospeech.SynthesisError{Provider: providerName, Message: "failed to flush", Cause: err}
	}

	type result struct {
		pcm []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		pcm, err := c.collect(ctx, conn)
		done <- result{pcm: pcm, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if err := send(closeMsg); err != nil {
			logger.DebugContext(ctx, "failed to close speak stream", "error", err)
		}
		return res.pcm, nil
	}
}

func (c *SpeechClient) connect(ctx context.Context) (*websocket.Conn, error) {
	speakURL, err := url.Parse(c.speakURL)
	if err != nil {
		return nil, &texttospeech.SynthesisError{Provider: providerName, Message: "invalid speak url", Cause: err}
	}

	urlValues := speakURL.Query()
	urlValues.Set("encoding", c.encoding.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(c.encoding.SampleRate))
	urlValues.Set("model", string(c.voice))
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		synthesisErr := &texttospeech.SynthesisError{Provider: providerName, Message: "failed to open socket connection", Cause: err}
		if resp != nil {
			synthesisErr.StatusCode = resp.StatusCode
		}
		return nil, synthesisErr
	}
	return conn, nil
}

// collect gathers audio frames until the server reports the flush.
func (c *SpeechClient) collect(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	var pcm bytes.Buffer
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return nil, &texttospeech.SynthesisError{Provider: providerName, Message: "connection closed before flush", Cause: err}
		}

		switch msgType {
		case websocket.BinaryMessage:
			pcm.Write(msg)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				return pcm.Bytes(), nil
			case "Error":
				return nil, &texttospeech.SynthesisError{Provider: providerName, Message: parsedMsg.Description}
			}
		}
	}
}
