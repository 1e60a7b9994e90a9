package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-assistant/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-assistant/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)

type Client struct {
	bufferSize int
	encoding   audio.EncodingInfo

	mu          sync.Mutex
	captureStop chan struct{}
	captureDone chan struct{}
}

func NewClient(encoding audio.EncodingInfo, bufferSize int) (*Client, error) {
	if encoding.IsZero() {
		encoding = audio.GetDefaultEncodingInfo()
	}
	if encoding.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported capture format %q", encoding.Format.Name())
	}
	encoding.Channels = max(encoding.Channels, 1)

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	return &Client{bufferSize: bufferSize, encoding: encoding}, nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo { return c.encoding }

func (c *Client) StartCapture(ctx context.Context, onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.captureStop != nil {
		return fmt.Errorf("capture already started")
	}

	in := make([]int16, c.bufferSize*c.encoding.Channels)
	stream, err := portaudio.OpenDefaultStream(c.encoding.Channels, 0, float64(c.encoding.SampleRate), c.bufferSize, in)
	if err != nil {
		return fmt.Errorf("failed to open PortAudio input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start PortAudio input stream: %w", err)
	}

	stop, done := make(chan struct{}), make(chan struct{})
	c.captureStop, c.captureDone = stop, done

	go func() {
		defer close(done)
		defer stream.Close()
		defer stream.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			default:
			}

			if err := stream.Read(); err != nil {
				logger.WarnContext(ctx, "failed to read from PortAudio stream", "error", err)
				continue
			}

			audioBuffer := bytes.Buffer{}
			_ = binary.Write(&audioBuffer, binary.LittleEndian, in)
			onAudio(audioBuffer.Bytes())
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	stop, done := c.captureStop, c.captureDone
	c.captureStop, c.captureDone = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

// Play writes pcm to a blocking output stream opened for encoding. It returns
// early when ctx is done.
func (c *Client) Play(ctx context.Context, pcm []byte, encoding audio.EncodingInfo) error {
	if encoding.Format != audio.EncodingLinear16 {
		return fmt.Errorf("unsupported playback format %q", encoding.Format.Name())
	}
	channels := max(encoding.Channels, 1)

	out := make([]int16, c.bufferSize*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(encoding.SampleRate), c.bufferSize, out)
	if err != nil {
		return fmt.Errorf("failed to open PortAudio output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start PortAudio output stream: %w", err)
	}
	defer stream.Stop()

	chunkSize := len(out) * 2
	for offset := 0; offset < len(pcm); offset += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk := pcm[offset:min(offset+chunkSize, len(pcm))]
		clear(out)
		if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, out[:len(chunk)/2]); err != nil {
			return fmt.Errorf("failed to decode pcm chunk: %w", err)
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("failed to write to PortAudio stream: %w", err)
		}
	}

	return nil
}

func (c *Client) Close() {
	_ = c.StopCapture()
	if err := portaudio.Terminate(); err != nil {
		logger.Warn("failed to terminate PortAudio", "error", err)
	}
}
