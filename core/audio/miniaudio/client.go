package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-assistant/core/audio"
)

type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient
}

// NewClient opens the default capture device with the given encoding. The
// playback device is opened lazily for every clip format.
func NewClient(captureEncoding audio.EncodingInfo) (*Client, error) {
	if captureEncoding.IsZero() {
		captureEncoding = audio.GetDefaultEncodingInfo()
	}
	if captureEncoding.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported capture format %q", captureEncoding.Format.Name())
	}

	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("malgo context init failed: %w", err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.captureClient.Init(audioCtx, captureEncoding); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}
	client.playbackClient.audioContext = audioCtx

	return &client, nil
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.captureClient.Start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

func (c *Client) Play(ctx context.Context, pcm []byte, encoding audio.EncodingInfo) error {
	return c.playbackClient.Play(ctx, pcm, encoding)
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.captureClient.encoding
}
