package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-assistant/core/audio"
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig
	encoding     audio.EncodingInfo

	leftoverAudio []byte
	marks         []playbackMark

	mu      sync.Mutex
	audioMu sync.Mutex
}

type playbackMark struct {
	position int
	callback func()
}

// Play queues pcm on a device opened for encoding and blocks until it has
// been handed to the hardware or ctx is done.
func (c *playbackClient) Play(ctx context.Context, pcm []byte, encoding audio.EncodingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureDevice(encoding); err != nil {
		return err
	}
	if !c.device.IsStarted() {
		if err := c.device.Start(); err != nil {
			return fmt.Errorf("failed to start playback device: %w", err)
		}
	}
	defer func() {
		if err := c.device.Stop(); err != nil {
			logger.Warn("failed to stop playback device", "error", err)
		}
		c.clearBuffer()
	}()

	played := make(chan struct{})
	c.audioMu.Lock()
	c.leftoverAudio = append(c.leftoverAudio, pcm...)
	c.marks = append(c.marks, playbackMark{
		position: len(c.leftoverAudio),
		callback: func() { close(played) },
	})
	c.audioMu.Unlock()

	select {
	case <-played:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *playbackClient) ensureDevice(encoding audio.EncodingInfo) error {
	if encoding.Format != audio.EncodingLinear16 {
		return fmt.Errorf("unsupported playback format %q", encoding.Format.Name())
	}
	if c.device != nil && c.encoding == encoding {
		return nil
	}
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	channels := max(encoding.Channels, 1)
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = uint32(encoding.SampleRate)
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = uint32(encoding.SampleRate / 10) // ~100ms of audio
	c.config.Periods = 4

	device, err := malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	c.device = device
	c.encoding = encoding
	return nil
}

func (c *playbackClient) clearBuffer() {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.leftoverAudio = nil
	c.marks = nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.audioMu.Lock()
		n := copy(pOutput[:need], c.leftoverAudio)
		c.leftoverAudio = c.leftoverAudio[n:]
		passed := c.advanceMarks(n)
		c.audioMu.Unlock()

		clear(pOutput[n:need])
		for _, mark := range passed {
			mark.callback()
		}
	}
}

// advanceMarks moves every mark n bytes closer and returns the ones reached.
func (c *playbackClient) advanceMarks(n int) []playbackMark {
	passedMarks := 0
	for i := range c.marks {
		c.marks[i].position -= n
		if c.marks[i].position <= 0 {
			passedMarks++
		}
	}
	if passedMarks == 0 {
		return nil
	}

	passed := c.marks[:passedMarks]
	c.marks = c.marks[passedMarks:]
	return passed
}
