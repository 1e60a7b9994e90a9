package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultProgressInterval = 500 * time.Millisecond

var ErrGatewayBusy = errors.New("gateway is already recording or playing")

// Device is the hardware boundary used by the [Gateway].
type Device interface {
	// EncodingInfo describes the audio delivered to the capture callback.
	EncodingInfo() EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
	// Play blocks until the samples have been played or ctx is done.
	Play(ctx context.Context, pcm []byte, encoding EncodingInfo) error
}

type GatewayState int32

const (
	GatewayIdle GatewayState = iota
	GatewayRecording
	GatewayPlaying
)

func (s GatewayState) String() string {
	switch s {
	case GatewayIdle:
		return "idle"
	case GatewayRecording:
		return "recording"
	case GatewayPlaying:
		return "playing"
	}
	return "unknown"
}

// Gateway records user utterances bounded by a stop signal and plays
// synthesized clips. It never records and plays at the same time.
type Gateway struct {
	device Device

	progressInterval time.Duration
	clipsDir         string

	busy  sync.Mutex
	state atomic.Int32
}

type GatewayOption func(*Gateway)

// WithProgressInterval sets how often capture progress is reported.
func WithProgressInterval(interval time.Duration) GatewayOption {
	return func(g *Gateway) {
		if interval > 0 {
			g.progressInterval = interval
		}
	}
}

// WithClipsDir makes the gateway write every played clip to dir first, play
// it back from disk and delete it afterwards.
func WithClipsDir(dir string) GatewayOption {
	return func(g *Gateway) { g.clipsDir = dir }
}

func NewGateway(device Device, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		device:           device,
		progressInterval: defaultProgressInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) State() GatewayState { return GatewayState(g.state.Load()) }

type CaptureOptions struct {
	ProgressCallback func(elapsed time.Duration)
}

type CaptureOption func(*CaptureOptions)

// WithProgressCallback registers an observer for elapsed recording time.
//
// The callback runs on its own goroutine and is advisory only.
func WithProgressCallback(callback func(elapsed time.Duration)) CaptureOption {
	return func(o *CaptureOptions) { o.ProgressCallback = callback }
}

// Capture starts recording immediately and stops when stop is closed (or
// receives a value). The returned utterance lasts as long as the recording.
func (g *Gateway) Capture(ctx context.Context, stop <-chan struct{}, opts ...CaptureOption) (*Utterance, error) {
	options := CaptureOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if !g.busy.TryLock() {
		return nil, &DeviceError{Op: "capture", Err: ErrGatewayBusy}
	}
	defer g.busy.Unlock()

	g.state.Store(int32(GatewayRecording))
	defer g.state.Store(int32(GatewayIdle))

	var (
		mu  sync.Mutex
		pcm []byte
	)
	onAudio := func(audio []byte) {
		mu.Lock()
		pcm = append(pcm, audio...)
		mu.Unlock()
	}

	start := time.Now()
	if err := g.device.StartCapture(ctx, onAudio); err != nil {
		return nil, &DeviceError{Op: "capture", Err: err}
	}

	observerDone := make(chan struct{})
	var observer sync.WaitGroup
	if options.ProgressCallback != nil {
		observer.Add(1)
		go func() {
			defer observer.Done()
			g.observeProgress(start, observerDone, options.ProgressCallback)
		}()
	}

	var cancelled error
	select {
	case <-stop:
	case <-ctx.Done():
		cancelled = ctx.Err()
	}
	elapsed := time.Since(start)
	close(observerDone)
	observer.Wait()

	if err := g.device.StopCapture(); err != nil && cancelled == nil {
		return nil, &DeviceError{Op: "capture", Err: err}
	}
	if cancelled != nil {
		return nil, cancelled
	}

	mu.Lock()
	defer mu.Unlock()
	return &Utterance{
		PCM:      pcm,
		Encoding: g.device.EncodingInfo(),
		Duration: elapsed,
	}, nil
}

func (g *Gateway) observeProgress(start time.Time, done <-chan struct{}, callback func(time.Duration)) {
	ticker := time.NewTicker(g.progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			callback(time.Since(start))
		}
	}
}

// Play blocks until clip has been played.
func (g *Gateway) Play(ctx context.Context, clip *Clip) error {
	if !g.busy.TryLock() {
		return &DeviceError{Op: "play", Err: ErrGatewayBusy}
	}
	defer g.busy.Unlock()

	g.state.Store(int32(GatewayPlaying))
	defer g.state.Store(int32(GatewayIdle))

	if g.clipsDir != "" {
		stored, err := g.roundTripThroughDisk(clip)
		if err != nil {
			return err
		}
		clip = stored
	}

	pcm, encoding, err := clip.PCM()
	if err != nil {
		return fmt.Errorf("decode clip: %w", err)
	}

	if err := g.device.Play(ctx, pcm, encoding); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &DeviceError{Op: "play", Err: err}
	}
	return nil
}

func (g *Gateway) roundTripThroughDisk(clip *Clip) (*Clip, error) {
	if clip == nil {
		return nil, fmt.Errorf("nil clip")
	}
	if err := os.MkdirAll(g.clipsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create clips dir: %w", err)
	}

	data := clip.Data
	if clip.Container != ContainerWAV {
		pcm, encoding, err := clip.PCM()
		if err != nil {
			return nil, fmt.Errorf("decode clip: %w", err)
		}
		data = EncodeWAV(pcm, encoding)
	}

	path := filepath.Join(g.clipsDir, uuid.NewString()+"."+ContainerWAV)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write clip: %w", err)
	}
	defer os.Remove(path)

	return LoadClip(path)
}
