package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type deviceStub struct {
	startErr error
	stopErr  error
	playErr  error

	capture func(onAudio func([]byte))

	mu        sync.Mutex
	played    [][]byte
	encodings []EncodingInfo
	stopped   atomic.Int32
	onPlay    func()
}

func (d *deviceStub) EncodingInfo() EncodingInfo { return GetDefaultEncodingInfo() }

func (d *deviceStub) StartCapture(_ context.Context, onAudio func([]byte)) error {
	if d.startErr != nil {
		return d.startErr
	}
	if d.capture != nil {
		d.capture(onAudio)
	}
	return nil
}

func (d *deviceStub) StopCapture() error {
	d.stopped.Add(1)
	return d.stopErr
}

func (d *deviceStub) Play(ctx context.Context, pcm []byte, encoding EncodingInfo) error {
	if d.onPlay != nil {
		d.onPlay()
	}
	d.mu.Lock()
	d.played = append(d.played, pcm)
	d.encodings = append(d.encodings, encoding)
	d.mu.Unlock()
	return d.playErr
}

func TestCaptureRecordsUntilStopSignal(t *testing.T) {
	device := &deviceStub{capture: func(onAudio func([]byte)) {
		onAudio([]byte{1, 2})
		onAudio([]byte{3, 4})
	}}
	gateway := NewGateway(device)

	stop := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(stop)
	}()

	utterance, err := gateway.Capture(context.Background(), stop)
	if err != nil {
		t.Fatalf("expected capture to succeed, got %v", err)
	}
	if !bytes.Equal(utterance.PCM, []byte{1, 2, 3, 4}) {
		t.Fatalf("expected captured pcm [1 2 3 4], got %v", utterance.PCM)
	}
	if utterance.Duration < 20*time.Millisecond {
		t.Fatalf("expected duration of at least 20ms, got %v", utterance.Duration)
	}
	if device.stopped.Load() != 1 {
		t.Fatalf("expected device to be stopped once, got %d", device.stopped.Load())
	}
	if gateway.State() != GatewayIdle {
		t.Fatalf("expected gateway to be idle after capture, got %s", gateway.State())
	}
}

func TestCaptureReportsProgressWhileRecording(t *testing.T) {
	gateway := NewGateway(&deviceStub{}, WithProgressInterval(5*time.Millisecond))

	var (
		mu      sync.Mutex
		reports []time.Duration
	)
	stop := make(chan struct{})
	go func() {
		time.Sleep(40 * time.Millisecond)
		close(stop)
	}()

	if _, err := gateway.Capture(context.Background(), stop, WithProgressCallback(func(elapsed time.Duration) {
		mu.Lock()
		reports = append(reports, elapsed)
		mu.Unlock()
	})); err != nil {
		t.Fatalf("expected capture to succeed, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reports) == 0 {
		t.Fatalf("expected at least one progress report")
	}
	for i := 1; i < len(reports); i++ {
		if reports[i] < reports[i-1] {
			t.Fatalf("expected non-decreasing progress, got %v", reports)
		}
	}
}

func TestCaptureWrapsDeviceFailures(t *testing.T) {
	gateway := NewGateway(&deviceStub{startErr: errors.New("no microphone")})

	_, err := gateway.Capture(context.Background(), make(chan struct{}))
	var deviceErr *DeviceError
	if !errors.As(err, &deviceErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if deviceErr.Op != "capture" {
		t.Fatalf("expected capture op, got %q", deviceErr.Op)
	}
}

func TestCaptureStopsOnContextCancellation(t *testing.T) {
	device := &deviceStub{}
	gateway := NewGateway(device)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := gateway.Capture(ctx, make(chan struct{})); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if device.stopped.Load() != 1 {
		t.Fatalf("expected device to be stopped on cancellation")
	}
}

func TestPlayRejectsConcurrentUse(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	device := &deviceStub{onPlay: func() {
		close(started)
		<-release
	}}
	gateway := NewGateway(device)

	done := make(chan error, 1)
	go func() {
		done <- gateway.Play(context.Background(), NewRawClip([]byte{0, 0}, GetDefaultEncodingInfo()))
	}()
	<-started

	if gateway.State() != GatewayPlaying {
		t.Fatalf("expected gateway to be playing, got %s", gateway.State())
	}
	_, err := gateway.Capture(context.Background(), make(chan struct{}))
	if !errors.Is(err, ErrGatewayBusy) {
		t.Fatalf("expected ErrGatewayBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("expected play to succeed, got %v", err)
	}
}

func TestPlayDecodesWAVClips(t *testing.T) {
	device := &deviceStub{}
	gateway := NewGateway(device)

	encoding := EncodingInfo{SampleRate: 24000, Channels: 1, Format: EncodingLinear16}
	if err := gateway.Play(context.Background(), NewWAVClip(EncodeWAV([]byte{5, 6, 7, 8}, encoding))); err != nil {
		t.Fatalf("expected play to succeed, got %v", err)
	}

	if len(device.played) != 1 || !bytes.Equal(device.played[0], []byte{5, 6, 7, 8}) {
		t.Fatalf("expected decoded pcm to be played once, got %v", device.played)
	}
	if device.encodings[0] != encoding {
		t.Fatalf("expected encoding %+v, got %+v", encoding, device.encodings[0])
	}
}

func TestPlayThroughClipsDirRemovesFile(t *testing.T) {
	dir := t.TempDir()
	device := &deviceStub{}
	gateway := NewGateway(device, WithClipsDir(dir))

	if err := gateway.Play(context.Background(), NewRawClip([]byte{1, 1}, GetDefaultEncodingInfo())); err != nil {
		t.Fatalf("expected play to succeed, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("expected clips dir to exist, got %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected clip file to be removed after playback, found %d entries", len(entries))
	}
	if len(device.played) != 1 || !bytes.Equal(device.played[0], []byte{1, 1}) {
		t.Fatalf("expected clip to be played from disk, got %v", device.played)
	}
}

func TestPlayWrapsDeviceFailures(t *testing.T) {
	gateway := NewGateway(&deviceStub{playErr: errors.New("speaker unplugged")})

	err := gateway.Play(context.Background(), NewRawClip(nil, GetDefaultEncodingInfo()))
	var deviceErr *DeviceError
	if !errors.As(err, &deviceErr) || deviceErr.Op != "play" {
		t.Fatalf("expected play DeviceError, got %v", err)
	}
}
