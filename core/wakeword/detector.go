package wakeword

import "context"

// Detector blocks until the wake phrase is heard.
type Detector interface {
	AwaitWake(ctx context.Context) error
}

// Manual is a detector fired programmatically, e.g. from a key press.
type Manual struct {
	wake chan struct{}
}

func NewManual() *Manual {
	return &Manual{wake: make(chan struct{}, 1)}
}

// Trigger wakes the next AwaitWake call. Triggers arriving while one is
// already pending are dropped.
func (m *Manual) Trigger() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manual) AwaitWake(ctx context.Context) error {
	select {
	case <-m.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FirstOf returns a detector that wakes as soon as any of detectors does.
// The first failure ends the wait as well, so callers can re-arm every
// detector. The others are cancelled and have returned by the time it does.
func FirstOf(detectors ...Detector) Detector {
	if len(detectors) == 1 {
		return detectors[0]
	}
	return firstOf(detectors)
}

type firstOf []Detector

func (f firstOf) AwaitWake(ctx context.Context) error {
	if len(f) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	detectCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan error, len(f))
	for _, detector := range f {
		go func() { results <- detector.AwaitWake(detectCtx) }()
	}

	err := <-results
	cancel()
	waitFor(results, len(f)-1)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// waitFor lets cancelled detectors release their devices before the caller
// reuses them.
func waitFor(results <-chan error, n int) {
	for range n {
		<-results
	}
}
