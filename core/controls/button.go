package controls

import "context"

// Button is an edge-triggered push control.
type Button interface {
	// WaitForPress blocks until the next press or until ctx is done.
	WaitForPress(ctx context.Context) error
}

// ChannelButton is a button pressed in software.
type ChannelButton struct {
	presses chan struct{}
}

func NewChannelButton() *ChannelButton {
	return &ChannelButton{presses: make(chan struct{}, 1)}
}

// Press registers a press. A press made while another is still pending is
// dropped.
func (b *ChannelButton) Press() {
	select {
	case b.presses <- struct{}{}:
	default:
	}
}

func (b *ChannelButton) WaitForPress(ctx context.Context) error {
	select {
	case <-b.presses:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain drops a pending press, if any.
func (b *ChannelButton) Drain() {
	select {
	case <-b.presses:
	default:
	}
}
