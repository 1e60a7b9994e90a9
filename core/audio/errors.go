package audio

import "fmt"

// DeviceError reports that the audio hardware could not be opened or failed
// while recording or playing.
type DeviceError struct {
	// Op is the gateway operation, "capture" or "play".
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %s failed: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
