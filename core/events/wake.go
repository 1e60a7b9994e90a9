package events

// KindWakeDetected identifies a wake phrase detection.
const KindWakeDetected Kind = "wake.detected"

// WakeDetected marks the wake phrase being heard while the loop was idle.
type WakeDetected struct{ Base }

// NewWakeDetected creates a wake detected event.
func NewWakeDetected() WakeDetected {
	return WakeDetected{Base: NewBase(KindWakeDetected)}
}
