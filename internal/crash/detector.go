package crash

import "time"

// State is the crash detector's view of a temp dir
type State int

const (
	// None means no core, or a core whose crash was already handled
	None State = iota
	// DetectedUnconfirmed means a core exists but the confirmation delay has not passed
	DetectedUnconfirmed
	// Confirmed means a core sat unhandled for longer than the confirmation delay
	Confirmed
)

func (s State) String() string {
	switch s {
	case DetectedUnconfirmed:
		return "DETECTED_UNCONFIRMED"
	case Confirmed:
		return "CONFIRMED"
	default:
		return "NONE"
	}
}

// Detector polls a worker temp dir for a core dump. A core appearing does
// not prove the worker is stuck, it may still be writing its own report, so
// a crash is only confirmed once the core stays unhandled past the delay.
type Detector struct {
	delay      time.Duration
	now        func() time.Time
	dir        string
	detectedAt time.Time
}

// NewDetector creates a Detector with the given confirmation delay. A nil
// now uses time.Now.
func NewDetector(delay time.Duration, now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	return &Detector{delay: delay, now: now}
}

// Poll checks tempDir and returns the current crash state
func (d *Detector) Poll(tempDir string) State {
	if tempDir != d.dir {
		d.dir = tempDir
		d.detectedAt = time.Time{}
	}
	if !CoreExists(tempDir) {
		d.detectedAt = time.Time{}
		return None
	}

	now := d.now()
	if d.detectedAt.IsZero() {
		d.detectedAt = now
	}
	if HandledMarkerExists(tempDir) {
		return None
	}
	if now.Sub(d.detectedAt) > d.delay {
		return Confirmed
	}
	return DetectedUnconfirmed
}

// DetectedAt returns when the current core was first seen, zero if none
func (d *Detector) DetectedAt() time.Time {
	return d.detectedAt
}
