package format

import "time"

// DefaultWindow is how often the meter recomputes its rate.
const DefaultWindow = 250 * time.Millisecond

// SpeedMeter computes current transfer throughput over a short sliding
// window, so the displayed speed tracks the link right now instead of a
// cumulative average that flattens out over a long download.
//
// Not safe for concurrent use; each transfer owns its meter.
type SpeedMeter struct {
	window      time.Duration
	windowStart time.Time
	windowBytes int64
	rate        float64 // bytes/sec from the last completed window

	now func() time.Time // overridable in tests
}

// NewSpeedMeter returns a meter recomputing every DefaultWindow.
func NewSpeedMeter() *SpeedMeter {
	return &SpeedMeter{window: DefaultWindow, now: time.Now}
}

// Add records n transferred bytes and recomputes the rate when the current
// window has elapsed.
func (m *SpeedMeter) Add(n int64) {
	t := m.now()
	if m.windowStart.IsZero() {
		m.windowStart = t
	}
	m.windowBytes += n

	elapsed := t.Sub(m.windowStart)
	if elapsed >= m.window {
		m.rate = float64(m.windowBytes) / elapsed.Seconds()
		m.windowStart = t
		m.windowBytes = 0
	}
}

// Rate returns the most recent throughput in bytes/sec, zero until the first
// window completes.
func (m *SpeedMeter) Rate() float64 {
	return m.rate
}
