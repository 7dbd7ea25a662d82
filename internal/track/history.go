package track

import (
	"sort"
	"time"
)

// Position is one time-stamped location sample
type Position struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Time      time.Time `json:"time"`
}

// ValidCoordinates reports whether lat/lon lie inside the WGS84 ranges.
// AIS "not available" values (91, 181) fall outside.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// PositionHistory is a time-ordered sequence of samples with a retention
// window. It is not safe for concurrent use; Track guards it.
type PositionHistory struct {
	retention time.Duration
	samples   []Position
}

// NewPositionHistory creates a history. A retention of zero keeps everything.
func NewPositionHistory(retention time.Duration) PositionHistory {
	return PositionHistory{retention: retention}
}

// Retention returns the retention window
func (h *PositionHistory) Retention() time.Duration {
	return h.retention
}

// Add inserts a sample in time order. A sample with the same timestamp as an
// existing one replaces it.
func (h *PositionHistory) Add(p Position) {
	n := len(h.samples)

	// Fast path: in-order append
	if n == 0 || p.Time.After(h.samples[n-1].Time) {
		h.samples = append(h.samples, p)
		return
	}

	i := sort.Search(n, func(i int) bool {
		return !h.samples[i].Time.Before(p.Time)
	})
	if i < n && h.samples[i].Time.Equal(p.Time) {
		h.samples[i] = p
		return
	}

	h.samples = append(h.samples, Position{})
	copy(h.samples[i+1:], h.samples[i:])
	h.samples[i] = p
}

// Reset discards all samples
func (h *PositionHistory) Reset() {
	h.samples = h.samples[:0]
}

// Prune drops samples older than the retention window and returns how many
// were removed
func (h *PositionHistory) Prune(now time.Time) int {
	if h.retention <= 0 || len(h.samples) == 0 {
		return 0
	}

	cutoff := now.Add(-h.retention)
	i := sort.Search(len(h.samples), func(i int) bool {
		return !h.samples[i].Time.Before(cutoff)
	})
	if i == 0 {
		return 0
	}

	h.samples = append(h.samples[:0], h.samples[i:]...)
	return i
}

// Latest returns the newest sample
func (h *PositionHistory) Latest() (Position, bool) {
	if len(h.samples) == 0 {
		return Position{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// Len returns the number of samples held
func (h *PositionHistory) Len() int {
	return len(h.samples)
}

// Samples returns a copy of the samples, oldest first
func (h *PositionHistory) Samples() []Position {
	out := make([]Position, len(h.samples))
	copy(out, h.samples)
	return out
}
