// Package feed holds the transport plumbing shared by the network sources:
// liveness monitoring and a reconnecting line-oriented TCP client.
package feed

import (
	"sync"
	"time"
)

// Status is the liveness of a feed
type Status int

// Feed statuses
const (
	StatusOffline Status = iota
	StatusWaiting
	StatusOnline
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusWaiting:
		return "waiting"
	default:
		return "offline"
	}
}

// Monitor tracks whether a source is connected and delivering data
type Monitor struct {
	name    string
	timeout time.Duration

	mu        sync.RWMutex
	connected bool
	lastData  time.Time
}

// NewMonitor creates a monitor. A source is considered stalled once timeout
// passes without data.
func NewMonitor(name string, timeout time.Duration) *Monitor {
	return &Monitor{name: name, timeout: timeout}
}

// Name returns the source label
func (m *Monitor) Name() string {
	return m.name
}

// Timeout returns the stall threshold
func (m *Monitor) Timeout() time.Duration {
	return m.timeout
}

// SetConnected records the connection state
func (m *Monitor) SetConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
}

// Touch records the arrival of one unit of data
func (m *Monitor) Touch() {
	m.TouchAt(time.Now())
}

// TouchAt records the arrival of data at the given time
func (m *Monitor) TouchAt(t time.Time) {
	m.mu.Lock()
	m.lastData = t
	m.mu.Unlock()
}

// LastData returns when data last arrived
func (m *Monitor) LastData() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastData
}

// Status reports liveness at now
func (m *Monitor) Status(now time.Time) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return StatusOffline
	}
	if !m.lastData.IsZero() && now.Sub(m.lastData) <= m.timeout {
		return StatusOnline
	}
	return StatusWaiting
}
