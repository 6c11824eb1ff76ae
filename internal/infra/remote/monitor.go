package remote

import (
	"strconv"
	"sync"
	"time"
)

// Status represents the health state of an instance as seen by this client.
type Status int

const (
	StatusHealthy   Status = iota // Instance is working normally
	StatusDegraded                // Instance is slow or failing often
	StatusThrottled               // Instance asked us to back off
)

func (s Status) String() string {
	switch s {
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	default:
		return "healthy"
	}
}

// MarshalText renders the status by name in JSON output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MonitorStats holds monitoring statistics for an instance.
type MonitorStats struct {
	Status         Status        `json:"status"`
	AverageLatency time.Duration `json:"average_latency"`
	Requests       int           `json:"requests"`
	Failures       int           `json:"failures"`
	ThrottleCount  int           `json:"throttle_count"`
	RetryAfter     time.Duration `json:"retry_after"`
}

// Monitor tracks latency, failures and throttling for one instance.
type Monitor struct {
	mu sync.RWMutex

	recentLatencies  []time.Duration
	maxLatencyWindow int

	requests      int
	failures      int
	throttleCount int
	throttleUntil time.Time

	slowResponseThreshold time.Duration
	degradedThreshold     float64
	defaultRetryAfter     time.Duration

	now func() time.Time
}

// NewMonitor creates a new monitor with default settings.
func NewMonitor() *Monitor {
	return &Monitor{
		recentLatencies:       make([]time.Duration, 0, 100),
		maxLatencyWindow:      100,
		slowResponseThreshold: 3 * time.Second,
		degradedThreshold:     0.3, // 30% error rate
		defaultRetryAfter:     60 * time.Second,
		now:                   time.Now,
	}
}

// RecordRequest records a completed request with its latency.
func (m *Monitor) RecordRequest(latency time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests++
	if failed {
		m.failures++
	}

	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
}

// RecordThrottle records a 429 response. retryAfter is the raw Retry-After
// header value in seconds; an unparsable or empty value uses the default.
func (m *Monitor) RecordThrottle(retryAfter string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wait := m.defaultRetryAfter
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		wait = time.Duration(secs) * time.Second
	}

	m.throttleCount++
	m.throttleUntil = m.now().Add(wait)
}

// RetryAfter returns remaining time before requests should resume.
func (m *Monitor) RetryAfter() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retryAfterLocked()
}

func (m *Monitor) retryAfterLocked() time.Duration {
	if remaining := m.throttleUntil.Sub(m.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// Status returns the current status of the instance.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Monitor) statusLocked() Status {
	if m.retryAfterLocked() > 0 {
		return StatusThrottled
	}

	if m.requests >= 10 && float64(m.failures)/float64(m.requests) > m.degradedThreshold {
		return StatusDegraded
	}

	if len(m.recentLatencies) > 10 && m.averageLatencyLocked() > m.slowResponseThreshold {
		return StatusDegraded
	}

	return StatusHealthy
}

func (m *Monitor) averageLatencyLocked() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}

	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// Stats returns current monitoring statistics.
func (m *Monitor) Stats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MonitorStats{
		Status:         m.statusLocked(),
		AverageLatency: m.averageLatencyLocked(),
		Requests:       m.requests,
		Failures:       m.failures,
		ThrottleCount:  m.throttleCount,
		RetryAfter:     m.retryAfterLocked(),
	}
}
