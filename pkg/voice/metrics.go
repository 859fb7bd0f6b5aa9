package voice

import (
	"sync"
	"time"
)

// Metrics is a snapshot of interpreter activity.
type Metrics struct {
	Listening      bool      `json:"listening"`
	Transcripts    int       `json:"transcripts"`
	Starts         int       `json:"starts"`
	Stops          int       `json:"stops"`
	Ignored        int       `json:"ignored"`
	Restarts       int       `json:"restarts"`
	LastTranscript string    `json:"last_transcript"`
	LastCommand    string    `json:"last_command"`
	LastHeard      time.Time `json:"last_heard"`
	LastError      string    `json:"last_error,omitempty"`
}

// MetricsCollector records interpreter activity.
// It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	healthy bool // A transcript arrived since the last restart

	onUpdate func(Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// OnUpdate sets a callback that fires whenever metrics change.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// SetListening records whether a session is open.
func (m *MetricsCollector) SetListening(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.Listening == on {
		return
	}
	m.current.Listening = on
	m.notify()
}

// MarkTranscript records a handled transcript.
func (m *MetricsCollector) MarkTranscript(text string, cmd Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Transcripts++
	switch cmd {
	case StartCamera:
		m.current.Starts++
	case StopCamera:
		m.current.Stops++
	default:
		m.current.Ignored++
	}
	m.current.LastTranscript = text
	m.current.LastCommand = cmd.String()
	m.current.LastHeard = time.Now()
	m.healthy = true
	m.notify()
}

// MarkRestart records a session restart.
func (m *MetricsCollector) MarkRestart(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Restarts++
	if err != nil {
		m.current.LastError = err.Error()
	}
	m.notify()
}

// consumeHealthy reports and clears the healthy flag.
func (m *MetricsCollector) consumeHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.healthy
	m.healthy = false
	return h
}

// Snapshot returns the current metrics.
func (m *MetricsCollector) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// notify must be called with mu held.
func (m *MetricsCollector) notify() {
	if m.onUpdate != nil {
		snap := m.current
		fn := m.onUpdate
		go fn(snap)
	}
}
