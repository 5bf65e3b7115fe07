package observability

import "sync"

// Upload counter names.
const (
	UploadsTotal     = "uploads_total"
	UploadsSucceeded = "uploads_succeeded"
	UploadsRejected  = "uploads_rejected"
	UploadsFailed    = "uploads_failed"
	BytesWritten     = "bytes_written"
)

// Metrics provides a minimal in-process metrics registry.
type Metrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[string]int64)}
}

func (m *Metrics) IncCounter(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += delta
}

// Counter returns the current value of name.
func (m *Metrics) Counter(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *Metrics) Snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}
