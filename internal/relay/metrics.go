package relay

import (
	"sync"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	mu sync.RWMutex

	// Room metrics
	roomsCreatedTotal int64
	joinsTotal        int64
	leavesTotal       int64

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	// File lifecycle metrics
	accessReportsTotal int64
	burnsTotal         int64
	expiredTotal       int64
	evictionsTotal     int64

	// Session metrics
	connectsTotal    int64
	disconnectsTotal int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordRoomCreated records a new room
func (m *Metrics) RecordRoomCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roomsCreatedTotal++
}

// RecordJoin records a successful room join
func (m *Metrics) RecordJoin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joinsTotal++
}

// RecordLeave records a member leaving a room
func (m *Metrics) RecordLeave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leavesTotal++
}

// RecordUpload records a successful relay through a provider
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadError records a failed upload
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

// RecordAccessReport records one file-downloaded signal
func (m *Metrics) RecordAccessReport() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessReportsTotal++
}

// RecordBurn records a policy-triggered file removal
func (m *Metrics) RecordBurn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.burnsTotal++
}

// RecordExpired records a sweep-triggered file removal
func (m *Metrics) RecordExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiredTotal++
}

// RecordEviction records an overflow or teardown eviction
func (m *Metrics) RecordEviction() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictionsTotal++
}

// RecordConnect records a new session connection
func (m *Metrics) RecordConnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectsTotal++
}

// RecordDisconnect records a closed session connection
func (m *Metrics) RecordDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectsTotal++
}

// RecordRequest records an HTTP request and its status class
func (m *Metrics) RecordRequest(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++
	switch {
	case status >= 500:
		m.requestErrors5xx++
	case status >= 400:
		m.requestErrors4xx++
	}
}

// MetricsSnapshot is a point-in-time copy of all counters
type MetricsSnapshot struct {
	RoomsCreatedTotal int64
	JoinsTotal        int64
	LeavesTotal       int64

	UploadsTotal        int64
	UploadBytesTotal    int64
	UploadErrorsTotal   int64
	UploadDurationMs    int64
	AccessReportsTotal  int64
	BurnsTotal          int64
	ExpiredTotal        int64
	EvictionsTotal      int64

	ConnectsTotal    int64
	DisconnectsTotal int64

	RequestsTotal    int64
	RequestErrors5xx int64
	RequestErrors4xx int64
}

// Snapshot returns a consistent copy of the counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		RoomsCreatedTotal:  m.roomsCreatedTotal,
		JoinsTotal:         m.joinsTotal,
		LeavesTotal:        m.leavesTotal,
		UploadsTotal:       m.uploadsTotal,
		UploadBytesTotal:   m.uploadBytesTotal,
		UploadErrorsTotal:  m.uploadErrorsTotal,
		UploadDurationMs:   m.uploadDurationTotal.Milliseconds(),
		AccessReportsTotal: m.accessReportsTotal,
		BurnsTotal:         m.burnsTotal,
		ExpiredTotal:       m.expiredTotal,
		EvictionsTotal:     m.evictionsTotal,
		ConnectsTotal:      m.connectsTotal,
		DisconnectsTotal:   m.disconnectsTotal,
		RequestsTotal:      m.requestsTotal,
		RequestErrors5xx:   m.requestErrors5xx,
		RequestErrors4xx:   m.requestErrors4xx,
	}
}
