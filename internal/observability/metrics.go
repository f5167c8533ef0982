package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recording outcomes used as the status label
const (
	StatusSaved       = "saved"
	StatusFailed      = "failed"
	StatusUnfinalized = "unfinalized"
)

var (
	// Recording metrics
	activeRecordings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "media_recorder_active_recordings",
		Help: "Number of recordings currently streaming to disk",
	})

	recordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_recorder_recordings_total",
		Help: "Total number of recordings by outcome",
	}, []string{"status"})

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "media_recorder_recording_duration_seconds",
		Help:    "Wall-clock duration of recordings in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	finalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "media_recorder_finalize_duration_seconds",
		Help:    "Time spent patching and releasing a recording, retries included",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
	})

	// Stream metrics
	mediaEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_recorder_media_events_total",
		Help: "Total number of media events received",
	})

	audioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "media_recorder_audio_bytes_total",
		Help: "Total decoded audio bytes written to recordings",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "media_recorder_errors_total",
		Help: "Total number of errors by kind",
	}, []string{"kind"}) // kind: state, decode, io, protocol, other
)

// Metrics tracks metrics for a single recording
type Metrics struct {
	recordingID string
	startTime   time.Time
	active      bool
	mu          sync.Mutex
}

// NewRecordingMetrics creates a new metrics tracker for a recording
func NewRecordingMetrics(recordingID string) *Metrics {
	return &Metrics{
		recordingID: recordingID,
	}
}

// RecordStart marks the recording as streaming
func (m *Metrics) RecordStart() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return
	}
	m.active = true
	m.startTime = time.Now()
	activeRecordings.Inc()
}

// RecordEnd marks the recording as ended with the given status
func (m *Metrics) RecordEnd(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return
	}
	m.active = false
	activeRecordings.Dec()
	recordingDuration.Observe(time.Since(m.startTime).Seconds())
	recordingsTotal.WithLabelValues(status).Inc()
}

// RecordChunk records one media event and the bytes it added
func (m *Metrics) RecordChunk(bytes int64) {
	mediaEvents.Inc()
	if bytes > 0 {
		audioBytes.Add(float64(bytes))
	}
}

// RecordFinalize records how long finalization took
func (m *Metrics) RecordFinalize(d time.Duration) {
	finalizeDuration.Observe(d.Seconds())
}

// RecordError records an error
func (m *Metrics) RecordError(kind string) {
	errorsTotal.WithLabelValues(kind).Inc()
}
