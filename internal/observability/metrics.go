package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_coach_active_sessions",
		Help: "Number of open coaching sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_coach_sessions_total",
		Help: "Total number of sessions opened",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_coach_session_duration_seconds",
		Help:    "Duration of coaching sessions in seconds",
		Buckets: []float64{5, 30, 60, 120, 300, 600, 1200, 1800},
	})

	// Playback metrics
	chunksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_coach_playback_chunks_total",
		Help: "Inbound audio chunks scheduled for playback",
	})

	chunksSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_coach_playback_chunks_skipped_total",
		Help: "Inbound audio chunks that could not be scheduled",
	}, []string{"reason"})

	lateChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_coach_playback_late_chunks_total",
		Help: "Chunks that arrived after the previous chunk finished playing",
	})

	interruptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_coach_interruptions_total",
		Help: "Playback interruptions",
	}, []string{"reason"})

	// Capture metrics
	captureFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_coach_capture_frames_sent_total",
		Help: "Microphone frames sent on the live channel",
	})

	captureFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_coach_capture_frames_dropped_total",
		Help: "Microphone frames dropped because the send queue was full",
	})

	sendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_coach_send_errors_total",
		Help: "Failed sends on the live channel",
	})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_coach_audio_bytes_total",
		Help: "Total PCM bytes moved",
	}, []string{"direction"}) // direction: "in" or "out"

	// Animation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_coach_tick_duration_seconds",
		Help:    "Time spent in one animation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016},
	})

	renderViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_coach_render_viewers",
		Help: "Connected avatar viewers",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_coach_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_coach_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// SessionMetrics tracks metrics for a single session
type SessionMetrics struct {
	sessionID string
	startTime time.Time
	ended     bool
	mu        sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{sessionID: sessionID}
}

// RecordSessionStart records the start of a session
func (m *SessionMetrics) RecordSessionStart() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startTime = time.Now()
	m.ended = false
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session. Only the first call after a start counts.
func (m *SessionMetrics) RecordSessionEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ended || m.startTime.IsZero() {
		return
	}
	m.ended = true
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordChunkScheduled records one inbound chunk handed to the scheduler
func (m *SessionMetrics) RecordChunkScheduled(bytes int, late bool) {
	chunksScheduled.Inc()
	audioBytesProcessed.WithLabelValues("in").Add(float64(bytes))
	if late {
		lateChunks.Inc()
	}
}

// RecordChunkSkipped records a malformed or unplayable inbound chunk
func (m *SessionMetrics) RecordChunkSkipped(reason string) {
	chunksSkipped.WithLabelValues(reason).Inc()
}

// RecordInterruption records a playback interruption
func (m *SessionMetrics) RecordInterruption(reason string) {
	interruptions.WithLabelValues(reason).Inc()
}

// RecordFrameSent records one microphone frame on the wire
func (m *SessionMetrics) RecordFrameSent(bytes int) {
	captureFramesSent.Inc()
	audioBytesProcessed.WithLabelValues("out").Add(float64(bytes))
}

// RecordFramesDropped records microphone frames lost to a full queue
func (m *SessionMetrics) RecordFramesDropped(n int) {
	if n > 0 {
		captureFramesDropped.Add(float64(n))
	}
}

// RecordSendError records a failed send
func (m *SessionMetrics) RecordSendError() {
	sendErrors.Inc()
}

// ObserveTick records how long one animation tick took
func (m *SessionMetrics) ObserveTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// SetRenderViewers sets the connected viewer gauge
func SetRenderViewers(n int) {
	renderViewers.Set(float64(n))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
