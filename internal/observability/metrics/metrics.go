// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_interview_session"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsSuccess prometheus.Counter
	SessionsFailed  prometheus.Counter
	SessionDuration prometheus.Histogram
	SessionEndings  *prometheus.CounterVec

	// Turn metrics
	QuestionsAsked prometheus.Counter
	Interruptions  prometheus.Counter

	// Transcript metrics
	TranscriptEntries  *prometheus.CounterVec
	TranscriptDiscards *prometheus.CounterVec

	// Audio metrics
	AudioBytesIn       prometheus.Counter
	AudioBytesOut      prometheus.Counter
	PlaybackFragments  prometheus.Counter
	PlaybackFlushes    prometheus.Counter

	// Realtime endpoint metrics
	RealtimeEvents     *prometheus.CounterVec
	RealtimeErrors     *prometheus.CounterVec
	RealtimeCloses     *prometheus.CounterVec

	// Analysis metrics
	AnalysisAttempts prometheus.Counter
	AnalysisFailures prometheus.Counter
	AnalysisLatency  prometheus.Histogram

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of interview sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active interview sessions",
		}),
		SessionsSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_success_total",
			Help:      "Total number of sessions that reached a stored result",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions ended by error",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of interview sessions in seconds",
			Buckets:   []float64{5, 15, 30, 60, 90, 120, 180, 300, 600},
		}),
		SessionEndings: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_endings_total",
			Help:      "Total session endings by trigger",
		}, []string{"trigger"}),

		// Turn metrics
		QuestionsAsked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_asked_total",
			Help:      "Total number of interviewer questions counted",
		}),
		Interruptions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total number of candidate barge-ins handled",
		}),

		// Transcript metrics
		TranscriptEntries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_entries_total",
			Help:      "Total finalized transcript entries",
		}, []string{"speaker"}),
		TranscriptDiscards: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_discards_total",
			Help:      "Total finalizations discarded",
		}, []string{"reason"}),

		// Audio metrics
		AudioBytesIn: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_in_total",
			Help:      "Total candidate audio bytes received",
		}),
		AudioBytesOut: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_out_total",
			Help:      "Total agent audio bytes played back",
		}),
		PlaybackFragments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_fragments_total",
			Help:      "Total audio fragments enqueued for playback",
		}),
		PlaybackFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_flushes_total",
			Help:      "Total playback queue flushes",
		}),

		// Realtime endpoint metrics
		RealtimeEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Total inbound realtime events by type",
		}, []string{"type"}),
		RealtimeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_errors_total",
			Help:      "Total realtime endpoint errors",
		}, []string{"code"}),
		RealtimeCloses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_closes_total",
			Help:      "Total realtime connection closures by class",
		}, []string{"class"}),

		// Analysis metrics
		AnalysisAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_attempts_total",
			Help:      "Total scoring call attempts",
		}),
		AnalysisFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_failures_total",
			Help:      "Total submissions that failed after all retries",
		}),
		AnalysisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_latency_seconds",
			Help:      "Latency of successful scoring calls in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(success bool, trigger string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	m.SessionEndings.WithLabelValues(trigger).Inc()
	if success {
		m.SessionsSuccess.Inc()
	} else {
		m.SessionsFailed.Inc()
	}
}

// RecordQuestion records an interviewer question being counted.
func (m *Metrics) RecordQuestion() {
	m.QuestionsAsked.Inc()
}

// RecordInterruption records a handled barge-in.
func (m *Metrics) RecordInterruption() {
	m.Interruptions.Inc()
}

// RecordTranscriptEntry records a finalized transcript entry.
func (m *Metrics) RecordTranscriptEntry(speaker string) {
	m.TranscriptEntries.WithLabelValues(speaker).Inc()
}

// RecordTranscriptDiscard records a discarded finalization.
func (m *Metrics) RecordTranscriptDiscard(reason string) {
	m.TranscriptDiscards.WithLabelValues(reason).Inc()
}

// RecordAudioIn records candidate audio received.
func (m *Metrics) RecordAudioIn(bytes int) {
	m.AudioBytesIn.Add(float64(bytes))
}

// RecordAudioOut records agent audio played back.
func (m *Metrics) RecordAudioOut(bytes int) {
	m.AudioBytesOut.Add(float64(bytes))
}

// RecordPlaybackEnqueue records a fragment entering the playback queue.
func (m *Metrics) RecordPlaybackEnqueue() {
	m.PlaybackFragments.Inc()
}

// RecordPlaybackFlush records a playback queue flush.
func (m *Metrics) RecordPlaybackFlush() {
	m.PlaybackFlushes.Inc()
}

// RecordRealtimeEvent records an inbound realtime event.
func (m *Metrics) RecordRealtimeEvent(eventType string) {
	m.RealtimeEvents.WithLabelValues(eventType).Inc()
}

// RecordRealtimeError records a realtime endpoint error.
func (m *Metrics) RecordRealtimeError(code string) {
	m.RealtimeErrors.WithLabelValues(code).Inc()
}

// RecordRealtimeClose records a connection closure.
func (m *Metrics) RecordRealtimeClose(class string) {
	m.RealtimeCloses.WithLabelValues(class).Inc()
}

// RecordAnalysisAttempt records a scoring call attempt.
func (m *Metrics) RecordAnalysisAttempt() {
	m.AnalysisAttempts.Inc()
}

// RecordAnalysisFailure records a submission that exhausted its retries.
func (m *Metrics) RecordAnalysisFailure() {
	m.AnalysisFailures.Inc()
}

// RecordAnalysisSuccess records the latency of a successful scoring call.
func (m *Metrics) RecordAnalysisSuccess(latencySeconds float64) {
	m.AnalysisLatency.Observe(latencySeconds)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
