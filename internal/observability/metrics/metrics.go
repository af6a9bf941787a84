// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "interpreter_verify"

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	// Audio ingest metrics
	FramesProcessed prometheus.Counter
	FrameOverruns   prometheus.Counter

	// Segmenter metrics
	UtterancesEmitted      prometheus.Counter
	UtterancesDroppedShort prometheus.Counter
	UtteranceDuration      prometheus.Histogram

	// Dispatcher metrics
	DispatchQueueDepth    prometheus.Gauge
	DispatchInFlight      prometheus.Gauge
	DispatchOverflowDrops prometheus.Counter

	// Stage metrics
	TranscriptionLatency *prometheus.HistogramVec
	TranscriptionErrors  *prometheus.CounterVec
	TranslationLatency   *prometheus.HistogramVec
	TranslationErrors    *prometheus.CounterVec
	MatchLatency         prometheus.Histogram
	MatchesFound         *prometheus.CounterVec

	// Delivery metrics
	RecordsDelivered prometheus.Counter
	RecordsDegraded  *prometheus.CounterVec
	SequencerPending prometheus.Gauge
	DeliveryLatency  prometheus.Histogram

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
		FramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_processed_total",
			Help:      "Total audio frames classified by the segmenter",
		}),
		FrameOverruns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frame_overruns_total",
			Help:      "Total audio frames dropped because the ingest path could not keep up",
		}),

		UtterancesEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_emitted_total",
			Help:      "Total utterances emitted by the segmenter",
		}),
		UtterancesDroppedShort: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_dropped_short_total",
			Help:      "Total utterances dropped as below the minimum duration",
		}),
		UtteranceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "utterance_duration_seconds",
			Help:      "Duration of emitted utterances in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}),

		DispatchQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Utterances waiting for a free worker",
		}),
		DispatchInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_in_flight",
			Help:      "Utterances currently being processed",
		}),
		DispatchOverflowDrops: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_overflow_drops_total",
			Help:      "Total utterances dropped because the wait queue exceeded its hard cap",
		}),

		TranscriptionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_latency_seconds",
			Help:      "Transcription stage latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider"}),
		TranscriptionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_errors_total",
			Help:      "Total transcription stage failures",
		}, []string{"provider", "error_type"}),
		TranslationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_latency_seconds",
			Help:      "Translation stage latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		TranslationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_errors_total",
			Help:      "Total translation stage failures",
		}, []string{"provider", "error_type"}),
		MatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_latency_seconds",
			Help:      "Terminology matching latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		MatchesFound: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminology_matches_total",
			Help:      "Total terminology matches found",
		}, []string{"category", "kind"}),

		RecordsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_delivered_total",
			Help:      "Total pipeline records delivered to the sink",
		}),
		RecordsDegraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_degraded_total",
			Help:      "Total records delivered with a failure marker",
		}, []string{"reason"}),
		SequencerPending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sequencer_pending",
			Help:      "Completed records buffered waiting for an earlier utterance",
		}),
		DeliveryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_latency_seconds",
			Help:      "Time from utterance end to record delivery in seconds",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 21},
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordFrame records one classified audio frame.
func (m *Metrics) RecordFrame() {
	m.FramesProcessed.Inc()
}

// RecordFrameOverrun records a dropped frame on the ingest path.
func (m *Metrics) RecordFrameOverrun() {
	m.FrameOverruns.Inc()
}

// RecordUtteranceEmitted records an emitted utterance and its duration.
func (m *Metrics) RecordUtteranceEmitted(durationSeconds float64) {
	m.UtterancesEmitted.Inc()
	m.UtteranceDuration.Observe(durationSeconds)
}

// RecordUtteranceDroppedShort records an utterance dropped as noise.
func (m *Metrics) RecordUtteranceDroppedShort() {
	m.UtterancesDroppedShort.Inc()
}

// RecordOverflowDrop records an utterance dropped at the queue hard cap.
func (m *Metrics) RecordOverflowDrop() {
	m.DispatchOverflowDrops.Inc()
}

// RecordTranscription records a transcription attempt.
func (m *Metrics) RecordTranscription(provider string, err error, latencySeconds float64) {
	m.TranscriptionLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.TranscriptionErrors.WithLabelValues(provider, "failure").Inc()
	}
}

// RecordTranslation records a translation attempt.
func (m *Metrics) RecordTranslation(provider string, err error, latencySeconds float64) {
	m.TranslationLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.TranslationErrors.WithLabelValues(provider, "failure").Inc()
	}
}

// RecordMatches records a matcher invocation and its hits.
func (m *Metrics) RecordMatches(latencySeconds float64, byCategoryKind map[[2]string]int) {
	m.MatchLatency.Observe(latencySeconds)
	for key, n := range byCategoryKind {
		m.MatchesFound.WithLabelValues(key[0], key[1]).Add(float64(n))
	}
}

// RecordDelivery records a delivered record.
func (m *Metrics) RecordDelivery(degradedReason string, latencySeconds float64) {
	m.RecordsDelivered.Inc()
	m.DeliveryLatency.Observe(latencySeconds)
	if degradedReason != "" {
		m.RecordsDegraded.WithLabelValues(degradedReason).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic).Inc()
	}
}
