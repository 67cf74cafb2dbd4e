package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/adaptive-retrieval/internal/core/domain"
)

// RetrievalMetrics implements ports.MetricsRecorder on a private registry,
// so tests can build as many instances as they need without collisions.
type RetrievalMetrics struct {
	registry *prometheus.Registry

	stageDuration    *prometheus.HistogramVec
	sourceCandidates *prometheus.HistogramVec
	sourceFailures   *prometheus.CounterVec
	armSelections    *prometheus.CounterVec
	rewardObserved   prometheus.Histogram
	flushTotal       *prometheus.CounterVec
}

func NewRetrievalMetrics(service string) *RetrievalMetrics {
	registry := prometheus.NewRegistry()

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "aret",
			Subsystem:   "pipeline",
			Name:        "stage_duration_seconds",
			Help:        "Duration of each retrieval pipeline stage.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"stage"},
	)
	sourceCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "aret",
			Subsystem:   "source",
			Name:        "candidates",
			Help:        "Candidates returned per source fetch.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"source"},
	)
	sourceFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "aret",
			Subsystem:   "source",
			Name:        "failures_total",
			Help:        "Failed source fetches.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"source"},
	)
	armSelections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "aret",
			Subsystem:   "bandit",
			Name:        "arm_selections_total",
			Help:        "Arm selections by tile.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"tile", "arm"},
	)
	rewardObserved := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "aret",
			Subsystem:   "bandit",
			Name:        "reward",
			Help:        "Shaped reward values fed back to the allocator.",
			Buckets:     []float64{-1, -0.5, -0.25, 0, 0.25, 0.5, 0.75, 1},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	flushTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "aret",
			Subsystem:   "bandit",
			Name:        "flush_total",
			Help:        "Bandit state flushes by outcome.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		[]string{"status"},
	)

	registry.MustRegister(
		stageDuration,
		sourceCandidates,
		sourceFailures,
		armSelections,
		rewardObserved,
		flushTotal,
	)

	return &RetrievalMetrics{
		registry:         registry,
		stageDuration:    stageDuration,
		sourceCandidates: sourceCandidates,
		sourceFailures:   sourceFailures,
		armSelections:    armSelections,
		rewardObserved:   rewardObserved,
		flushTotal:       flushTotal,
	}
}

func (m *RetrievalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *RetrievalMetrics) ObserveStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (m *RetrievalMetrics) ObserveSource(source domain.Source, count int, failed bool) {
	if failed {
		m.sourceFailures.WithLabelValues(string(source)).Inc()
		return
	}
	m.sourceCandidates.WithLabelValues(string(source)).Observe(float64(count))
}

func (m *RetrievalMetrics) ObserveSelection(tile int, arm domain.Arm) {
	m.armSelections.WithLabelValues(strconv.Itoa(tile), string(arm)).Inc()
}

func (m *RetrievalMetrics) ObserveReward(reward float64) {
	m.rewardObserved.Observe(reward)
}

func (m *RetrievalMetrics) ObserveFlush(failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	m.flushTotal.WithLabelValues(status).Inc()
}
