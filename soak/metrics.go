package soak

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	runIDLabel = "run_id"
)

var (
	soakTickCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soak_tick_count_total",
		Help: "The total number of simulation ticks.",
	}, []string{runIDLabel})

	soakChurnCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soak_churn_count_total",
		Help: "The total number of elements removed and reinserted.",
	}, []string{runIDLabel})

	soakQueryCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soak_query_count_total",
		Help: "The total number of sphere queries run.",
	}, []string{runIDLabel})

	soakQueryHitCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soak_query_hit_count_total",
		Help: "The total number of elements returned by sphere queries.",
	}, []string{runIDLabel})

	soakQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "soak_query_duration_seconds",
		Help: "The time to run a sphere query.",
	}, []string{runIDLabel})

	soakTraceCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soak_trace_count_total",
		Help: "The total number of segment traces run.",
	}, []string{runIDLabel})

	soakTraceHitCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soak_trace_hit_count_total",
		Help: "The total number of traces that reported a blocking hit.",
	}, []string{runIDLabel})

	soakTraceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "soak_trace_duration_seconds",
		Help: "The time to run a segment trace.",
	}, []string{runIDLabel})
)

func instrumentTick(runID string) {
	soakTickCountTotal.
		With(prometheus.Labels{runIDLabel: runID}).
		Inc()
}

func instrumentChurn(runID string, count int) {
	soakChurnCountTotal.
		With(prometheus.Labels{runIDLabel: runID}).
		Add(float64(count))
}

func instrumentQuery(runID string, d time.Duration, hits int) {
	labels := prometheus.Labels{runIDLabel: runID}

	soakQueryCountTotal.With(labels).Inc()
	soakQueryHitCountTotal.With(labels).Add(float64(hits))
	soakQueryDuration.With(labels).Observe(d.Seconds())
}

func instrumentTrace(runID string, d time.Duration, blockingHit bool) {
	labels := prometheus.Labels{runIDLabel: runID}

	soakTraceCountTotal.With(labels).Inc()
	if blockingHit {
		soakTraceHitCountTotal.With(labels).Inc()
	}
	soakTraceDuration.With(labels).Observe(d.Seconds())
}
