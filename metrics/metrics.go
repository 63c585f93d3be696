package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verishield",
			Name:      "stage_records_total",
			Help:      "Inbound records handled by a stage, partitioned by outcome.",
		},
		[]string{"stage", "outcome"},
	)

	degradedUnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verishield",
			Name:      "stage_degraded_units_total",
			Help:      "Work units that failed and were replaced by a degraded result.",
		},
		[]string{"stage"},
	)

	recordDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verishield",
			Name:      "stage_record_seconds",
			Help:      "Time spent handling one inbound record.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"stage"},
	)

	fallbackTierTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verishield",
			Name:      "fallback_resolutions_total",
			Help:      "Fallback resolutions partitioned by the tier that answered.",
		},
		[]string{"tier"},
	)

	tokenExchangesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "verishield",
			Name:      "token_exchanges_total",
			Help:      "OAuth client-credentials exchanges performed.",
		},
	)

	rateLimitBackoffSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "verishield",
			Name:      "rate_limit_backoff_seconds_total",
			Help:      "Seconds spent sleeping for upstream rate-limit resets.",
		},
	)

	threatsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verishield",
			Name:      "threats_total",
			Help:      "Threat entries produced, partitioned by how they were built.",
		},
		[]string{"origin"},
	)
)

// Register attaches pipeline collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		recordsTotal,
		degradedUnitsTotal,
		recordDurationSeconds,
		fallbackTierTotal,
		tokenExchangesTotal,
		rateLimitBackoffSeconds,
		threatsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRecord records one inbound record's duration and outcome.
func ObserveRecord(stage string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	recordsTotal.WithLabelValues(stage, label).Inc()
	if duration < 0 {
		duration = 0
	}
	recordDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

func DegradedUnit(stage string) {
	degradedUnitsTotal.WithLabelValues(stage).Inc()
}

func FallbackTier(tier string) {
	fallbackTierTotal.WithLabelValues(tier).Inc()
}

func TokenExchange() {
	tokenExchangesTotal.Inc()
}

func RateLimitBackoff(d time.Duration) {
	if d > 0 {
		rateLimitBackoffSeconds.Add(d.Seconds())
	}
}

// Threat counts a produced threat entry; origin is "synthesized" or "fallback".
func Threat(origin string) {
	threatsTotal.WithLabelValues(origin).Inc()
}
