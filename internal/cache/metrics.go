package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "splitq"
	metricsSubsystem = "cache"
)

// Metrics instruments cache lookups. A nil registerer creates unregistered
// collectors, which is what NewMinimal uses when none is configured.
type Metrics struct {
	lookups     *prometheus.CounterVec
	fetches     prometheus.Counter
	fetchErrors prometheus.Counter
	planSteps   prometheus.Histogram
	memoHits    prometheus.Counter
	memoMisses  prometheus.Counter
}

func NewMetrics(r prometheus.Registerer) *Metrics {
	return &Metrics{
		lookups: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "lookups_total",
			Help:      "Cache lookups by outcome: hit (served from cache), partial (cache and remote) or miss (remote only).",
		}, []string{"result"}),
		fetches: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "remote_fetches_total",
			Help:      "Remote fetches issued for data missing from the cache.",
		}),
		fetchErrors: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "remote_fetch_errors_total",
			Help:      "Remote fetches that failed or did not cover the request.",
		}),
		planSteps: promauto.With(r).NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "plan_steps",
			Help:      "Number of datasets combined to answer one lookup.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}),
		memoHits: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "simplify_memo_hits_total",
			Help:      "Simplifications answered from the memo.",
		}),
		memoMisses: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "simplify_memo_misses_total",
			Help:      "Simplifications computed and added to the memo.",
		}),
	}
}
