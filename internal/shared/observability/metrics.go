package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gramspace_build_seconds",
		Help:    "Time spent building and cleaning one grammar.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	GrammarStates = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gramspace_grammar_states",
		Help: "Number of states in the last cleaned grammar of a job.",
	}, []string{"job"})

	GrammarRules = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gramspace_grammar_rules",
		Help: "Number of derivations in the last cleaned grammar of a job.",
	}, []string{"job"})

	PrunedStatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gramspace_pruned_states_total",
		Help: "Total number of states removed by grammar cleaning.",
	}, []string{"pass"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gramspace_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RebuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gramspace_rebuilds_total",
		Help: "Total number of rebuilds triggered by configuration changes.",
	})

	RebuildsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gramspace_rebuilds_throttled_total",
		Help: "Total number of rebuild requests dropped by the rate limiter.",
	})

	HistoryWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gramspace_history_write_errors_total",
		Help: "Total number of failed history snapshot writes.",
	})
)
