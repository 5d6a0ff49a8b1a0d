// Package metrics exposes Prometheus instrumentation for the agent: config
// parse latency, classify call volume, per-group matcher-list sizes,
// and remote ABP-list fetch outcomes. None of this feeds back into policy
// decisions — it is purely observational (spec.md's Non-goals exclude a
// metrics *protocol*, but the ambient stack still gets instrumented the way
// the rest of the agent is).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ParseDuration records how long config.Parse took, labeled by whether it
	// succeeded.
	ParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wsagentcfg",
		Subsystem: "config",
		Name:      "parse_duration_seconds",
		Help:      "Time spent parsing the agent config grammar.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// ClassifyTotal counts policy.Facade.Classify calls, labeled by the
	// resulting Decision.Kind.
	ClassifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wsagentcfg",
		Subsystem: "policy",
		Name:      "classify_total",
		Help:      "Number of classification decisions, by kind.",
	}, []string{"kind"})

	// GroupMatcherCount is a gauge of how many matchers are loaded for a given
	// alias and list kind (domain, resolve, no_proxy), refreshed after Parse.
	GroupMatcherCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "wsagentcfg",
		Subsystem: "config",
		Name:      "group_matcher_count",
		Help:      "Number of compiled matchers per group alias and list kind.",
	}, []string{"alias", "list"})

	// FetchDuration records remote ABP-list GETs, labeled by outcome.
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wsagentcfg",
		Subsystem: "resource",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching a remote ABP list over HTTP(S).",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
)

// ObserveParse records a config.Parse call's duration and outcome.
func ObserveParse(d time.Duration, ok bool) {
	ParseDuration.WithLabelValues(outcomeLabel(ok)).Observe(d.Seconds())
}

// ObserveFetch records a remote resource fetch's duration and outcome.
func ObserveFetch(d time.Duration, ok bool) {
	FetchDuration.WithLabelValues(outcomeLabel(ok)).Observe(d.Seconds())
}

func outcomeLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
