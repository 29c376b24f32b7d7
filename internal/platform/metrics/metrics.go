// Package metrics owns the process Prometheus registry.
package metrics

import (
	"net/http"

	"pollstack/internal/platform/txcoord"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pollstack"

type Registry struct {
	registry *prometheus.Registry

	unitAttempts    *prometheus.CounterVec
	unitRetries     *prometheus.CounterVec
	unitExhausted   *prometheus.CounterVec
	partialCommits  *prometheus.CounterVec
	ledgerAppends   *prometheus.CounterVec
	lotteryPayouts  *prometheus.CounterVec
	sweepRuns       *prometheus.CounterVec
	notifyDelivered *prometheus.CounterVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		unitAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unit",
			Name:      "attempts_total",
			Help:      "Unit of work attempts by store set.",
		}, []string{"stores"}),
		unitRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unit",
			Name:      "retries_total",
			Help:      "Unit of work reruns caused by retryable store errors.",
		}, []string{"stores", "kind"}),
		unitExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unit",
			Name:      "retry_exhausted_total",
			Help:      "Units abandoned after the retry budget ran out.",
		}, []string{"stores"}),
		partialCommits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unit",
			Name:      "partial_commit_risk_total",
			Help:      "Commit failures after at least one store already committed.",
		}, []string{"failed_store"}),
		ledgerAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entries appended by kind.",
		}, []string{"kind"}),
		lotteryPayouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lottery",
			Name:      "payouts_total",
			Help:      "Lottery winner payouts by entity kind.",
		}, []string{"entity_kind"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "closure",
			Name:      "sweep_runs_total",
			Help:      "Deadline sweep runs by outcome.",
		}, []string{"outcome"}),
		notifyDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Winner notifications by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		r.unitAttempts,
		r.unitRetries,
		r.unitExhausted,
		r.partialCommits,
		r.ledgerAppends,
		r.lotteryPayouts,
		r.sweepRuns,
		r.notifyDelivered,
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Registry) UnitAttempted(stores []txcoord.StoreID) {
	r.unitAttempts.WithLabelValues(storeLabel(stores)).Inc()
}

func (r *Registry) UnitRetried(stores []txcoord.StoreID, kind txcoord.Kind) {
	r.unitRetries.WithLabelValues(storeLabel(stores), string(kind)).Inc()
}

func (r *Registry) UnitExhausted(stores []txcoord.StoreID) {
	r.unitExhausted.WithLabelValues(storeLabel(stores)).Inc()
}

func (r *Registry) PartialCommit(failed txcoord.StoreID, _ []txcoord.StoreID) {
	r.partialCommits.WithLabelValues(string(failed)).Inc()
}

func (r *Registry) LedgerAppended(kind string) {
	r.ledgerAppends.WithLabelValues(kind).Inc()
}

func (r *Registry) PayoutMade(entityKind string) {
	r.lotteryPayouts.WithLabelValues(entityKind).Inc()
}

func (r *Registry) SweepRun(outcome string) {
	r.sweepRuns.WithLabelValues(outcome).Inc()
}

func (r *Registry) NotificationDelivered(outcome string) {
	r.notifyDelivered.WithLabelValues(outcome).Inc()
}

func storeLabel(stores []txcoord.StoreID) string {
	label := ""
	for i, id := range stores {
		if i > 0 {
			label += "+"
		}
		label += string(id)
	}
	return label
}

var _ txcoord.Recorder = (*Registry)(nil)
