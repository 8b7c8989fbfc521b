// Package metrics exposes the prometheus series an Agent and its
// harvesters emit, spec.md Section 10's "metrics: checks sent/
// succeeded/failed, candidates gathered by type, pairs nominated,
// gathering duration", grounded on gortcd's internal/server's
// promMetrics (internal/server/server_metrics.go: a struct of
// pre-built collectors with Describe/Collect delegating to each,
// registered through a caller-supplied MetricsRegistry) and its
// internal/allocator.Allocator (a Desc map populated lazily in
// Collect rather than scraped from live prometheus types, for the
// three allocation/permission/binding gauges).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder is what an Agent and its harvesters record against. Nop
// satisfies it with no-ops so a caller that doesn't care about metrics
// never has to nil-check, mirroring noopMetrics in
// internal/server/server_metrics.go.
type Recorder interface {
	IncChecksSent()
	IncChecksSucceeded()
	IncChecksFailed()
	IncPairsNominated()
	IncCandidatesGathered(candidateType string)
	ObserveGatheringDuration(seconds float64)
}

// Nop implements Recorder with no-ops.
type Nop struct{}

// IncChecksSent implements Recorder.
func (Nop) IncChecksSent() {}

// IncChecksSucceeded implements Recorder.
func (Nop) IncChecksSucceeded() {}

// IncChecksFailed implements Recorder.
func (Nop) IncChecksFailed() {}

// IncPairsNominated implements Recorder.
func (Nop) IncPairsNominated() {}

// IncCandidatesGathered implements Recorder.
func (Nop) IncCandidatesGathered(string) {}

// ObserveGatheringDuration implements Recorder.
func (Nop) ObserveGatheringDuration(float64) {}

var _ Recorder = Nop{}

// Metrics is the prometheus.Collector implementation of Recorder, one
// per Agent the way promMetrics is one per Server.
type Metrics struct {
	checksSent        prometheus.Counter
	checksSucceeded   prometheus.Counter
	checksFailed      prometheus.Counter
	pairsNominated    prometheus.Counter
	candidatesGathered *prometheus.CounterVec
	gatheringDuration prometheus.Histogram
}

// New builds a Metrics with labels applied as prometheus ConstLabels
// to every series, the way newPromMetrics(labels) does in
// internal/server/server_metrics.go.
func New(labels prometheus.Labels) *Metrics {
	return &Metrics{
		checksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ice_checks_sent_total",
			Help:        "Connectivity checks sent.",
			ConstLabels: labels,
		}),
		checksSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ice_checks_succeeded_total",
			Help:        "Connectivity checks that received a valid response.",
			ConstLabels: labels,
		}),
		checksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ice_checks_failed_total",
			Help:        "Connectivity checks that timed out or errored.",
			ConstLabels: labels,
		}),
		pairsNominated: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ice_pairs_nominated_total",
			Help:        "Candidate pairs nominated as the selected pair for a component.",
			ConstLabels: labels,
		}),
		candidatesGathered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ice_candidates_gathered_total",
			Help:        "Candidates gathered, by candidate type.",
			ConstLabels: labels,
		}, []string{"type"}),
		gatheringDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "ice_gathering_duration_seconds",
			Help:        "Time spent running one component's harvesting pipeline.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(d chan<- *prometheus.Desc) {
	d <- m.checksSent.Desc()
	d <- m.checksSucceeded.Desc()
	d <- m.checksFailed.Desc()
	d <- m.pairsNominated.Desc()
	m.candidatesGathered.Describe(d)
	d <- m.gatheringDuration.Desc()
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(c chan<- prometheus.Metric) {
	m.checksSent.Collect(c)
	m.checksSucceeded.Collect(c)
	m.checksFailed.Collect(c)
	m.pairsNominated.Collect(c)
	m.candidatesGathered.Collect(c)
	m.gatheringDuration.Collect(c)
}

// IncChecksSent implements Recorder.
func (m *Metrics) IncChecksSent() { m.checksSent.Inc() }

// IncChecksSucceeded implements Recorder.
func (m *Metrics) IncChecksSucceeded() { m.checksSucceeded.Inc() }

// IncChecksFailed implements Recorder.
func (m *Metrics) IncChecksFailed() { m.checksFailed.Inc() }

// IncPairsNominated implements Recorder.
func (m *Metrics) IncPairsNominated() { m.pairsNominated.Inc() }

// IncCandidatesGathered implements Recorder.
func (m *Metrics) IncCandidatesGathered(candidateType string) {
	m.candidatesGathered.WithLabelValues(candidateType).Inc()
}

// ObserveGatheringDuration implements Recorder.
func (m *Metrics) ObserveGatheringDuration(seconds float64) {
	m.gatheringDuration.Observe(seconds)
}

var _ Recorder = (*Metrics)(nil)

// Registry is the subset of *prometheus.Registry a caller registers
// Metrics against, mirroring internal/server.MetricsRegistry. No
// package in this module refers to it; internal/commands registers
// Metrics on a *prometheus.Registry directly.
type Registry interface {
	Register(c prometheus.Collector) error
}
