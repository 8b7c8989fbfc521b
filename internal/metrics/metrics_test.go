package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsRegisterAndCollect(t *testing.T) {
	m := New(prometheus.Labels{"agent": "test"})
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(m); err != nil {
		t.Fatalf("register: %v", err)
	}

	m.IncChecksSent()
	m.IncChecksSent()
	m.IncChecksSucceeded()
	m.IncChecksFailed()
	m.IncPairsNominated()
	m.IncCandidatesGathered("host")
	m.IncCandidatesGathered("srflx")
	m.ObserveGatheringDuration(0.05)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected at least one metric family")
	}
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.IncChecksSent()
	r.IncChecksSucceeded()
	r.IncChecksFailed()
	r.IncPairsNominated()
	r.IncCandidatesGathered("host")
	r.ObserveGatheringDuration(1)
}
