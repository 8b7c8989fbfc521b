package ice

import (
	"net"
	"testing"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/transport"
)

func addr(ip string, port int) transport.Address {
	return transport.Address{IP: net.ParseIP(ip), Port: port, Proto: transport.UDP}
}

func hostCandidate(ip string, port, componentID int, foundation string) candidate.Candidate {
	a := addr(ip, port)
	return candidate.Candidate{
		TransportAddress: a,
		Base:             a,
		Type:             candidate.Host,
		ComponentID:      componentID,
		Foundation:       foundation,
		Priority:         candidate.Priority(candidate.TypePreference(candidate.Host), 1, componentID),
	}
}

func TestChecklistFreezesAllButFirstPerFoundation(t *testing.T) {
	local := hostCandidate("10.0.0.1", 5000, 1, "f1")
	remote1 := hostCandidate("10.0.0.2", 6000, 1, "r1")
	remote2 := hostCandidate("10.0.0.3", 6001, 1, "r1")
	pairs := candidate.Pairs{
		{Local: local, Remote: remote1, Priority: 100},
		{Local: local, Remote: remote2, Priority: 50},
	}
	cl := NewChecklist(pairs)
	got := cl.Pairs()
	if got[0].State != candidate.PairWaiting {
		t.Fatalf("expected highest priority pair Waiting, got %s", got[0].State)
	}
	if got[1].State != candidate.PairFrozen {
		t.Fatalf("expected second same-foundation pair Frozen, got %s", got[1].State)
	}
}

func TestChecklistNextPrefersTriggered(t *testing.T) {
	local := hostCandidate("10.0.0.1", 5000, 1, "f1")
	remote1 := hostCandidate("10.0.0.2", 6000, 1, "f1")
	remote2 := hostCandidate("10.0.0.3", 6001, 1, "f1")
	pairs := candidate.Pairs{
		{Local: local, Remote: remote1, Priority: 50},
		{Local: local, Remote: remote2, Priority: 100},
	}
	cl := NewChecklist(pairs)
	// After sorting, remote2's pair (higher prio) is index 0 and Waiting
	// and remote1's pair is index 1 and Frozen; trigger index 1 and
	// expect it to jump the ordinary schedule.
	cl.Trigger(1)
	i, ok := cl.Next()
	if !ok {
		t.Fatal("expected a schedulable pair")
	}
	if i != 1 {
		t.Fatalf("expected triggered pair to be scheduled first, got index %d", i)
	}
}

func TestChecklistCompleteUnfreezesSiblingFoundation(t *testing.T) {
	local1 := hostCandidate("10.0.0.1", 5000, 1, "fa")
	local2 := hostCandidate("10.0.0.1", 5000, 1, "fa")
	remote := hostCandidate("10.0.0.2", 6000, 1, "fb")
	other := hostCandidate("10.0.0.3", 6001, 1, "fb")
	pairs := candidate.Pairs{
		{Local: local1, Remote: remote, Priority: 100},
		{Local: local2, Remote: other, Priority: 90},
	}
	cl := NewChecklist(pairs)
	got := cl.Pairs()
	if got[1].State != candidate.PairFrozen {
		t.Fatalf("expected sibling-foundation pair to start Frozen, got %s", got[1].State)
	}
	cl.Complete(0, true, false)
	got = cl.Pairs()
	if got[1].State != candidate.PairWaiting {
		t.Fatalf("expected sibling pair unfrozen after success, got %s", got[1].State)
	}
}

func TestChecklistSelectedPairRequiresNominatedAndValid(t *testing.T) {
	local := hostCandidate("10.0.0.1", 5000, 1, "f1")
	remote := hostCandidate("10.0.0.2", 6000, 1, "f1")
	pairs := candidate.Pairs{{Local: local, Remote: remote, Priority: 100}}
	cl := NewChecklist(pairs)
	if _, ok := cl.SelectedPair(1); ok {
		t.Fatal("expected no selected pair before completion")
	}
	cl.Complete(0, true, true)
	p, ok := cl.SelectedPair(1)
	if !ok {
		t.Fatal("expected a selected pair after nominated success")
	}
	if !p.Remote.TransportAddress.Equal(remote.TransportAddress) {
		t.Fatalf("unexpected selected pair remote: %s", p.Remote.TransportAddress)
	}
}

func TestChecklistDone(t *testing.T) {
	local := hostCandidate("10.0.0.1", 5000, 1, "f1")
	remote := hostCandidate("10.0.0.2", 6000, 1, "f1")
	pairs := candidate.Pairs{{Local: local, Remote: remote, Priority: 100}}
	cl := NewChecklist(pairs)
	if cl.Done() {
		t.Fatal("expected checklist not done before any check completes")
	}
	cl.Complete(0, false, false)
	if !cl.Done() {
		t.Fatal("expected checklist done once its only pair reaches a terminal state")
	}
}
