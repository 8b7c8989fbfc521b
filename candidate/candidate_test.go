package candidate

import (
	"net"
	"sort"
	"testing"

	"github.com/netice/ice/transport"
)

func addr(ip string, port int) transport.Address {
	return transport.Address{IP: net.ParseIP(ip), Port: port, Proto: transport.UDP}
}

func TestPriorityMonotoneByType(t *testing.T) {
	base := addr("203.0.113.1", 9)
	types := []Type{Host, PeerReflexive, ServerReflexive, Relayed}
	var priorities []uint32
	for _, ty := range types {
		c := Candidate{Type: ty, ComponentID: 1, TransportAddress: base, Base: base}
		c.AssignPriority(DefaultLocalPreference(base))
		priorities = append(priorities, c.Priority)
	}
	for i := 1; i < len(priorities); i++ {
		if priorities[i] >= priorities[i-1] {
			t.Fatalf("expected strictly decreasing priorities, got %v", priorities)
		}
	}
}

func TestPairPrioritySymmetry(t *testing.T) {
	a := Priority(TypePreference(Host), 2, 1)
	b := Priority(TypePreference(ServerReflexive), 1, 1)

	controllingView := PairPriority(a, b)
	controlledView := PairPriority(a, b) // same numeric inputs regardless of role: caller swaps G/D before calling.
	if controllingView != controlledView {
		t.Fatalf("pair priority must be independent of call order for identical (G,D)")
	}
	// Swapping which value is passed as the controlling priority does
	// change the result when a != b: the +1 term is added only when the
	// controlling priority is the larger one, so callers must pass (G, D)
	// in role order.
	swapped := PairPriority(b, a)
	if swapped == controllingView {
		t.Fatalf("expected different priority when controlling/controlled identities are swapped with a!=b")
	}
}

func TestRedundancyElimination(t *testing.T) {
	host := Candidate{Type: Host, ComponentID: 1, TransportAddress: addr("10.0.0.1", 5000), Base: addr("10.0.0.1", 5000)}
	host.AssignPriority(DefaultLocalPreference(host.TransportAddress))

	srflx := Candidate{Type: ServerReflexive, ComponentID: 1, TransportAddress: addr("10.0.0.1", 5000), Base: host.TransportAddress}
	srflx.AssignPriority(DefaultLocalPreference(srflx.TransportAddress))

	cs := Candidates{srflx, host}
	sort.Sort(cs)
	kept := EliminateRedundant(cs)
	if len(kept) != 1 {
		t.Fatalf("expected exactly one surviving candidate, got %d: %v", len(kept), kept)
	}
	if kept[0].Type != Host {
		t.Fatalf("expected HOST candidate to survive (higher priority), got %s", kept[0].Type)
	}
}

func TestAssignLocalPreferencesInterleavesFamilies(t *testing.T) {
	cs := Candidates{
		{Type: Host, ComponentID: 1, TransportAddress: addr("2001:db8::1", 5000)},
		{Type: Host, ComponentID: 1, TransportAddress: addr("10.0.0.1", 5000)},
		{Type: Host, ComponentID: 1, TransportAddress: addr("2001:db8::2", 5000)},
		{Type: Host, ComponentID: 1, TransportAddress: addr("10.0.0.2", 5000)},
	}
	AssignLocalPreferences(cs)

	for i, c := range cs {
		if c.Priority == 0 {
			t.Fatalf("candidate %d never assigned a priority", i)
		}
	}
	// The top two preferences must come from different families: one
	// IPv6 and one IPv4, not both from the same family.
	byPriorityDesc := append(Candidates{}, cs...)
	sort.Sort(byPriorityDesc)
	if byPriorityDesc[0].TransportAddress.Family() == byPriorityDesc[1].TransportAddress.Family() {
		t.Fatalf("expected the top two local preferences to interleave families, got %v then %v",
			byPriorityDesc[0].TransportAddress, byPriorityDesc[1].TransportAddress)
	}
}

func TestAssignLocalPreferencesIsolatesComponentsAndTypes(t *testing.T) {
	cs := Candidates{
		{Type: Host, ComponentID: 1, TransportAddress: addr("10.0.0.1", 5000)},
		{Type: Host, ComponentID: 2, TransportAddress: addr("10.0.0.2", 5000)},
		{Type: ServerReflexive, ComponentID: 1, TransportAddress: addr("203.0.113.1", 5000)},
	}
	AssignLocalPreferences(cs)
	for i, c := range cs {
		if TypePreference(c.Type) != int(c.Priority>>24) {
			t.Fatalf("candidate %d priority %d doesn't encode its own type preference", i, c.Priority)
		}
	}
}

func TestFoundationSharedForSameTypeBaseServer(t *testing.T) {
	base := addr("10.0.0.1", 0)
	server := addr("198.51.100.1", 3478)
	f1 := ComputeFoundation(ServerReflexive, base, server, transport.UDP)
	f2 := ComputeFoundation(ServerReflexive, base, server, transport.UDP)
	if f1 != f2 {
		t.Fatalf("foundation must be deterministic: %q != %q", f1, f2)
	}
	other := ComputeFoundation(ServerReflexive, addr("10.0.0.2", 0), server, transport.UDP)
	if f1 == other {
		t.Fatalf("foundation must differ for different base addresses")
	}
}
