package candidate

import "github.com/netice/ice/transport"

// PairState is the state of a CandidatePair, spec.md Section 3
// "CandidatePair", RFC 8445 Section 6.1.2.6.
type PairState byte

// Supported pair states.
const (
	PairFrozen PairState = iota
	PairWaiting
	PairInProgress
	PairSucceeded
	PairFailed
)

var pairStateNames = map[PairState]string{
	PairFrozen:     "frozen",
	PairWaiting:    "waiting",
	PairInProgress: "in-progress",
	PairSucceeded:  "succeeded",
	PairFailed:     "failed",
}

func (s PairState) String() string { return pairStateNames[s] }

// Pair is a (local, remote) candidate tuple, all ICE connectivity work
// happens on pairs, spec.md Section 3 "CandidatePair".
type Pair struct {
	Local      Candidate
	Remote     Candidate
	Priority   uint64
	State      PairState
	Nominated  bool
	// Valid is set once a successful check produced a valid pair for
	// this (local,remote) tuple; a pair can be Valid without being the
	// component's selected pair.
	Valid bool
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// PairPriority computes the pair priority, spec.md Section 3
// "CandidatePair": 2^32*min(G,D) + 2*max(G,D) + (G>D?1:0), where G and D
// are the controlling and controlled candidate priorities. This is
// independent of which side computes it (spec.md Section 8 property 5).
func PairPriority(controlling, controlled uint32) uint64 {
	g, d := uint64(controlling), uint64(controlled)
	v := (uint64(1)<<32)*minU64(g, d) + 2*maxU64(g, d)
	if g > d {
		v++
	}
	return v
}

// Foundation is the pair foundation, the concatenation of the local and
// remote candidate foundations, used to group pairs for freezing.
func (p Pair) Foundation() string { return p.Local.Foundation + "/" + p.Remote.Foundation }

// Equal reports whether two pairs compare equal: their endpoints compare
// equal, spec.md Section 3 invariant.
func (p Pair) Equal(o Pair) bool {
	return p.Local.Equal(o.Local) && p.Remote.Equal(o.Remote)
}

// Pairs is a priority-descending ordered list of Pair.
type Pairs []Pair

func (p Pairs) Len() int           { return len(p) }
func (p Pairs) Less(i, j int) bool { return p[i].Priority > p[j].Priority }
func (p Pairs) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

func sameFamily(a, b transport.Address) bool { return a.Family() == b.Family() }

// NewPairs pairs each local candidate with each remote candidate sharing a
// component id and address family, spec.md Section 4.6 "Pair formation".
// Local and remote should be priority-sorted; the result is not yet
// pruned, ordered or prioritized (see ice.Agent.StartChecks for the
// full pipeline).
func NewPairs(local, remote Candidates) Pairs {
	pairs := make(Pairs, 0, len(local)*len(remote))
	for _, l := range local {
		for _, r := range remote {
			if l.ComponentID != r.ComponentID {
				continue
			}
			if !sameFamily(l.TransportAddress, r.TransportAddress) {
				continue
			}
			if l.TransportAddress.IsLinkLocal() != r.TransportAddress.IsLinkLocal() {
				// IPv6 link-local addresses MUST NOT be paired with
				// anything but another link-local address.
				continue
			}
			pairs = append(pairs, Pair{Local: l, Remote: r})
		}
	}
	return pairs
}

// ReplaceSrflxWithBase replaces any pair whose local candidate is
// server-reflexive with a pair using its base instead, since checks are
// actually sent from the base socket, spec.md Section 4.6 "Pair
// formation".
func ReplaceSrflxWithBase(pairs Pairs, byAddr map[string]Candidate) Pairs {
	out := make(Pairs, len(pairs))
	for i, p := range pairs {
		if p.Local.Type == ServerReflexive {
			if base, ok := byAddr[p.Local.Base.String()]; ok {
				p.Local = base
			}
		}
		out[i] = p
	}
	return out
}

// Dedup drops pairs that are identical after ReplaceSrflxWithBase,
// keeping the first (highest priority, if pairs is sorted) occurrence.
func Dedup(pairs Pairs) Pairs {
	out := make(Pairs, 0, len(pairs))
Outer:
	for _, p := range pairs {
		for _, k := range out {
			if k.Equal(p) {
				continue Outer
			}
		}
		out = append(out, p)
	}
	return out
}
