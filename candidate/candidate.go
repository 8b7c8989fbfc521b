// Package candidate implements the ICE candidate and pair model: types,
// priority, foundation, base relation and pair priority, spec.md Section
// 3 "Candidate" and "CandidatePair", grounded on
// github.com/gortc/ice's candidate.go, priority.go and pair.go.
package candidate

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/netice/ice/transport"
)

// Type is the ICE candidate type, RFC 8445 Section 5.1.1.
type Type byte

// Supported candidate types.
const (
	Host Type = iota
	ServerReflexive
	PeerReflexive
	Relayed
)

func (t Type) String() string {
	switch t {
	case Host:
		return "host"
	case ServerReflexive:
		return "srflx"
	case PeerReflexive:
		return "prflx"
	case Relayed:
		return "relay"
	default:
		return "unknown"
	}
}

// typePreferences are the RECOMMENDED type preference values, spec.md
// Section 3 "priority (computed as ...)".
var typePreferences = map[Type]int{
	Host:            126,
	PeerReflexive:   110,
	ServerReflexive: 100,
	Relayed:         0,
}

// TypePreference returns the recommended type preference for t.
func TypePreference(t Type) int { return typePreferences[t] }

const foundationLength = 8

// Candidate is a potential transport address for a component, spec.md
// Section 3.
type Candidate struct {
	TransportAddress transport.Address
	Base             transport.Address
	Related          transport.Address // set for SRFLX/RELAYED
	Type             Type
	Foundation       string
	ComponentID      int
	Priority         uint32
	// ServerAddr is the STUN/TURN server this candidate was learned
	// through, used by Foundation; the zero value is valid for HOST.
	ServerAddr transport.Address
}

// Equal reports whether c and b describe the same candidate.
func (c Candidate) Equal(b Candidate) bool {
	return c.TransportAddress.Equal(b.TransportAddress) &&
		c.Base.Equal(b.Base) &&
		c.Type == b.Type &&
		c.ComponentID == b.ComponentID
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s %s prio=%d base=%s found=%s comp=%d",
		c.Type, c.TransportAddress, c.Priority, c.Base, c.Foundation, c.ComponentID)
}

// IsHost reports whether c is its own base, the defining property of a
// HOST or RELAYED candidate, spec.md Section 3 "Candidate".
func (c Candidate) IsHost() bool { return c.Base.Equal(c.TransportAddress) }

// ComputeFoundation computes the foundation for a candidate: equal for two
// candidates that share type, base IP, STUN/TURN server IP and transport,
// spec.md Section 3.
func ComputeFoundation(t Type, base transport.Address, server transport.Address, proto transport.Protocol) string {
	h := sha256.New()
	h.Write([]byte{byte(t)}) // #nosec G104
	if base.IP != nil {
		h.Write(base.IP) // #nosec G104
	}
	h.Write([]byte{byte(proto)}) // #nosec G104
	if server.IP != nil {
		h.Write(server.IP)            // #nosec G104
		h.Write([]byte{byte(proto)}) // #nosec G104
	}
	sum := h.Sum(nil)
	return fmt.Sprintf("%x", sum[:foundationLength])
}

// localPreference ranks candidates of the same type for Priority: IPv6
// global first, then IPv4, then link-local, spec.md Section 3.
func localPreference(a transport.Address) int {
	switch {
	case a.Family() == transport.FamilyIPv6 && !a.IsLinkLocal():
		return 2
	case a.Family() == transport.FamilyIPv4:
		return 1
	default:
		return 0
	}
}

// Priority computes the candidate priority, spec.md Section 3:
//
//	priority = (2^24)*type_pref + (2^8)*local_pref + (2^0)*(256-component_id)
func Priority(typePref, localPref, componentID int) uint32 {
	return uint32(typePref)<<24 + uint32(localPref)<<8 + uint32(256-componentID)
}

// AssignPriority sets c.Priority from c.Type, the given local preference
// and c.ComponentID.
func (c *Candidate) AssignPriority(localPref int) {
	c.Priority = Priority(TypePreference(c.Type), localPref, c.ComponentID)
}

// DefaultLocalPreference is localPreference exported for harvesters that
// need to rank candidates before assigning priorities.
func DefaultLocalPreference(a transport.Address) int { return localPreference(a) }

// AssignLocalPreferences assigns priorities to every candidate in cs
// sharing a (ComponentID, Type) group using RFC 8421 Section 4's
// dual-stack interleaving instead of localPreference's flat
// IPv6-then-IPv4 bucketing: within a group, IPv6 and IPv4 addresses
// alternate as the local preference counts down from 65535, so a
// component with both families advertises some of each near the top
// of the range instead of every IPv6 candidate outranking every IPv4
// one. cs is mutated in place; a candidate that is alone in its
// (ComponentID, Type) group gets the top-of-range value 65535.
func AssignLocalPreferences(cs Candidates) {
	type groupKey struct {
		component int
		typ       Type
	}
	groups := make(map[groupKey][]int)
	for i, c := range cs {
		k := groupKey{c.ComponentID, c.Type}
		groups[k] = append(groups[k], i)
	}
	for _, idxs := range groups {
		var v6, v4, other []int
		for _, i := range idxs {
			switch {
			case cs[i].TransportAddress.Family() == transport.FamilyIPv6 && !cs[i].TransportAddress.IsLinkLocal():
				v6 = append(v6, i)
			case cs[i].TransportAddress.Family() == transport.FamilyIPv4:
				v4 = append(v4, i)
			default:
				other = append(other, i)
			}
		}
		// Interleave starting with whichever family has more addresses
		// to gather, so neither family is starved of high preference
		// values when the counts are uneven.
		var order []int
		a, b := v6, v4
		if len(v4) > len(v6) {
			a, b = v4, v6
		}
		for len(a) > 0 || len(b) > 0 {
			if len(a) > 0 {
				order = append(order, a[0])
				a = a[1:]
			}
			if len(b) > 0 {
				order = append(order, b[0])
				b = b[1:]
			}
		}
		order = append(order, other...)
		pref := 65535
		for _, i := range order {
			cs[i].AssignPriority(pref)
			if pref > 0 {
				pref--
			}
		}
	}
}

// Candidates is a priority-descending ordered list of Candidate.
type Candidates []Candidate

func (c Candidates) Len() int           { return len(c) }
func (c Candidates) Less(i, j int) bool { return c[i].Priority > c[j].Priority }
func (c Candidates) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }

// EliminateRedundant drops candidates whose (TransportAddress, Base) pair
// duplicates one already kept at higher priority, spec.md Section 4.6
// "Redundancy elimination". cs must already be sorted by priority
// descending (see sort.Sort(cs) via Candidates).
func EliminateRedundant(cs Candidates) Candidates {
	kept := make(Candidates, 0, len(cs))
Outer:
	for _, c := range cs {
		for _, k := range kept {
			if k.TransportAddress.Equal(c.TransportAddress) && k.Base.Equal(c.Base) {
				continue Outer
			}
		}
		kept = append(kept, c)
	}
	return kept
}

// foundationKeyEqual reports whether two raw foundation encodings are
// equal byte for byte.
func foundationKeyEqual(a, b []byte) bool { return bytes.Equal(a, b) }
