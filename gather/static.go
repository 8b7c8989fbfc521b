package gather

import (
	"context"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/socket"
	"github.com/netice/ice/transport"
)

// StaticMappingHarvester synthesizes SERVER-REFLEXIVE candidates from
// operator-configured 1:1 NAT mappings with zero network round trips,
// spec.md Section 4.4 "Static mappings". Per the Open Question
// decision in DESIGN.md, this is one harvester covering both the
// lookup of configured mappings and the candidate synthesis, rather
// than two chained harvesters.
type StaticMappingHarvester struct {
	mappings []StaticMapping
}

// NewStaticMappingHarvester builds a harvester over mappings.
func NewStaticMappingHarvester(mappings []StaticMapping) *StaticMappingHarvester {
	return &StaticMappingHarvester{mappings: mappings}
}

// Gather returns one SERVER-REFLEXIVE candidate per configured mapping
// whose Internal address's IP matches base's local IP, spec.md Section
// 4.4 "Static mappings": the mapping describes a face (an interface IP
// behind 1:1 NAT), not a single socket, so every host candidate bound
// to that IP on any port gets its own synthesized external candidate
// at the same port on the mapping's external IP. A mapping whose face
// equals its mask (Internal and External name the same IP) describes
// no real translation and is discarded.
func (h *StaticMappingHarvester) Gather(ctx context.Context, componentID int, base socket.Socket) (candidate.Candidates, error) {
	local := base.LocalAddr()
	var cs candidate.Candidates
	for _, m := range h.mappings {
		if m.Internal.IP.Equal(m.External.IP) {
			continue
		}
		if !m.Internal.IP.Equal(local.IP) {
			continue
		}
		external := transport.Address{IP: m.External.IP, Port: local.Port, Proto: local.Proto}
		c := candidate.Candidate{
			TransportAddress: external,
			Base:             local,
			Type:             candidate.ServerReflexive,
			ComponentID:      componentID,
		}
		c.Foundation = candidate.ComputeFoundation(candidate.ServerReflexive, local, external, local.Proto)
		c.AssignPriority(candidate.DefaultLocalPreference(external))
		cs = append(cs, c)
	}
	return cs, nil
}
