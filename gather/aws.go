package gather

import (
	"context"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/socket"
	"github.com/netice/ice/transport"
)

// AWSMetadataProvider is the narrow interface spec.md Section 6 treats
// UPnP/AWS metadata retrieval through: "a producer of (private,public)
// address pairs", explicitly out of scope to implement for real. A
// caller wires in whatever EC2 metadata client suits its deployment;
// this module supplies none.
type AWSMetadataProvider interface {
	// PrivatePublicPair returns the instance's private and public
	// addresses. ok is false when the metadata endpoint is unreachable,
	// spec.md Section 8 "S2 AWS harvester skip": "mask() returns null
	// and no mapping candidate is added."
	PrivatePublicPair(ctx context.Context) (private, public transport.Address, ok bool)
}

// AWSHarvester synthesizes a SERVER-REFLEXIVE candidate from an
// AWSMetadataProvider, generalizing StaticMappingHarvester's fixed
// pair into one resolved per Gather call.
type AWSHarvester struct {
	provider AWSMetadataProvider
	force    bool
}

// NewAWSHarvester builds a harvester over provider. force, when true,
// still adds the candidate even if provider's pair does not match
// base's local address (ENABLE_AWS_HARVESTER vs FORCE_AWS_HARVESTER,
// spec.md Section 10).
func NewAWSHarvester(provider AWSMetadataProvider, force bool) *AWSHarvester {
	return &AWSHarvester{provider: provider, force: force}
}

// Gather asks the provider for the instance's (private, public)
// address pair and returns one SERVER-REFLEXIVE candidate for base if
// the pair matches (or force is set), zero candidates if the provider
// reports ok=false.
func (h *AWSHarvester) Gather(ctx context.Context, componentID int, base socket.Socket) (candidate.Candidates, error) {
	if h.provider == nil {
		return nil, nil
	}
	private, public, ok := h.provider.PrivatePublicPair(ctx)
	if !ok {
		return nil, nil
	}
	local := base.LocalAddr()
	if !h.force && !private.Equal(local) {
		return nil, nil
	}
	c := candidate.Candidate{
		TransportAddress: public,
		Base:             local,
		Type:             candidate.ServerReflexive,
		ComponentID:      componentID,
	}
	c.Foundation = candidate.ComputeFoundation(candidate.ServerReflexive, local, public, local.Proto)
	c.AssignPriority(candidate.DefaultLocalPreference(public))
	return candidate.Candidates{c}, nil
}
