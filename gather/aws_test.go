package gather

import (
	"context"
	"net"
	"testing"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/transport"
)

type fakeAWSProvider struct {
	private, public transport.Address
	ok              bool
}

func (p fakeAWSProvider) PrivatePublicPair(ctx context.Context) (transport.Address, transport.Address, bool) {
	return p.private, p.public, p.ok
}

func TestAWSHarvesterMatchesInternal(t *testing.T) {
	private := transport.Address{IP: net.ParseIP("10.0.0.5"), Port: 9000, Proto: transport.UDP}
	public := transport.Address{IP: net.ParseIP("203.0.113.9"), Port: 9000, Proto: transport.UDP}
	h := NewAWSHarvester(fakeAWSProvider{private: private, public: public, ok: true}, false)
	cs, err := h.Gather(context.Background(), 1, &fakeSocket{local: private})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs) != 1 || cs[0].Type != candidate.ServerReflexive {
		t.Fatalf("expected one SRFLX candidate, got %v", cs)
	}
}

func TestAWSHarvesterSkipsNonMatchingWithoutForce(t *testing.T) {
	private := transport.Address{IP: net.ParseIP("10.0.0.5"), Port: 9000, Proto: transport.UDP}
	public := transport.Address{IP: net.ParseIP("203.0.113.9"), Port: 9000, Proto: transport.UDP}
	h := NewAWSHarvester(fakeAWSProvider{private: private, public: public, ok: true}, false)
	other := transport.Address{IP: net.ParseIP("10.0.0.6"), Port: 9000, Proto: transport.UDP}
	cs, err := h.Gather(context.Background(), 1, &fakeSocket{local: other})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs) != 0 {
		t.Fatalf("expected no candidates for non-matching socket, got %d", len(cs))
	}
}

func TestAWSHarvesterForceIgnoresMismatch(t *testing.T) {
	public := transport.Address{IP: net.ParseIP("203.0.113.9"), Port: 9000, Proto: transport.UDP}
	h := NewAWSHarvester(fakeAWSProvider{public: public, ok: true}, true)
	other := transport.Address{IP: net.ParseIP("10.0.0.6"), Port: 9000, Proto: transport.UDP}
	cs, err := h.Gather(context.Background(), 1, &fakeSocket{local: other})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs) != 1 {
		t.Fatalf("expected force to add the candidate anyway, got %d", len(cs))
	}
}

func TestAWSHarvesterSkipsWhenUnreachable(t *testing.T) {
	h := NewAWSHarvester(fakeAWSProvider{ok: false}, true)
	cs, err := h.Gather(context.Background(), 1, &fakeSocket{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs) != 0 {
		t.Fatalf("expected no candidate when the metadata endpoint is unreachable, got %d", len(cs))
	}
}
