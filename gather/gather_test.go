package gather

import (
	"context"
	"net"
	"testing"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/internal/filter"
	"github.com/netice/ice/socket"
	"github.com/netice/ice/transport"
)

func filterAllowOnlyBogusInterface() filter.InterfaceNames {
	return filter.NewInterfaceFilter([]string{"does-not-exist-0"}, nil)
}

type fakeSocket struct {
	local transport.Address
}

func (f *fakeSocket) SetHandler(fn func(b []byte, src transport.Address)) {}
func (f *fakeSocket) LocalAddr() transport.Address                       { return f.local }
func (f *fakeSocket) SendTo(b []byte, dst transport.Address) error        { return nil }
func (f *fakeSocket) Close() error                                       { return nil }

var _ socket.Socket = (*fakeSocket)(nil)

func TestHostHarvesterSkipsLoopback(t *testing.T) {
	h := NewHostHarvester()
	base := &fakeSocket{local: transport.Address{IP: net.ParseIP("0.0.0.0"), Port: 5000, Proto: transport.UDP}}
	cs, err := h.Gather(context.Background(), 1, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range cs {
		if c.TransportAddress.IsLoopback() {
			t.Fatalf("loopback candidate leaked: %v", c)
		}
		if c.Type != candidate.Host {
			t.Fatalf("expected HOST candidate, got %s", c.Type)
		}
	}
}

func TestHostHarvesterAllowedInterfacesExcludesEverythingElse(t *testing.T) {
	h := NewHostHarvester()
	h.Interfaces = filterAllowOnlyBogusInterface()
	base := &fakeSocket{local: transport.Address{IP: net.ParseIP("0.0.0.0"), Port: 5000, Proto: transport.UDP}}
	cs, err := h.Gather(context.Background(), 1, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs) != 0 {
		t.Fatalf("expected an allow list naming no real interface to exclude every candidate, got %d", len(cs))
	}
}

func TestStaticMappingHarvesterMatchesInternal(t *testing.T) {
	internal := transport.Address{IP: net.ParseIP("10.0.0.5"), Port: 9000, Proto: transport.UDP}
	external := transport.Address{IP: net.ParseIP("203.0.113.9"), Port: 9000, Proto: transport.UDP}
	h := NewStaticMappingHarvester([]StaticMapping{{Internal: internal, External: external}})
	base := &fakeSocket{local: internal}

	cs, err := h.Gather(context.Background(), 1, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs) != 1 {
		t.Fatalf("expected one candidate, got %d", len(cs))
	}
	if !cs[0].TransportAddress.Equal(external) {
		t.Fatalf("expected external address %v, got %v", external, cs[0].TransportAddress)
	}
	if cs[0].Type != candidate.ServerReflexive {
		t.Fatalf("expected SRFLX candidate, got %s", cs[0].Type)
	}
}

func TestStaticMappingHarvesterSkipsNonMatchingSocket(t *testing.T) {
	h := NewStaticMappingHarvester([]StaticMapping{{
		Internal: transport.Address{IP: net.ParseIP("10.0.0.5"), Port: 9000, Proto: transport.UDP},
		External: transport.Address{IP: net.ParseIP("203.0.113.9"), Port: 9000, Proto: transport.UDP},
	}})
	base := &fakeSocket{local: transport.Address{IP: net.ParseIP("10.0.0.6"), Port: 9000, Proto: transport.UDP}}
	cs, err := h.Gather(context.Background(), 1, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs) != 0 {
		t.Fatalf("expected no candidates for non-matching socket, got %d", len(cs))
	}
}

func TestStaticMappingHarvesterMatchesByFaceIPReusingHostPort(t *testing.T) {
	h := NewStaticMappingHarvester([]StaticMapping{{
		Internal: transport.Address{IP: net.ParseIP("10.0.0.1"), Port: 10000, Proto: transport.UDP},
		External: transport.Address{IP: net.ParseIP("192.168.255.255"), Port: 10000, Proto: transport.UDP},
	}})

	first := &fakeSocket{local: transport.Address{IP: net.ParseIP("10.0.0.1"), Port: 10000, Proto: transport.UDP}}
	cs, err := h.Gather(context.Background(), 1, first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs) != 1 || !cs[0].TransportAddress.Equal(transport.Address{IP: net.ParseIP("192.168.255.255"), Port: 10000, Proto: transport.UDP}) {
		t.Fatalf("expected 192.168.255.255:10000, got %v", cs)
	}

	second := &fakeSocket{local: transport.Address{IP: net.ParseIP("10.0.0.1"), Port: 11111, Proto: transport.UDP}}
	cs, err = h.Gather(context.Background(), 1, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs) != 1 || !cs[0].TransportAddress.Equal(transport.Address{IP: net.ParseIP("192.168.255.255"), Port: 11111, Proto: transport.UDP}) {
		t.Fatalf("expected 192.168.255.255:11111 (host's own port reused), got %v", cs)
	}
}

func TestStaticMappingHarvesterDiscardsFaceEqualToMask(t *testing.T) {
	h := NewStaticMappingHarvester([]StaticMapping{{
		Internal: transport.Address{IP: net.ParseIP("10.0.0.1"), Port: 10000, Proto: transport.UDP},
		External: transport.Address{IP: net.ParseIP("10.0.0.1"), Port: 10000, Proto: transport.UDP},
	}})
	base := &fakeSocket{local: transport.Address{IP: net.ParseIP("10.0.0.1"), Port: 10000, Proto: transport.UDP}}
	cs, err := h.Gather(context.Background(), 1, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs) != 0 {
		t.Fatalf("expected face==mask mapping to be discarded, got %d candidates", len(cs))
	}
}
