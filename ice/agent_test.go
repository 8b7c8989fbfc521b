package ice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/transport"
)

// pairedSocket is an in-memory Socket wired directly to a peer
// pairedSocket, used to exercise a full connectivity check end to end
// without touching a real network, the way gortcd's server tests wire
// a net.PipeConn-backed transport instead of a UDP socket.
type pairedSocket struct {
	local   transport.Address
	mu      sync.Mutex
	handler func(b []byte, src transport.Address)
	peer    *pairedSocket
}

func newPairedSockets(a, b transport.Address) (*pairedSocket, *pairedSocket) {
	sa := &pairedSocket{local: a}
	sb := &pairedSocket{local: b}
	sa.peer, sb.peer = sb, sa
	return sa, sb
}

func (s *pairedSocket) SetHandler(fn func(b []byte, src transport.Address)) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
}

func (s *pairedSocket) LocalAddr() transport.Address { return s.local }

func (s *pairedSocket) SendTo(b []byte, dst transport.Address) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	peer := s.peer
	go func() {
		peer.mu.Lock()
		h := peer.handler
		peer.mu.Unlock()
		if h != nil {
			h(cp, s.local)
		}
	}()
	return nil
}

func (s *pairedSocket) Close() error { return nil }

func TestAgentConnectivityCheckEndToEnd(t *testing.T) {
	addrA := addr("10.0.0.1", 5000)
	addrB := addr("10.0.0.2", 6000)
	sockA, sockB := newPairedSockets(addrA, addrB)

	controlling := NewAgent(Config{
		Role:       Controlling,
		LocalUfrag: "ufragA",
		LocalPwd:   "pwdA",
	}, nil)
	controlled := NewAgent(Config{
		Role:       Controlled,
		LocalUfrag: "ufragB",
		LocalPwd:   "pwdB",
	}, nil)
	defer controlling.Close()
	defer controlled.Close()

	controlling.AddComponent(1, sockA)
	controlled.AddComponent(1, sockB)

	controlling.SetRemoteCredentials("ufragB", "pwdB")
	controlled.SetRemoteCredentials("ufragA", "pwdA")

	localA := hostCandidate("10.0.0.1", 5000, 1, "fA")
	localB := hostCandidate("10.0.0.2", 6000, 1, "fB")
	controlling.mu.Lock()
	controlling.components[1].Local = candidate.Candidates{localA}
	controlling.mu.Unlock()
	controlled.mu.Lock()
	controlled.components[1].Local = candidate.Candidates{localB}
	controlled.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	controlling.StartChecks(ctx, candidate.Candidates{localB})
	controlled.StartChecks(ctx, candidate.Candidates{localA})

	deadline := time.After(1500 * time.Millisecond)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if _, ok := controlling.checklist.SelectedPair(1); ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for a selected pair on the controlling agent")
		}
	}
}
