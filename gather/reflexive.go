package gather

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/socket"
	"github.com/netice/ice/stun"
	"github.com/netice/ice/transaction"
	"github.com/netice/ice/transport"
)

// ReflexiveHarvester discovers a SERVER-REFLEXIVE candidate with a
// single STUN Binding request/response exchange against server,
// spec.md Section 4.4 "Server-reflexive candidates".
type ReflexiveHarvester struct {
	server  transport.Address
	timeout time.Duration
	log     *zap.Logger
}

// NewReflexiveHarvester targets server, an already-resolved STUN
// server transport address.
func NewReflexiveHarvester(server transport.Address, timeout time.Duration, log *zap.Logger) *ReflexiveHarvester {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReflexiveHarvester{server: server, timeout: timeout, log: log.Named("gather.srflx")}
}

// Gather sends one Binding request and turns its XOR-MAPPED-ADDRESS
// into a SERVER-REFLEXIVE candidate. Per spec.md Section 4.4 "Partial
// failure", an unreachable server yields zero candidates, not an
// error.
func (h *ReflexiveHarvester) Gather(ctx context.Context, componentID int, base socket.Socket) (candidate.Candidates, error) {
	req := stun.New()
	req.Type = stun.NewType(stun.MethodBinding, stun.ClassRequest)
	req.WriteHeader()

	sender := socketSender{base}
	cfg := transaction.DefaultClientConfig()
	if h.timeout > 0 {
		cfg.TCPTimeout = h.timeout
	}
	udp := base.LocalAddr().Proto == transport.UDP
	tx := transaction.NewClientTransaction(ctx, sender, h.server, req, udp, cfg, h.log)

	respCh := make(chan *stun.Message, 1)
	done := make(chan struct{})
	base.SetHandler(func(b []byte, src transport.Address) {
		if !src.Equal(h.server) || !stun.IsMessage(b) {
			return
		}
		var m stun.Message
		if err := stun.Decode(b, &m); err != nil {
			if _, ok := err.(*stun.UnknownAttributesError); !ok {
				return
			}
		}
		if m.TransactionID != req.TransactionID {
			return
		}
		select {
		case respCh <- &m:
		default:
		}
		tx.HandleResponse(&m)
		close(done)
	})

	select {
	case r := <-tx.Done():
		if r.Err != nil {
			h.log.Debug("reflexive gather failed", zap.Error(r.Err))
			return nil, nil
		}
		return h.toCandidate(componentID, base, r.Message), nil
	case <-ctx.Done():
		tx.Cancel()
		return nil, nil
	}
}

func (h *ReflexiveHarvester) toCandidate(componentID int, base socket.Socket, resp *stun.Message) candidate.Candidates {
	var xma stun.XORMappedAddress
	if err := xma.GetFrom(resp); err != nil {
		return nil
	}
	reflexive := transport.Address{IP: xma.IP, Port: xma.Port, Proto: base.LocalAddr().Proto}
	c := candidate.Candidate{
		TransportAddress: reflexive,
		Base:             base.LocalAddr(),
		Type:             candidate.ServerReflexive,
		ComponentID:      componentID,
		ServerAddr:       h.server,
	}
	c.Foundation = candidate.ComputeFoundation(candidate.ServerReflexive, c.Base, h.server, c.Base.Proto)
	c.AssignPriority(candidate.DefaultLocalPreference(reflexive))
	return candidate.Candidates{c}
}

// socketSender adapts a socket.Socket to transaction.Sender.
type socketSender struct{ s socket.Socket }

func (s socketSender) SendTo(b []byte, dst transport.Address) error { return s.s.SendTo(b, dst) }
