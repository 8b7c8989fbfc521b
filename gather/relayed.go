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

// defaultAllocationLifetime is the allocation lifetime assumed when an
// Allocate response carries no LIFETIME attribute, RFC 5766 Section 2.2
// default. The Allocate request itself carries no LIFETIME.
const defaultAllocationLifetime = 600 * time.Second

// RelayedHarvester allocates a TURN relay transport address and turns
// it into a RELAYED candidate, refreshing the allocation at half its
// lifetime for as long as the harvester's context lives, spec.md
// Section 4.4 "Relayed candidates". Grounded on gortcd's
// internal/allocator.Allocator's Permission/Binding timeout-refresh
// bookkeeping, adapted from the server side (who grants allocations)
// to the client side (who requests and refreshes them) that an ICE
// agent needs.
type RelayedHarvester struct {
	cfg     TURNServerConfig
	timeout time.Duration
	log     *zap.Logger
}

// NewRelayedHarvester targets cfg.Server with cfg's long-term
// credentials.
func NewRelayedHarvester(cfg TURNServerConfig, timeout time.Duration, log *zap.Logger) *RelayedHarvester {
	if log == nil {
		log = zap.NewNop()
	}
	return &RelayedHarvester{cfg: cfg, timeout: timeout, log: log.Named("gather.relay")}
}

// Gather performs the two-request TURN Allocate handshake (an
// unauthenticated probe to learn REALM/NONCE, then an authenticated
// Allocate carrying MESSAGE-INTEGRITY) and starts a background
// refresh loop for as long as ctx is alive.
func (h *RelayedHarvester) Gather(ctx context.Context, componentID int, base socket.Socket) (candidate.Candidates, error) {
	nonce, realm, err := h.probe(ctx, base)
	if err != nil {
		h.log.Debug("allocate probe failed", zap.Error(err))
		return nil, nil
	}
	relayed, lifetime, err := h.allocate(ctx, base, nonce, realm)
	if err != nil {
		h.log.Debug("allocate failed", zap.Error(err))
		return nil, nil
	}
	go h.refreshLoop(ctx, base, nonce, realm, lifetime)

	c := candidate.Candidate{
		TransportAddress: relayed,
		Base:             relayed,
		Type:             candidate.Relayed,
		ComponentID:      componentID,
		ServerAddr:       h.cfg.Server,
	}
	c.Foundation = candidate.ComputeFoundation(candidate.Relayed, c.Base, h.cfg.Server, transport.UDP)
	c.AssignPriority(candidate.DefaultLocalPreference(relayed))
	return candidate.Candidates{c}, nil
}

// probe sends an unauthenticated Allocate request expecting a 401 with
// REALM/NONCE, RFC 5766 Section 5.2 "Receiving an Allocate Request"
// (client side of the long-term credential challenge).
func (h *RelayedHarvester) probe(ctx context.Context, base socket.Socket) (nonce []byte, realm string, err error) {
	req := stun.New()
	req.Type = stun.NewType(stun.MethodAllocate, stun.ClassRequest)
	req.WriteHeader()
	stun.ProtocolUDP.AddTo(req) // nolint:errcheck

	resp, err := h.roundTrip(ctx, base, req)
	if err != nil {
		return nil, "", err
	}
	var n stun.Nonce
	var r stun.Realm
	_ = n.GetFrom(resp)
	_ = r.GetFrom(resp)
	return []byte(n), string(r), nil
}

// allocate sends the authenticated Allocate request and decodes the
// XOR-RELAYED-ADDRESS and LIFETIME of a successful response.
func (h *RelayedHarvester) allocate(ctx context.Context, base socket.Socket, nonce []byte, realm string) (transport.Address, time.Duration, error) {
	req := stun.New()
	req.Type = stun.NewType(stun.MethodAllocate, stun.ClassRequest)
	req.WriteHeader()
	stun.ProtocolUDP.AddTo(req) // nolint:errcheck
	stun.Username(h.cfg.Username).AddTo(req)                       // nolint:errcheck
	stun.Realm(realm).AddTo(req)                                   // nolint:errcheck
	stun.Nonce(nonce).AddTo(req)                                   // nolint:errcheck
	integrity := stun.NewLongTermIntegrity(h.cfg.Username, realm, h.cfg.Password)
	integrity.AddTo(req) // nolint:errcheck

	resp, err := h.roundTrip(ctx, base, req)
	if err != nil {
		return transport.Address{}, 0, err
	}
	var xra stun.XORRelayedAddress
	if err := xra.GetFrom(resp); err != nil {
		return transport.Address{}, 0, err
	}
	var lifetime stun.Lifetime
	if err := lifetime.GetFrom(resp); err != nil {
		lifetime = stun.Lifetime(defaultAllocationLifetime)
	}
	return transport.Address{IP: xra.IP, Port: xra.Port, Proto: transport.UDP}, time.Duration(lifetime), nil
}

// refreshLoop sends a Refresh request at half the allocation's
// lifetime, RFC 5766 Section 7 "Refreshing an Allocation" recommended
// client behavior, until ctx is done.
func (h *RelayedHarvester) refreshLoop(ctx context.Context, base socket.Socket, nonce []byte, realm string, lifetime time.Duration) {
	if lifetime <= 0 {
		lifetime = defaultAllocationLifetime
	}
	t := time.NewTicker(lifetime / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			req := stun.New()
			req.Type = stun.NewType(stun.MethodRefresh, stun.ClassRequest)
			req.WriteHeader()
			stun.Username(h.cfg.Username).AddTo(req) // nolint:errcheck
			stun.Realm(realm).AddTo(req)              // nolint:errcheck
			stun.Nonce(nonce).AddTo(req)               // nolint:errcheck
			stun.Lifetime(lifetime).AddTo(req)         // nolint:errcheck
			integrity := stun.NewLongTermIntegrity(h.cfg.Username, realm, h.cfg.Password)
			integrity.AddTo(req) // nolint:errcheck
			if _, err := h.roundTrip(ctx, base, req); err != nil {
				h.log.Debug("refresh failed", zap.Error(err))
			}
		}
	}
}

func (h *RelayedHarvester) roundTrip(ctx context.Context, base socket.Socket, req *stun.Message) (*stun.Message, error) {
	sender := socketSender{base}
	cfg := transaction.DefaultClientConfig()
	if h.timeout > 0 {
		cfg.TCPTimeout = h.timeout
	}
	tx := transaction.NewClientTransaction(ctx, sender, h.cfg.Server, req, true, cfg, h.log)

	respCh := make(chan *stun.Message, 1)
	base.SetHandler(func(b []byte, src transport.Address) {
		if !src.Equal(h.cfg.Server) || !stun.IsMessage(b) {
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
	})

	select {
	case r := <-tx.Done():
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Message, nil
	case <-ctx.Done():
		tx.Cancel()
		return nil, ctx.Err()
	}
}
