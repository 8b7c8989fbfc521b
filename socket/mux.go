package socket

import (
	"sync"

	"github.com/netice/ice/stun"
	"github.com/netice/ice/transport"
)

// perSourceQueueCapacity is the size of the drop-oldest queue a
// Demultiplexer keeps for each routed ufrag. Queues are keyed by the
// local ufrag, not by source address: every source whose checks name
// the same ufrag shares one queue.
const perSourceQueueCapacity = 128

// Demultiplexer fans datagrams arriving on one shared UDP socket out
// to several logical consumers (an ICE agent's components, each with
// its own local ufrag) based on the STUN USERNAME attribute, spec.md
// Section 4.3. It is the single-port analogue of gortcd's per-listener
// internal/server.Server, generalized to host more than one agent's
// checks on one socket.
type Demultiplexer struct {
	base Socket

	mu       sync.Mutex
	byUfrag  map[string]chan packet
	fallback func(b []byte, src transport.Address)
}

type packet struct {
	b   []byte
	src transport.Address
}

// NewDemultiplexer wraps base, consuming its handler slot.
func NewDemultiplexer(base Socket) *Demultiplexer {
	d := &Demultiplexer{base: base, byUfrag: make(map[string]chan packet)}
	base.SetHandler(d.dispatch)
	return d
}

// Route returns a bounded channel of datagrams whose STUN USERNAME
// attribute's local part (see transaction.LocalUfragFromUsername)
// equals ufrag. Unrouted datagrams are never requeued to a later
// caller of Route for the same ufrag.
func (d *Demultiplexer) Route(ufrag string) <-chan packetDatagram {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.byUfrag[ufrag]
	if !ok {
		ch = make(chan packet, perSourceQueueCapacity)
		d.byUfrag[ufrag] = ch
	}
	return wrap(ch)
}

// packetDatagram is the public shape handed to Route callers.
type packetDatagram struct {
	Data []byte
	Src  transport.Address
}

func wrap(ch chan packet) <-chan packetDatagram {
	out := make(chan packetDatagram, cap(ch))
	go func() {
		for p := range ch {
			out <- packetDatagram{Data: p.b, Src: p.src}
		}
	}()
	return out
}

// Unroute stops delivering to ufrag and releases its queue.
func (d *Demultiplexer) Unroute(ufrag string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.byUfrag[ufrag]; ok {
		close(ch)
		delete(d.byUfrag, ufrag)
	}
}

// SetFallback installs a handler for datagrams that do not carry a
// routable USERNAME (or are TURN ChannelData, which never does). No
// package in this module installs one.
func (d *Demultiplexer) SetFallback(fn func(b []byte, src transport.Address)) {
	d.mu.Lock()
	d.fallback = fn
	d.mu.Unlock()
}

func (d *Demultiplexer) dispatch(b []byte, src transport.Address) {
	ufrag, ok := usernameLocalUfrag(b)
	if !ok {
		d.mu.Lock()
		fb := d.fallback
		d.mu.Unlock()
		if fb != nil {
			fb(b, src)
		}
		return
	}
	d.mu.Lock()
	ch, ok := d.byUfrag[ufrag]
	d.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- packet{b: b, src: src}:
	default:
		// Drop-oldest: make room for the newest datagram.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- packet{b: b, src: src}:
		default:
		}
	}
}

// usernameLocalUfrag extracts the recipient's own ufrag (the part
// before ':', the sender having put the recipient's ufrag first per
// RFC 8445 Section 7.2.2 — see transaction.LocalUfragFromUsername)
// from a STUN message's USERNAME attribute, if b looks like a STUN
// message carrying one.
func usernameLocalUfrag(b []byte) (string, bool) {
	if !stun.IsMessage(b) {
		return "", false
	}
	var m stun.Message
	if err := stun.Decode(b, &m); err != nil {
		if _, ok := err.(*stun.UnknownAttributesError); !ok {
			return "", false
		}
	}
	raw, err := m.Get(stun.AttrUsername)
	if err != nil {
		return "", false
	}
	i := indexByte(raw, ':')
	if i < 0 {
		return "", false
	}
	return string(raw[:i]), true
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// SendTo forwards to the base socket.
func (d *Demultiplexer) SendTo(b []byte, dst transport.Address) error { return d.base.SendTo(b, dst) }

// LocalAddr forwards to the base socket.
func (d *Demultiplexer) LocalAddr() transport.Address { return d.base.LocalAddr() }

// Close closes the base socket and every routed queue.
func (d *Demultiplexer) Close() error {
	d.mu.Lock()
	for ufrag, ch := range d.byUfrag {
		close(ch)
		delete(d.byUfrag, ufrag)
	}
	d.mu.Unlock()
	return d.base.Close()
}
