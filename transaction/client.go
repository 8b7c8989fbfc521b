package transaction

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/netice/ice/stun"
	"github.com/netice/ice/transport"
)

// Sender is the minimal capability a ClientTransaction needs from its
// socket: fire-and-forget write to a single remote address. Retries
// reuse the same byte slice.
type Sender interface {
	SendTo(b []byte, dst transport.Address) error
}

// Result is delivered to a ClientTransaction's caller exactly once,
// spec.md Section 4.2 "Client transactions".
type Result struct {
	Message *stun.Message
	Err     error
}

// ClientConfig tunes the retransmission schedule, spec.md Section 4.2:
// "Initial timeout RTO (default 500 ms); retransmit at RTO, 2*RTO,
// 4*RTO, ... up to Rc retries (default 7), cap each wait at RTO*2^k or
// 1600ms, declare timeout after the last retransmission would have
// expired. TCP transactions do not retransmit; fixed timeout (default
// 39.5s)."
type ClientConfig struct {
	RTO        time.Duration // default 500ms
	Rc         int           // default 7
	RTOCap     time.Duration // default 1600ms
	TCPTimeout time.Duration // default 39.5s
}

// DefaultClientConfig returns the RFC 5389-recommended schedule.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		RTO:        500 * time.Millisecond,
		Rc:         7,
		RTOCap:     1600 * time.Millisecond,
		TCPTimeout: 39500 * time.Millisecond,
	}
}

// finalTimeout is the total wall-clock budget of the UDP schedule: the
// sum of all retransmit waits plus one final Rc-th wait, per RFC 5389
// Appendix B.
func (c ClientConfig) finalTimeout() time.Duration {
	var total time.Duration
	wait := c.RTO
	for k := 0; k < c.Rc; k++ {
		total += wait
		wait *= 2
		if wait > c.RTOCap {
			wait = c.RTOCap
		}
	}
	// Rc-th retransmit has already been sent; wait once more for its
	// response before declaring timeout.
	total += wait
	return total
}

// ClientTransaction drives one outgoing STUN/TURN request to
// completion: retransmission on UDP, single fixed timeout on TCP, and
// delivery of exactly one Result to done, spec.md Section 4.2.
type ClientTransaction struct {
	cfg    ClientConfig
	log    *zap.Logger
	sender Sender
	dst    transport.Address
	raw    []byte
	udp    bool

	mu   sync.Mutex
	done chan Result
	stop chan struct{}
	once sync.Once
}

// NewClientTransaction starts a transaction for request, sending it
// to dst over sender and delivering its outcome asynchronously. udp
// selects the retransmission schedule; set false for TCP/TLS
// transports, where the message is sent once.
func NewClientTransaction(ctx context.Context, sender Sender, dst transport.Address, request *stun.Message, udp bool, cfg ClientConfig, log *zap.Logger) *ClientTransaction {
	if log == nil {
		log = zap.NewNop()
	}
	t := &ClientTransaction{
		cfg:    cfg,
		log:    log.Named("transaction").With(zap.String("dst", dst.String())),
		sender: sender,
		dst:    dst,
		raw:    append([]byte(nil), request.Raw...),
		udp:    udp,
		done:   make(chan Result, 1),
		stop:   make(chan struct{}),
	}
	go t.run(ctx)
	return t
}

// Done returns the channel on which the single Result will arrive.
func (t *ClientTransaction) Done() <-chan Result { return t.done }

// Cancel aborts the transaction early, delivering no Result if one has
// not already been delivered by HandleResponse.
func (t *ClientTransaction) Cancel() {
	t.once.Do(func() { close(t.stop) })
}

// HandleResponse completes the transaction with a received message. It
// is a no-op if the transaction already completed or was cancelled.
func (t *ClientTransaction) HandleResponse(resp *stun.Message) {
	t.deliver(Result{Message: resp})
}

// HandleUnreachable completes the transaction with an Unreachable
// failure, e.g. on ICMP port-unreachable or TCP connection reset.
func (t *ClientTransaction) HandleUnreachable(err error) {
	t.deliver(Result{Err: &Error{Kind: Unreachable}})
	_ = err // cause already classified; err kept for log call sites
}

func (t *ClientTransaction) deliver(r Result) {
	t.once.Do(func() {
		close(t.stop)
		t.done <- r
	})
}

func (t *ClientTransaction) run(ctx context.Context) {
	if err := t.sender.SendTo(t.raw, t.dst); err != nil {
		t.deliver(Result{Err: &Error{Kind: Unreachable}})
		return
	}
	if !t.udp {
		t.waitTimeout(ctx, t.cfg.TCPTimeout)
		return
	}
	t.retransmitUDP(ctx)
}

func (t *ClientTransaction) retransmitUDP(ctx context.Context) {
	wait := t.cfg.RTO
	for k := 0; k < t.cfg.Rc; k++ {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-t.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			t.deliver(Result{Err: ctx.Err()})
			return
		}
		if err := t.sender.SendTo(t.raw, t.dst); err != nil {
			t.log.Debug("retransmit failed", zap.Error(err), zap.Int("attempt", k+1))
			t.deliver(Result{Err: &Error{Kind: Unreachable}})
			return
		}
		wait *= 2
		if wait > t.cfg.RTOCap {
			wait = t.cfg.RTOCap
		}
	}
	t.waitTimeout(ctx, wait)
}

func (t *ClientTransaction) waitTimeout(ctx context.Context, wait time.Duration) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		t.deliver(Result{Err: &Error{Kind: Timeout}})
	case <-t.stop:
	case <-ctx.Done():
		t.deliver(Result{Err: ctx.Err()})
	}
}
