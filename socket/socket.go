// Package socket implements the local transport-layer capabilities ICE
// harvesting and connectivity checks are built on: sending and
// receiving datagrams, demultiplexing several logical STUN/TURN/ICE
// consumers over one shared UDP port, and RFC 4571-framed TCP,
// spec.md Section 4.3 "Sockets", grounded on gortcd's internal/server
// worker/ReusePort pattern (server.go) and its buffer-acquire context
// pool (context.go).
package socket

import (
	"net"
	"time"

	"github.com/libp2p/go-reuseport"

	"github.com/netice/ice/transport"
)

// Sender can send a single datagram to dst.
type Sender interface {
	SendTo(b []byte, dst transport.Address) error
}

// Receiver delivers datagrams read from the socket, one at a time, to
// a caller-supplied handler. Delivery stops when Close is called.
type Receiver interface {
	// SetHandler installs fn as the receive callback; it replaces any
	// previously installed handler.
	SetHandler(fn func(b []byte, src transport.Address))
}

// LocalAddresser exposes the socket's bound local address.
type LocalAddresser interface {
	LocalAddr() transport.Address
}

// Socket is the full capability set a harvester or a checklist needs
// from a transport: send, receive and know its own local address, plus
// lifecycle.
type Socket interface {
	Sender
	Receiver
	LocalAddresser
	Close() error
}

// udpSocket adapts a net.PacketConn to Socket, running one read loop
// goroutine that fans incoming datagrams out to the installed handler,
// mirroring the per-connection worker loop in gortcd's
// internal/server.Server.worker.
type udpSocket struct {
	conn    net.PacketConn
	local   transport.Address
	handler func(b []byte, src transport.Address)
	closeCh chan struct{}
}

// ListenUDP opens a UDP socket bound to laddr, a "host:port" string
// ("" for any interface and an ephemeral port), and starts its read
// loop.
func ListenUDP(network, laddr string) (Socket, error) {
	return ListenUDPReusable(network, laddr, BindOptions{})
}

// BindOptions configures ListenUDPReusable, spec.md Section 10
// "Listener binding": SO_REUSEPORT sharing, bind retries and the
// receive buffer size, mirroring gortcd's
// internal/server.Options.ReusePort/internal/cli run.go's bind-retry
// loop around reuseport.ListenPacket.
type BindOptions struct {
	// ReusePort shares laddr across multiple listeners via SO_REUSEPORT
	// where the platform supports it (reuseport.Available()), spec.md
	// Section 10 "BIND_WILDCARD".
	ReusePort bool
	// Retries bounds how many times a failed bind is retried, whatever
	// the error, before giving up; 0 means no retry, spec.md Section 10
	// "BIND_RETRIES".
	Retries int
	// RetryDelay paces retries; defaults to 100ms if zero and Retries > 0.
	RetryDelay time.Duration
	// RcvBuf sets SO_RCVBUF in bytes if non-zero, spec.md Section 10
	// "SO_RCVBUF".
	RcvBuf int
}

// ListenUDPReusable is ListenUDP generalized with BindOptions, used by
// icedaemon's run command (internal/commands) to bind the agent's
// socket with the BindOptions internal/config builds.
func ListenUDPReusable(network, laddr string, opt BindOptions) (Socket, error) {
	listen := net.ListenPacket
	if opt.ReusePort && reuseport.Available() {
		listen = reuseport.ListenPacket
	}

	var conn net.PacketConn
	var err error
	delay := opt.RetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	for attempt := 0; ; attempt++ {
		conn, err = listen(network, laddr)
		if err == nil || attempt >= opt.Retries {
			break
		}
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	if opt.RcvBuf > 0 {
		if uc, ok := conn.(*net.UDPConn); ok {
			_ = setRcvBuf(uc, opt.RcvBuf)
		}
	}

	s := &udpSocket{conn: conn, closeCh: make(chan struct{})}
	if ua, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		s.local = transport.FromUDPAddr(ua)
	}
	go s.readLoop()
	return s, nil
}

func (s *udpSocket) readLoop() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			continue
		}
		if s.handler == nil {
			continue
		}
		ua, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		s.handler(cp, transport.FromUDPAddr(ua))
	}
}

func (s *udpSocket) SetHandler(fn func(b []byte, src transport.Address)) { s.handler = fn }
func (s *udpSocket) LocalAddr() transport.Address                       { return s.local }

func (s *udpSocket) SendTo(b []byte, dst transport.Address) error {
	_, err := s.conn.WriteTo(b, dst.UDPAddr())
	return err
}

func (s *udpSocket) Close() error {
	close(s.closeCh)
	return s.conn.Close()
}
