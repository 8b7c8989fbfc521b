package socket

import (
	"bufio"
	"encoding/binary"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/netice/ice/transport"
)

// abandonedConnTimeout closes a TCP connection that never sends a
// recognizable first frame, spec.md Section 4.3 "TCP candidates":
// "an accepted connection that does not present a valid framed
// message within 15s is abandoned."
const abandonedConnTimeout = 15 * time.Second

// Acceptor decides whether it wants to own a freshly accepted TCP
// connection, based on its first framed payload. The first acceptor
// that returns true keeps the connection; its Handle runs the
// connection's lifetime.
type Acceptor interface {
	// Accepts inspects the first de-framed payload and reports whether
	// this acceptor will handle the connection.
	Accepts(first []byte) bool
	// Handle owns conn for its lifetime, reading further RFC 4571
	// length-prefixed frames via r and writing framed replies via
	// WriteFrame.
	Handle(conn net.Conn, r *bufio.Reader, first []byte, remote transport.Address)
}

// MuxListener accepts TCP connections for ICE-TCP and TURN-over-TCP
// candidates sharing one listening port, dispatching each connection's
// first frame to the first matching Acceptor, spec.md Section 4.3.
// Grounded on gortcd's internal/server.Server.Serve accept/worker
// fan-out shape, adapted from UDP's per-packet dispatch to
// per-connection dispatch.
type MuxListener struct {
	ln        net.Listener
	log       *zap.Logger
	acceptors []Acceptor

	wg sync.WaitGroup
}

// Listen opens a TCP listener on addr and returns a MuxListener ready
// to Serve once acceptors are registered.
func Listen(addr string, log *zap.Logger) (*MuxListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MuxListener{ln: ln, log: log.Named("mux")}, nil
}

// Register adds a, consulted in registration order for each new
// connection's first frame.
func (m *MuxListener) Register(a Acceptor) { m.acceptors = append(m.acceptors, a) }

// Serve accepts connections until the listener is closed.
func (m *MuxListener) Serve() error {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			return err
		}
		m.wg.Add(1)
		go m.handle(conn)
	}
}

// Close stops accepting and waits for in-flight connection dispatch to
// settle.
func (m *MuxListener) Close() error {
	err := m.ln.Close()
	m.wg.Wait()
	return err
}

func (m *MuxListener) handle(conn net.Conn) {
	defer m.wg.Done()
	remote := remoteAddress(conn)
	if err := conn.SetReadDeadline(time.Now().Add(abandonedConnTimeout)); err != nil {
		m.log.Warn("failed to set read deadline", zap.Error(err))
	}
	r := bufio.NewReader(conn)
	first, err := ReadFrame(r)
	if err != nil {
		m.log.Debug("abandoning connection without a valid first frame", zap.Error(err), zap.Stringer("remote", remote))
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	for _, a := range m.acceptors {
		if a.Accepts(first) {
			a.Handle(conn, r, first, remote)
			return
		}
	}
	m.log.Debug("no acceptor claimed connection", zap.Stringer("remote", remote))
	_ = conn.Close()
}

func remoteAddress(conn net.Conn) transport.Address {
	if ta, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return transport.FromTCPAddr(ta)
	}
	return transport.Address{}
}

// ReadFrame reads one RFC 4571-framed message: a 2-byte big-endian
// length prefix followed by that many bytes.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := readFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := readFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}

// WriteFrame writes b to conn with its RFC 4571 2-byte length prefix.
func WriteFrame(conn net.Conn, b []byte) error {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := conn.Write(b)
	return err
}
