// +build linux darwin freebsd

package socket

import (
	"net"

	"golang.org/x/sys/unix"
)

// setRcvBuf sets SO_RCVBUF directly via the socket's raw file
// descriptor, spec.md Section 10 "SO_RCVBUF": net.UDPConn.SetReadBuffer
// silently halves and caps the requested size on Linux, so operators
// asking for an exact buffer get unix.SetsockoptInt instead.
func setRcvBuf(conn *net.UDPConn, bytes int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, bytes)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}
