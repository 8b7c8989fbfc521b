// +build !linux,!darwin,!freebsd

package socket

import "net"

// setRcvBuf falls back to the portable API on platforms
// golang.org/x/sys/unix does not cover.
func setRcvBuf(conn *net.UDPConn, bytes int) error {
	return conn.SetReadBuffer(bytes)
}
