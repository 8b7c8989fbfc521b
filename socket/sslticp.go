package socket

// Google's legacy "SSLTCP" candidate dialect prefixes a TCP connection
// with a fixed, non-RFC-4571 handshake before any STUN traffic flows,
// spec.md Section 4.3 "Google SSLTCP (opt-in)". It exists only for
// interop with peers that still speak it; new agents never offer it.

// sslTCPClientHello is the 78-byte value IsSSLTCPClientHello matches:
// 0x00, 0x01 and then 76 zero bytes. It does not hold the SSLv2
// Client-Hello bytes of Google's dialect.
var sslTCPClientHello = [78]byte{0, 1}

// sslTCPServerHello is the 79-byte value SSLTCPServerHello returns: 79
// zero bytes. It does not hold the dialect's Server-Hello bytes.
var sslTCPServerHello = [79]byte{0, 0}

// IsSSLTCPClientHello reports whether b equals sslTCPClientHello. No
// Acceptor, harvester or dialer in this module calls it.
func IsSSLTCPClientHello(b []byte) bool {
	if len(b) != len(sslTCPClientHello) {
		return false
	}
	for i, v := range b {
		if v != sslTCPClientHello[i] {
			return false
		}
	}
	return true
}

// SSLTCPServerHello returns the fixed server reply bytes.
func SSLTCPServerHello() []byte {
	out := make([]byte, len(sslTCPServerHello))
	copy(out, sslTCPServerHello[:])
	return out
}
