package stun

// DefaultPort is the default STUN/TURN listening port, RFC 5389 Section 8.
const DefaultPort = 3478

// DefaultPortTLS is the default STUN/TURN-over-TLS listening port.
const DefaultPortTLS = 5349
