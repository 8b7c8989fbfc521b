// Package transport implements the transport-address value type shared by
// the STUN codec, the candidate model and the socket layer.
package transport

import (
	"fmt"
	"net"
)

// Protocol is the transport protocol a TransportAddress is reachable over.
type Protocol byte

// Supported transport protocols.
const (
	UDP Protocol = iota
	TCP
)

func (p Protocol) String() string {
	switch p {
	case UDP:
		return "udp"
	case TCP:
		return "tcp"
	default:
		return fmt.Sprintf("proto(%d)", byte(p))
	}
}

// Address is an (IP, port, transport) triple. Two addresses are equal iff
// all three components match.
//
// See spec.md Section 3, "TransportAddress".
type Address struct {
	IP    net.IP
	Port  int
	Proto Protocol
}

// Equal reports whether a and b name the same transport address.
func (a Address) Equal(b Address) bool {
	if a.Proto != b.Proto {
		return false
	}
	if a.Port != b.Port {
		return false
	}
	return a.IP.Equal(b.IP)
}

// IsZero reports whether a is the zero Address.
func (a Address) IsZero() bool {
	return a.IP == nil && a.Port == 0
}

func (a Address) String() string {
	if a.IP == nil {
		return fmt.Sprintf("<nil>:%d/%s", a.Port, a.Proto)
	}
	return fmt.Sprintf("%s/%s", net.JoinHostPort(a.IP.String(), fmt.Sprint(a.Port)), a.Proto)
}

// Network implements net.Addr.
func (a Address) Network() string { return a.Proto.String() }

// Family identifies the IP address family of an Address.
type Family byte

// Supported address families.
const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

// Family returns the address family of a.
func (a Address) Family() Family {
	if a.IP.To4() != nil {
		return FamilyIPv4
	}
	return FamilyIPv6
}

// IsLoopback reports whether a's IP is a loopback address.
func (a Address) IsLoopback() bool { return a.IP.IsLoopback() }

// IsLinkLocal reports whether a's IP is a link-local unicast address.
func (a Address) IsLinkLocal() bool { return a.IP.IsLinkLocalUnicast() }

// FromUDPAddr builds an Address from a resolved *net.UDPAddr.
func FromUDPAddr(a *net.UDPAddr) Address {
	return Address{IP: a.IP, Port: a.Port, Proto: UDP}
}

// FromTCPAddr builds an Address from a resolved *net.TCPAddr.
func FromTCPAddr(a *net.TCPAddr) Address {
	return Address{IP: a.IP, Port: a.Port, Proto: TCP}
}

// UDPAddr returns a as a *net.UDPAddr.
func (a Address) UDPAddr() *net.UDPAddr { return &net.UDPAddr{IP: a.IP, Port: a.Port} }

// TCPAddr returns a as a *net.TCPAddr.
func (a Address) TCPAddr() *net.TCPAddr { return &net.TCPAddr{IP: a.IP, Port: a.Port} }
