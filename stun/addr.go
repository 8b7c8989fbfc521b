package stun

import "net"

// family byte values used on the wire for (XOR-)MAPPED-ADDRESS and friends,
// RFC 5389 Section 15.1.
const (
	familyIPv4 byte = 0x01
	familyIPv6 byte = 0x02
)

// MappedAddress implements the MAPPED-ADDRESS, RESPONSE-ADDRESS,
// SOURCE-ADDRESS, CHANGED-ADDRESS and REFLECTED-FROM attributes, which all
// share the same (family, port, address) wire shape.
type MappedAddress struct {
	IP   net.IP
	Port int
}

func encodeAddressValue(ip net.IP, port int) []byte {
	family := familyIPv4
	v4 := ip.To4()
	addr := v4
	if v4 == nil {
		family = familyIPv6
		addr = ip.To16()
	}
	v := make([]byte, 4+len(addr))
	v[1] = family
	bin.PutUint16(v[2:4], uint16(port))
	copy(v[4:], addr)
	return v
}

func decodeAddressValue(v []byte) (net.IP, int, error) {
	if len(v) < 4 {
		return nil, 0, ErrUnexpectedEOF
	}
	family := v[1]
	port := int(bin.Uint16(v[2:4]))
	addr := v[4:]
	switch family {
	case familyIPv4:
		if len(addr) != net.IPv4len {
			return nil, 0, errorf("stun: bad IPv4 address length %d", len(addr))
		}
	case familyIPv6:
		if len(addr) != net.IPv6len {
			return nil, 0, errorf("stun: bad IPv6 address length %d", len(addr))
		}
	default:
		return nil, 0, errorf("stun: unknown address family 0x%02x", family)
	}
	ip := make(net.IP, len(addr))
	copy(ip, addr)
	return ip, port, nil
}

func (a MappedAddress) addTo(m *Message, t AttrType) error {
	m.Add(t, encodeAddressValue(a.IP, a.Port))
	return nil
}

func (a *MappedAddress) getFromAs(m *Message, t AttrType) error {
	v, err := m.Get(t)
	if err != nil {
		return err
	}
	ip, port, err := decodeAddressValue(v)
	if err != nil {
		return err
	}
	a.IP, a.Port = ip, port
	return nil
}

// AddTo adds a MAPPED-ADDRESS attribute.
func (a MappedAddress) AddTo(m *Message) error { return a.addTo(m, AttrMappedAddress) }

// GetFrom decodes a MAPPED-ADDRESS attribute.
func (a *MappedAddress) GetFrom(m *Message) error { return a.getFromAs(m, AttrMappedAddress) }

// ResponseAddress implements the RESPONSE-ADDRESS attribute.
type ResponseAddress struct{ MappedAddress }

// AddTo adds a RESPONSE-ADDRESS attribute.
func (a ResponseAddress) AddTo(m *Message) error { return a.addTo(m, AttrResponseAddress) }

// GetFrom decodes a RESPONSE-ADDRESS attribute.
func (a *ResponseAddress) GetFrom(m *Message) error { return a.getFromAs(m, AttrResponseAddress) }

// SourceAddress implements the SOURCE-ADDRESS attribute.
type SourceAddress struct{ MappedAddress }

// AddTo adds a SOURCE-ADDRESS attribute.
func (a SourceAddress) AddTo(m *Message) error { return a.addTo(m, AttrSourceAddress) }

// GetFrom decodes a SOURCE-ADDRESS attribute.
func (a *SourceAddress) GetFrom(m *Message) error { return a.getFromAs(m, AttrSourceAddress) }

// ChangedAddress implements the CHANGED-ADDRESS attribute.
type ChangedAddress struct{ MappedAddress }

// AddTo adds a CHANGED-ADDRESS attribute.
func (a ChangedAddress) AddTo(m *Message) error { return a.addTo(m, AttrChangedAddress) }

// GetFrom decodes a CHANGED-ADDRESS attribute.
func (a *ChangedAddress) GetFrom(m *Message) error { return a.getFromAs(m, AttrChangedAddress) }

// ReflectedFrom implements the REFLECTED-FROM attribute.
type ReflectedFrom struct{ MappedAddress }

// AddTo adds a REFLECTED-FROM attribute.
func (a ReflectedFrom) AddTo(m *Message) error { return a.addTo(m, AttrReflectedFrom) }

// GetFrom decodes a REFLECTED-FROM attribute.
func (a *ReflectedFrom) GetFrom(m *Message) error { return a.getFromAs(m, AttrReflectedFrom) }

// XORMappedAddress implements the XOR-MAPPED-ADDRESS, XOR-PEER-ADDRESS and
// XOR-RELAYED-ADDRESS attributes, which are MAPPED-ADDRESS with the port
// XORed against the magic cookie and the address XORed against the magic
// cookie (IPv4) or the magic cookie followed by the transaction id (IPv6),
// RFC 5389 Section 15.2.
type XORMappedAddress struct {
	IP   net.IP
	Port int
}

// applyXOR xors addr (4 or 16 bytes) with the cookie+transaction id mask and
// returns the result, used both to encode and decode: applying it twice
// with the same mask is the identity, spec.md Section 8 property 2.
func applyXOR(addr []byte, id TransactionID) []byte {
	var mask [16]byte
	bin.PutUint32(mask[0:4], magicCookie)
	copy(mask[4:16], id[:])
	out := make([]byte, len(addr))
	for i := range addr {
		out[i] = addr[i] ^ mask[i]
	}
	return out
}

func (a XORMappedAddress) addTo(m *Message, t AttrType) error {
	family := familyIPv4
	addr := a.IP.To4()
	if addr == nil {
		family = familyIPv6
		addr = a.IP.To16()
	}
	xored := applyXOR(addr, m.TransactionID)
	xport := uint16(a.Port) ^ uint16(magicCookie>>16)
	v := make([]byte, 4+len(xored))
	v[1] = family
	bin.PutUint16(v[2:4], xport)
	copy(v[4:], xored)
	m.Add(t, v)
	return nil
}

func (a *XORMappedAddress) getFromAs(m *Message, t AttrType) error {
	v, err := m.Get(t)
	if err != nil {
		return err
	}
	if len(v) < 4 {
		return ErrUnexpectedEOF
	}
	family := v[1]
	xport := bin.Uint16(v[2:4])
	port := int(xport ^ uint16(magicCookie>>16))
	addr := v[4:]
	switch family {
	case familyIPv4:
		if len(addr) != net.IPv4len {
			return errorf("stun: bad IPv4 address length %d", len(addr))
		}
	case familyIPv6:
		if len(addr) != net.IPv6len {
			return errorf("stun: bad IPv6 address length %d", len(addr))
		}
	default:
		return errorf("stun: unknown address family 0x%02x", family)
	}
	ip := applyXOR(addr, m.TransactionID)
	a.IP = net.IP(ip)
	a.Port = port
	return nil
}

// AddTo adds an XOR-MAPPED-ADDRESS attribute.
func (a XORMappedAddress) AddTo(m *Message) error { return a.addTo(m, AttrXORMappedAddress) }

// GetFrom decodes an XOR-MAPPED-ADDRESS attribute.
func (a *XORMappedAddress) GetFrom(m *Message) error { return a.getFromAs(m, AttrXORMappedAddress) }

// XORPeerAddress implements the XOR-PEER-ADDRESS attribute.
type XORPeerAddress struct{ XORMappedAddress }

// AddTo adds an XOR-PEER-ADDRESS attribute.
func (a XORPeerAddress) AddTo(m *Message) error { return a.addTo(m, AttrXORPeerAddress) }

// GetFrom decodes an XOR-PEER-ADDRESS attribute.
func (a *XORPeerAddress) GetFrom(m *Message) error { return a.getFromAs(m, AttrXORPeerAddress) }

// XORRelayedAddress implements the XOR-RELAYED-ADDRESS attribute.
type XORRelayedAddress struct{ XORMappedAddress }

// AddTo adds an XOR-RELAYED-ADDRESS attribute.
func (a XORRelayedAddress) AddTo(m *Message) error { return a.addTo(m, AttrXORRelayedAddress) }

// GetFrom decodes an XOR-RELAYED-ADDRESS attribute.
func (a *XORRelayedAddress) GetFrom(m *Message) error { return a.getFromAs(m, AttrXORRelayedAddress) }

// ChangeRequest implements the CHANGE-REQUEST attribute.
type ChangeRequest struct {
	ChangeIP   bool
	ChangePort bool
}

// AddTo adds a CHANGE-REQUEST attribute.
func (c ChangeRequest) AddTo(m *Message) error {
	v := make([]byte, 4)
	var flags uint32
	if c.ChangeIP {
		flags |= 1 << 2
	}
	if c.ChangePort {
		flags |= 1 << 1
	}
	bin.PutUint32(v, flags)
	m.Add(AttrChangeRequest, v)
	return nil
}

// GetFrom decodes a CHANGE-REQUEST attribute.
func (c *ChangeRequest) GetFrom(m *Message) error {
	v, err := m.Get(AttrChangeRequest)
	if err != nil {
		return err
	}
	if err := CheckSize(AttrChangeRequest, len(v), 4); err != nil {
		return err
	}
	flags := bin.Uint32(v)
	c.ChangeIP = flags&(1<<2) != 0
	c.ChangePort = flags&(1<<1) != 0
	return nil
}
