package stun

import "time"

// ChannelNumber implements the CHANNEL-NUMBER attribute (RFC 5766 Section
// 14.1). Valid range is 0x4000-0x7FFE.
type ChannelNumber uint16

// AddTo adds a CHANNEL-NUMBER attribute.
func (c ChannelNumber) AddTo(m *Message) error {
	v := make([]byte, 4)
	bin.PutUint16(v[0:2], uint16(c))
	m.Add(AttrChannelNumber, v)
	return nil
}

// GetFrom decodes a CHANNEL-NUMBER attribute.
func (c *ChannelNumber) GetFrom(m *Message) error {
	v, err := m.Get(AttrChannelNumber)
	if err != nil {
		return err
	}
	if err := CheckSize(AttrChannelNumber, len(v), 4); err != nil {
		return err
	}
	*c = ChannelNumber(bin.Uint16(v[0:2]))
	return nil
}

// Lifetime implements the LIFETIME attribute (RFC 5766 Section 14.2),
// encoded in seconds on the wire.
type Lifetime time.Duration

// AddTo adds a LIFETIME attribute.
func (l Lifetime) AddTo(m *Message) error {
	v := make([]byte, 4)
	bin.PutUint32(v, uint32(time.Duration(l)/time.Second))
	m.Add(AttrLifetime, v)
	return nil
}

// GetFrom decodes a LIFETIME attribute.
func (l *Lifetime) GetFrom(m *Message) error {
	v, err := m.Get(AttrLifetime)
	if err != nil {
		return err
	}
	if err := CheckSize(AttrLifetime, len(v), 4); err != nil {
		return err
	}
	*l = Lifetime(time.Duration(bin.Uint32(v)) * time.Second)
	return nil
}

// Data implements the DATA attribute (RFC 5766 Section 14.4).
type Data []byte

// AddTo adds a DATA attribute.
func (d Data) AddTo(m *Message) error {
	m.Add(AttrData, d)
	return nil
}

// GetFrom decodes a DATA attribute.
func (d *Data) GetFrom(m *Message) error {
	v, err := m.Get(AttrData)
	if err != nil {
		return err
	}
	*d = append((*d)[:0], v...)
	return nil
}

// EvenPort implements the EVEN-PORT attribute (RFC 5766 Section 14.6).
type EvenPort struct {
	ReservePort bool
}

// AddTo adds an EVEN-PORT attribute.
func (e EvenPort) AddTo(m *Message) error {
	var b byte
	if e.ReservePort {
		b = 1 << 7
	}
	m.Add(AttrEvenPort, []byte{b})
	return nil
}

// GetFrom decodes an EVEN-PORT attribute.
func (e *EvenPort) GetFrom(m *Message) error {
	v, err := m.Get(AttrEvenPort)
	if err != nil {
		return err
	}
	if len(v) == 0 {
		return ErrUnexpectedEOF
	}
	e.ReservePort = v[0]&(1<<7) != 0
	return nil
}

// RequestedTransport implements the REQUESTED-TRANSPORT attribute
// (RFC 5766 Section 14.7). Protocol 17 is UDP.
type RequestedTransport byte

// ProtocolUDP is the only transport protocol value TURN relay allocation
// supports (RFC 5766 Section 14.7).
const ProtocolUDP RequestedTransport = 17

// AddTo adds a REQUESTED-TRANSPORT attribute.
func (r RequestedTransport) AddTo(m *Message) error {
	m.Add(AttrRequestedTransport, []byte{byte(r), 0, 0, 0})
	return nil
}

// GetFrom decodes a REQUESTED-TRANSPORT attribute.
func (r *RequestedTransport) GetFrom(m *Message) error {
	v, err := m.Get(AttrRequestedTransport)
	if err != nil {
		return err
	}
	if len(v) == 0 {
		return ErrUnexpectedEOF
	}
	*r = RequestedTransport(v[0])
	return nil
}

// DontFragment implements the zero-length DONT-FRAGMENT attribute
// (RFC 5766 Section 14.8).
type DontFragment struct{}

// AddTo adds a DONT-FRAGMENT attribute.
func (DontFragment) AddTo(m *Message) error {
	m.Add(AttrDontFragment, nil)
	return nil
}

// GetFrom reports whether m carries DONT-FRAGMENT.
func (DontFragment) GetFrom(m *Message) error {
	_, err := m.Get(AttrDontFragment)
	return err
}

// ReservationToken implements the RESERVATION-TOKEN attribute (RFC 5766
// Section 14.9), an 8-byte opaque value.
type ReservationToken [8]byte

// AddTo adds a RESERVATION-TOKEN attribute.
func (r ReservationToken) AddTo(m *Message) error {
	m.Add(AttrReservationToken, r[:])
	return nil
}

// GetFrom decodes a RESERVATION-TOKEN attribute.
func (r *ReservationToken) GetFrom(m *Message) error {
	v, err := m.Get(AttrReservationToken)
	if err != nil {
		return err
	}
	if err := CheckSize(AttrReservationToken, len(v), 8); err != nil {
		return err
	}
	copy(r[:], v)
	return nil
}
