package stun

// Priority implements the PRIORITY attribute carried on connectivity
// checks, spec.md Section 4.9.
type Priority uint32

// AddTo adds a PRIORITY attribute.
func (p Priority) AddTo(m *Message) error {
	v := make([]byte, 4)
	bin.PutUint32(v, uint32(p))
	m.Add(AttrPriority, v)
	return nil
}

// GetFrom decodes a PRIORITY attribute.
func (p *Priority) GetFrom(m *Message) error {
	v, err := m.Get(AttrPriority)
	if err != nil {
		return err
	}
	if err := CheckSize(AttrPriority, len(v), 4); err != nil {
		return err
	}
	*p = Priority(bin.Uint32(v))
	return nil
}

// UseCandidate implements the zero-length USE-CANDIDATE attribute.
type UseCandidate struct{}

// AddTo adds a USE-CANDIDATE attribute.
func (UseCandidate) AddTo(m *Message) error {
	m.Add(AttrUseCandidate, nil)
	return nil
}

// GetFrom reports whether m carries USE-CANDIDATE.
func (UseCandidate) GetFrom(m *Message) error {
	_, err := m.Get(AttrUseCandidate)
	return err
}

// tieBreaker is the shared 64-bit encoding for ICE-CONTROLLING/CONTROLLED.
type tieBreaker uint64

func (t tieBreaker) addToAs(m *Message, at AttrType) error {
	v := make([]byte, 8)
	bin.PutUint64(v, uint64(t))
	m.Add(at, v)
	return nil
}

func (t *tieBreaker) getFromAs(m *Message, at AttrType) error {
	v, err := m.Get(at)
	if err != nil {
		return err
	}
	if err := CheckSize(at, len(v), 8); err != nil {
		return err
	}
	*t = tieBreaker(bin.Uint64(v))
	return nil
}

// AttrControlling implements ICE-CONTROLLING.
type AttrControlling uint64

// AddTo adds an ICE-CONTROLLING attribute.
func (a AttrControlling) AddTo(m *Message) error { return tieBreaker(a).addToAs(m, AttrICEControlling) }

// GetFrom decodes an ICE-CONTROLLING attribute.
func (a *AttrControlling) GetFrom(m *Message) error {
	return (*tieBreaker)(a).getFromAs(m, AttrICEControlling)
}

// AttrControlled implements ICE-CONTROLLED.
type AttrControlled uint64

// AddTo adds an ICE-CONTROLLED attribute.
func (a AttrControlled) AddTo(m *Message) error { return tieBreaker(a).addToAs(m, AttrICEControlled) }

// GetFrom decodes an ICE-CONTROLLED attribute.
func (a *AttrControlled) GetFrom(m *Message) error {
	return (*tieBreaker)(a).getFromAs(m, AttrICEControlled)
}

// ConnectionID implements the CONNECTION-ID attribute (RFC 6062).
type ConnectionID uint32

// AddTo adds a CONNECTION-ID attribute.
func (c ConnectionID) AddTo(m *Message) error {
	v := make([]byte, 4)
	bin.PutUint32(v, uint32(c))
	m.Add(AttrConnectionID, v)
	return nil
}

// GetFrom decodes a CONNECTION-ID attribute.
func (c *ConnectionID) GetFrom(m *Message) error {
	v, err := m.Get(AttrConnectionID)
	if err != nil {
		return err
	}
	if err := CheckSize(AttrConnectionID, len(v), 4); err != nil {
		return err
	}
	*c = ConnectionID(bin.Uint32(v))
	return nil
}

// RequestedAddressFamily implements REQUESTED-ADDRESS-FAMILY (RFC 6156).
type RequestedAddressFamily byte

// Supported families.
const (
	RequestedFamilyIPv4 RequestedAddressFamily = 0x01
	RequestedFamilyIPv6 RequestedAddressFamily = 0x02
)

// AddTo adds a REQUESTED-ADDRESS-FAMILY attribute.
func (f RequestedAddressFamily) AddTo(m *Message) error {
	m.Add(AttrRequestedAddressFamily, []byte{byte(f), 0, 0, 0})
	return nil
}

// GetFrom decodes a REQUESTED-ADDRESS-FAMILY attribute.
func (f *RequestedAddressFamily) GetFrom(m *Message) error {
	v, err := m.Get(AttrRequestedAddressFamily)
	if err != nil {
		return err
	}
	if len(v) == 0 {
		return ErrUnexpectedEOF
	}
	*f = RequestedAddressFamily(v[0])
	return nil
}
