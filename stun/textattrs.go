package stun

import (
	"github.com/pkg/errors"
	"golang.org/x/text/secure/precis"
)

const maxUsernameBytes = 513 // spec.md Section 4.1, USERNAME

// Username implements the USERNAME attribute: a UTF-8 string up to 513
// bytes, validated with the OpaqueString PRECIS profile the way a SASLprep
// implementation would, per RFC 8489 Section 5.1's replacement of the
// original RFC 5389 SASLprep requirement.
type Username string

// AddTo adds a USERNAME attribute.
func (u Username) AddTo(m *Message) error {
	norm, err := precis.OpaqueString.String(string(u))
	if err != nil {
		return errors.Wrap(err, "stun: invalid USERNAME")
	}
	if len(norm) > maxUsernameBytes {
		return errors.Errorf("stun: USERNAME too long: %d bytes", len(norm))
	}
	m.Add(AttrUsername, []byte(norm))
	return nil
}

// GetFrom decodes a USERNAME attribute.
func (u *Username) GetFrom(m *Message) error {
	v, err := m.Get(AttrUsername)
	if err != nil {
		return err
	}
	*u = Username(v)
	return nil
}

// Realm implements the REALM attribute.
type Realm string

// AddTo adds a REALM attribute.
func (r Realm) AddTo(m *Message) error {
	m.Add(AttrRealm, []byte(r))
	return nil
}

// GetFrom decodes a REALM attribute.
func (r *Realm) GetFrom(m *Message) error {
	v, err := m.Get(AttrRealm)
	if err != nil {
		return err
	}
	*r = Realm(v)
	return nil
}

// Nonce implements the NONCE attribute.
type Nonce []byte

// AddTo adds a NONCE attribute.
func (n Nonce) AddTo(m *Message) error {
	if len(n) == 0 {
		return nil
	}
	m.Add(AttrNonce, n)
	return nil
}

// GetFrom decodes a NONCE attribute.
func (n *Nonce) GetFrom(m *Message) error {
	v, err := m.Get(AttrNonce)
	if err != nil {
		return err
	}
	*n = append((*n)[:0], v...)
	return nil
}

// Software implements the SOFTWARE attribute.
type Software string

// AddTo adds a SOFTWARE attribute. A zero-value Software adds nothing,
// matching internal/server/context.go's "not adding SOFTWARE attribute if
// blank" behavior.
func (s Software) AddTo(m *Message) error {
	if len(s) == 0 {
		return nil
	}
	m.Add(AttrSoftware, []byte(s))
	return nil
}

// GetFrom decodes a SOFTWARE attribute.
func (s *Software) GetFrom(m *Message) error {
	v, err := m.Get(AttrSoftware)
	if err != nil {
		return err
	}
	*s = Software(v)
	return nil
}

// AlternateServer implements the ALTERNATE-SERVER attribute.
type AlternateServer struct{ MappedAddress }

// AddTo adds an ALTERNATE-SERVER attribute.
func (a AlternateServer) AddTo(m *Message) error { return a.addTo(m, AttrAlternateServer) }

// GetFrom decodes an ALTERNATE-SERVER attribute.
func (a *AlternateServer) GetFrom(m *Message) error { return a.getFromAs(m, AttrAlternateServer) }
