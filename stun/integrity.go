package stun

import (
	"crypto/hmac"
	"crypto/md5" // #nosec G501 -- required by RFC 5389 Section 15.4 key derivation
	"crypto/sha1"
	"fmt"

	"github.com/pkg/errors"
)

const messageIntegritySize = sha1.Size // 20

// MessageIntegrity is the key used to compute and validate the
// MESSAGE-INTEGRITY attribute: HMAC-SHA1 over the message, keyed by the
// short-term password or the long-term MD5(username:realm:password) digest,
// spec.md Section 4.1.
type MessageIntegrity []byte

// NewShortTermIntegrity builds a MessageIntegrity key from a short-term
// credential password, used for ICE connectivity checks.
func NewShortTermIntegrity(password string) MessageIntegrity {
	return MessageIntegrity(password)
}

// NewLongTermIntegrity builds a MessageIntegrity key from a long-term
// credential triple, used for TURN allocation requests once challenged.
func NewLongTermIntegrity(username, realm, password string) MessageIntegrity {
	h := md5.New() // #nosec G401
	fmt.Fprintf(h, "%s:%s:%s", username, realm, password)
	return MessageIntegrity(h.Sum(nil))
}

// prefixForIntegrity returns the bytes HMAC-SHA1 should run over: the
// message as encoded so far, with the length header temporarily adjusted to
// pretend the about-to-be-appended MESSAGE-INTEGRITY attribute (4 byte
// header + 20 byte digest) is already included, per spec.md Section 4.1
// "with the length adjusted to include exactly this attribute".
func prefixForIntegrity(m *Message) []byte {
	extra := uint32(4 + messageIntegritySize)
	length := uint32(len(m.Raw)-headerSize) + extra
	bin.PutUint16(m.Raw[2:4], uint16(length))
	prefix := append([]byte(nil), m.Raw...)
	// Restore the real (pre-attribute) length header.
	bin.PutUint16(m.Raw[2:4], uint16(len(m.Raw)-headerSize))
	return prefix
}

func hmacSHA1(key, data []byte) []byte {
	mac := hmac.New(sha1.New, key)
	mac.Write(data) // #nosec G104 -- hash.Write never returns an error
	return mac.Sum(nil)
}

// AddTo appends a MESSAGE-INTEGRITY attribute computed over m as currently
// encoded. Call it after all other attributes have been added and before
// FINGERPRINT, matching the Setter order used throughout this module.
func (i MessageIntegrity) AddTo(m *Message) error {
	sum := hmacSHA1(i, prefixForIntegrity(m))
	m.Add(AttrMessageIntegrity, sum)
	return nil
}

// GetFrom reads the raw MESSAGE-INTEGRITY attribute value into i, without
// validating it; use Check to validate.
func (i *MessageIntegrity) GetFrom(m *Message) error {
	v, err := m.Get(AttrMessageIntegrity)
	if err != nil {
		return err
	}
	if err := CheckSize(AttrMessageIntegrity, len(v), messageIntegritySize); err != nil {
		return err
	}
	*i = append((*i)[:0], v...)
	return nil
}

// ErrIntegrityMismatch is returned by Check when the computed digest does
// not match the attribute on the wire.
var ErrIntegrityMismatch = errors.New("stun: MESSAGE-INTEGRITY mismatch")

// Check recomputes MESSAGE-INTEGRITY over m using key i and compares it
// against the attribute present in m, per spec.md Section 4.1
// "validate_message_integrity". It tolerates a FINGERPRINT attribute after
// MESSAGE-INTEGRITY (it is excluded from the recomputation, matching the
// prefix-only hash).
func (i MessageIntegrity) Check(m *Message) error {
	prefix, err := integrityPrefixFromDecoded(m)
	if err != nil {
		return err
	}
	v, err := m.Get(AttrMessageIntegrity)
	if err != nil {
		return err
	}
	if err := CheckSize(AttrMessageIntegrity, len(v), messageIntegritySize); err != nil {
		return err
	}
	sum := hmacSHA1(i, prefix)
	if !hmac.Equal(sum, v) {
		return ErrIntegrityMismatch
	}
	return nil
}

// integrityPrefixFromDecoded walks m.Attributes in wire order, locates
// MESSAGE-INTEGRITY and returns the bytes preceding it with the length
// header patched to pretend the message ends right after that attribute.
func integrityPrefixFromDecoded(m *Message) ([]byte, error) {
	off := headerSize
	for _, a := range m.Attributes {
		if a.Type == AttrMessageIntegrity {
			prefix := append([]byte(nil), m.Raw[:off]...)
			length := uint32(off-headerSize) + 4 + messageIntegritySize
			bin.PutUint16(prefix[2:4], uint16(length))
			return prefix, nil
		}
		off += 4 + padLen(int(a.Length))
	}
	return nil, ErrAttributeNotFound
}
