package stun

import "hash/crc32"

// fingerprintXOR is XORed into the computed CRC32 before it is put on the
// wire, RFC 5389 Section 15.5; its four bytes are the ASCII string
// "STUN".
const fingerprintXOR = 0x5354554E

type fingerprintAttr struct{}

// Fingerprint is the Setter/Getter for the FINGERPRINT attribute: CRC32 of
// the message (with the length header adjusted the same way
// MESSAGE-INTEGRITY is) XORed with fingerprintXOR. It must be the last
// attribute on the wire, spec.md Section 4.1.
var Fingerprint fingerprintAttr

func crcOf(m *Message, extra uint32) uint32 {
	length := uint32(len(m.Raw)-headerSize) + extra
	bin.PutUint16(m.Raw[2:4], uint16(length))
	sum := crc32.ChecksumIEEE(m.Raw)
	bin.PutUint16(m.Raw[2:4], uint16(len(m.Raw)-headerSize))
	return sum ^ fingerprintXOR
}

// AddTo appends the FINGERPRINT attribute. Must be called last.
func (fingerprintAttr) AddTo(m *Message) error {
	sum := crcOf(m, 4+4)
	v := make([]byte, 4)
	bin.PutUint32(v, sum)
	m.Add(AttrFingerprint, v)
	return nil
}

// Check validates that m carries a correct, last FINGERPRINT attribute.
func (fingerprintAttr) Check(m *Message) error {
	if len(m.Attributes) == 0 || m.Attributes[len(m.Attributes)-1].Type != AttrFingerprint {
		return errorf("stun: FINGERPRINT is not the last attribute")
	}
	v, err := m.Get(AttrFingerprint)
	if err != nil {
		return err
	}
	if err := CheckSize(AttrFingerprint, len(v), 4); err != nil {
		return err
	}
	off := headerSize
	for _, a := range m.Attributes {
		if a.Type == AttrFingerprint {
			break
		}
		off += 4 + padLen(int(a.Length))
	}
	prefix := append([]byte(nil), m.Raw[:off]...)
	length := uint32(off-headerSize) + 8
	bin.PutUint16(prefix[2:4], uint16(length))
	sum := crc32.ChecksumIEEE(prefix) ^ fingerprintXOR
	if sum != bin.Uint32(v) {
		return errorf("stun: FINGERPRINT mismatch")
	}
	return nil
}
