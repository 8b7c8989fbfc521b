package stun

// ErrorCodeAttribute implements ERROR-CODE, RFC 5389 Section 15.6: class
// 3..6, number 0..99, and a UTF-8 reason phrase.
type ErrorCodeAttribute struct {
	Code   ErrorCode
	Reason string
}

// ErrorCode is class*100+number, e.g. 401, 487.
type ErrorCode int

// Error codes referenced by spec.md Section 4.9 "Connectivity-check
// client/server".
const (
	CodeBadRequest     ErrorCode = 400
	CodeUnauthorized   ErrorCode = 401
	CodeUnknownAttr    ErrorCode = 420
	CodeStaleNonce     ErrorCode = 438
	CodeRoleConflict   ErrorCode = 487
	CodeServerError    ErrorCode = 500
)

func (c ErrorCode) class() byte  { return byte(c / 100) }
func (c ErrorCode) number() byte { return byte(c % 100) }

// AddTo adds an ERROR-CODE attribute.
func (e ErrorCodeAttribute) AddTo(m *Message) error {
	v := make([]byte, 4+len(e.Reason))
	v[2] = e.Code.class()
	v[3] = e.Code.number()
	copy(v[4:], e.Reason)
	m.Add(AttrErrorCode, v)
	return nil
}

// GetFrom decodes an ERROR-CODE attribute.
func (e *ErrorCodeAttribute) GetFrom(m *Message) error {
	v, err := m.Get(AttrErrorCode)
	if err != nil {
		return err
	}
	if len(v) < 4 {
		return ErrUnexpectedEOF
	}
	e.Code = ErrorCode(int(v[2])*100 + int(v[3]))
	e.Reason = string(v[4:])
	return nil
}

// UnknownAttributes implements the UNKNOWN-ATTRIBUTES attribute: a list of
// attribute types, padded to a multiple of 4 bytes.
type UnknownAttributes []AttrType

// AddTo adds an UNKNOWN-ATTRIBUTES attribute.
func (u UnknownAttributes) AddTo(m *Message) error {
	v := make([]byte, 2*len(u))
	for i, t := range u {
		bin.PutUint16(v[i*2:i*2+2], uint16(t))
	}
	m.Add(AttrUnknownAttributes, v)
	return nil
}

// GetFrom decodes an UNKNOWN-ATTRIBUTES attribute.
func (u *UnknownAttributes) GetFrom(m *Message) error {
	v, err := m.Get(AttrUnknownAttributes)
	if err != nil {
		return err
	}
	*u = (*u)[:0]
	for i := 0; i+2 <= len(v); i += 2 {
		*u = append(*u, AttrType(bin.Uint16(v[i:i+2])))
	}
	return nil
}
