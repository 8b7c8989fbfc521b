// Package stun implements a codec for the STUN/TURN wire format
// (RFC 5389, 8489, 5766, 6062, 6156, 5780) as consumed by the transaction
// layer and the ICE agent. It is bit-exact with the on-wire shapes
// documented in spec.md Section 4.1.
package stun

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// magicCookie is the fixed STUN magic cookie value, RFC 5389 Section 6.
const magicCookie = 0x2112A442

// headerSize is the size of the fixed STUN header in bytes.
const headerSize = 20

// transactionIDSize is the size of the STUN transaction id in bytes (96 bit).
const transactionIDSize = 12

// TransactionID is a 96-bit STUN transaction identifier.
type TransactionID [transactionIDSize]byte

var bin = binary.BigEndian

// Class is the STUN message class, the two bits encoded at fixed offsets
// within the 14-bit message type.
type Class byte

// Supported message classes.
const (
	ClassRequest Class = iota
	ClassIndication
	ClassSuccessResponse
	ClassErrorResponse
)

func (c Class) String() string {
	switch c {
	case ClassRequest:
		return "request"
	case ClassIndication:
		return "indication"
	case ClassSuccessResponse:
		return "success response"
	case ClassErrorResponse:
		return "error response"
	default:
		return "unknown class"
	}
}

// Method is the 12-bit STUN/TURN method.
type Method uint16

// Supported methods, spec.md Section 3 "STUN message".
const (
	MethodBinding           Method = 0x001
	MethodAllocate          Method = 0x003
	MethodRefresh           Method = 0x004
	MethodSend              Method = 0x006
	MethodData              Method = 0x007
	MethodCreatePermission  Method = 0x008
	MethodChannelBind       Method = 0x009
	MethodConnect           Method = 0x00A
	MethodConnectionBind    Method = 0x00B
	MethodConnectionAttempt Method = 0x00C
)

func (m Method) String() string {
	switch m {
	case MethodBinding:
		return "Binding"
	case MethodAllocate:
		return "Allocate"
	case MethodRefresh:
		return "Refresh"
	case MethodSend:
		return "Send"
	case MethodData:
		return "Data"
	case MethodCreatePermission:
		return "CreatePermission"
	case MethodChannelBind:
		return "ChannelBind"
	case MethodConnect:
		return "Connect"
	case MethodConnectionBind:
		return "ConnectionBind"
	case MethodConnectionAttempt:
		return "ConnectionAttempt"
	default:
		return "Unknown"
	}
}

// Type is the combination of Class and Method that forms the 14-bit
// message type field of the STUN header.
type Type struct {
	Class  Class
	Method Method
}

func (t Type) String() string { return t.Method.String() + " " + t.Class.String() }

// value packs Class and Method into the 14-bit wire representation,
// RFC 5389 Section 6.
func (t Type) value() uint16 {
	m := uint16(t.Method)
	c := uint16(t.Class)
	v := m & 0x0f80 << 2
	v |= m & 0x0070 << 1
	v |= m & 0x000f
	v |= c & 0b10 << 7
	v |= c & 0b01 << 4
	return v
}

func typeFromValue(v uint16) Type {
	m := Method(v & 0x000f)
	m |= Method(v&0x00e0) >> 1
	m |= Method(v&0x3e00) >> 2
	c := Class(v>>4) & 0b01
	c |= Class(v>>7) & 0b10
	return Type{Class: c, Method: m}
}

// Attribute is a single decoded STUN attribute.
type Attribute struct {
	Type   AttrType
	Length uint16
	Value  []byte
}

func (a Attribute) equal(b Attribute) bool {
	if a.Type != b.Type || a.Length != b.Length {
		return false
	}
	if len(a.Value) != len(b.Value) {
		return false
	}
	for i := range a.Value {
		if a.Value[i] != b.Value[i] {
			return false
		}
	}
	return true
}

// Message is a decoded STUN message: header plus an ordered attribute list.
type Message struct {
	Type          Type
	Length        uint32 // attribute byte count, excludes header
	TransactionID TransactionID
	Attributes    []Attribute
	Raw           []byte // encoded form, valid after WriteHeader/Encode/Decode
}

// Setter adds itself to a Message.
type Setter interface {
	AddTo(m *Message) error
}

// Getter decodes itself from a Message.
type Getter interface {
	GetFrom(m *Message) error
}

// New returns an empty message with a freshly generated transaction id.
func New() *Message {
	m := &Message{}
	m.TransactionID = NewTransactionID()
	m.WriteHeader()
	return m
}

// Reset clears m so it can be reused, mirroring sync.Pool-friendly decoders
// elsewhere in this module (see internal/server's context pool in the
// teacher for the pattern this follows).
func (m *Message) Reset() {
	m.Type = Type{}
	m.Length = 0
	m.TransactionID = TransactionID{}
	m.Attributes = m.Attributes[:0]
	m.Raw = m.Raw[:0]
}

// Add appends an attribute with the given type and raw value, writing it
// directly into m.Raw (header, length and padding) and updating the
// message length header in place. m.Raw must already hold at least a
// valid header (see WriteHeader); callers build a message by calling
// WriteHeader once and then Add/Setter.AddTo repeatedly, the same sequence
// internal/server/context.go's build method uses for STUN responses.
func (m *Message) Add(t AttrType, v []byte) {
	buf := make([]byte, len(v))
	copy(buf, v)
	m.Attributes = append(m.Attributes, Attribute{Type: t, Length: uint16(len(v)), Value: buf})
	if len(m.Raw) < headerSize {
		m.WriteHeader()
	}
	_ = m.encodeAttribute(Attribute{Type: t, Length: uint16(len(v)), Value: buf})
}

// Get returns the value of the first attribute of type t, or ErrAttributeNotFound.
func (m *Message) Get(t AttrType) ([]byte, error) {
	for _, a := range m.Attributes {
		if a.Type == t {
			return a.Value, nil
		}
	}
	return nil, ErrAttributeNotFound
}

// Contains reports whether m carries an attribute of type t.
func (m *Message) Contains(t AttrType) bool {
	_, err := m.Get(t)
	return err == nil
}

// NewType constructs a Type value.
func NewType(method Method, class Class) Type { return Type{Method: method, Class: class} }

// WriteHeader serializes the STUN header (without attributes) into m.Raw,
// truncating any previously encoded body. Callers append attributes with
// Encode once done.
func (m *Message) WriteHeader() {
	if cap(m.Raw) < headerSize {
		m.Raw = make([]byte, headerSize)
	}
	m.Raw = m.Raw[:headerSize]
	bin.PutUint16(m.Raw[0:2], m.Type.value())
	bin.PutUint16(m.Raw[2:4], uint16(m.Length))
	bin.PutUint32(m.Raw[4:8], magicCookie)
	copy(m.Raw[8:20], m.TransactionID[:])
}

func padLen(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

// Encode rebuilds m.Raw from scratch using m.Type, m.TransactionID and the
// current m.Attributes list. Use it after mutating Attributes directly
// (for example following Decode); the incremental Add/Setter.AddTo path
// does not need it, since it maintains m.Raw as it goes.
func (m *Message) Encode() error {
	attrs := append([]Attribute(nil), m.Attributes...)
	m.WriteHeader()
	m.Attributes = m.Attributes[:0]
	for _, a := range attrs {
		if err := m.encodeAttribute(a); err != nil {
			return err
		}
		m.Attributes = append(m.Attributes, a)
	}
	return nil
}

func (m *Message) encodeAttribute(a Attribute) error {
	if len(a.Value) > 0xffff {
		return errors.Errorf("attribute %s value too large: %d bytes", a.Type, len(a.Value))
	}
	header := make([]byte, 4)
	bin.PutUint16(header[0:2], uint16(a.Type))
	bin.PutUint16(header[2:4], uint16(len(a.Value)))
	m.Raw = append(m.Raw, header...)
	m.Raw = append(m.Raw, a.Value...)
	if pad := padLen(len(a.Value)) - len(a.Value); pad > 0 {
		m.Raw = append(m.Raw, make([]byte, pad)...)
	}
	m.Length = uint32(len(m.Raw) - headerSize)
	bin.PutUint16(m.Raw[2:4], uint16(m.Length))
	return nil
}

// ErrUnexpectedEOF signals a truncated STUN message.
var ErrUnexpectedEOF = errors.New("stun: unexpected end of message")

// ErrNotSTUNMessage signals that the first two header bits are not 0b00 or
// the magic cookie does not match.
var ErrNotSTUNMessage = errors.New("stun: not a STUN message")

// ErrAttributeNotFound is returned by Message.Get when no matching attribute exists.
var ErrAttributeNotFound = errors.New("stun: attribute not found")

// IsMessage reports whether buf looks like a STUN message: the first two
// bits of the header are zero and the magic cookie matches. It does not
// validate length or attributes.
func IsMessage(buf []byte) bool {
	if len(buf) < headerSize {
		return false
	}
	if buf[0]&0xc0 != 0 {
		return false
	}
	return bin.Uint32(buf[4:8]) == magicCookie
}

// UnknownAttributesError reports mandatory (comprehension-required, type <
// 0x8000) attributes that Decode did not understand.
type UnknownAttributesError struct {
	Types []AttrType
}

func (e *UnknownAttributesError) Error() string {
	return "stun: unknown comprehension-required attributes present"
}

// Decode parses buf into m. Attributes of unknown comprehension with type
// >= 0x8000 are preserved as opaque Attribute values; unknown attributes
// below 0x8000 are collected and returned via *UnknownAttributesError
// alongside the otherwise-successfully-decoded message.
func Decode(buf []byte, m *Message) error {
	if len(buf) < headerSize {
		return ErrUnexpectedEOF
	}
	if !IsMessage(buf) {
		return ErrNotSTUNMessage
	}
	m.Reset()
	m.Type = typeFromValue(bin.Uint16(buf[0:2]))
	m.Length = uint32(bin.Uint16(buf[2:4]))
	copy(m.TransactionID[:], buf[8:20])
	m.Raw = append(m.Raw[:0], buf[:headerSize+int(m.Length)]...)

	var unknown []AttrType
	off := headerSize
	end := headerSize + int(m.Length)
	for off+4 <= end {
		at := AttrType(bin.Uint16(buf[off : off+2]))
		l := int(bin.Uint16(buf[off+2 : off+4]))
		off += 4
		if off+l > end {
			return ErrUnexpectedEOF
		}
		val := buf[off : off+l]
		m.Attributes = append(m.Attributes, Attribute{Type: at, Length: uint16(l), Value: val})
		if !at.known() && at < 0x8000 {
			unknown = append(unknown, at)
		}
		off += padLen(l)
	}
	if len(unknown) > 0 {
		return &UnknownAttributesError{Types: unknown}
	}
	return nil
}
