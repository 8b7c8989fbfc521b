package stun

import (
	"bytes"
	"net"
	"testing"
)

// sample request from RFC 5769 Section 2.1.
var rfc5769Request = []byte{
	0x00, 0x01, 0x00, 0x58,
	0x21, 0x12, 0xa4, 0x42,
	0xb7, 0xe7, 0xa7, 0x01,
	0xbc, 0x34, 0xd6, 0x86,
	0xfa, 0x87, 0xdf, 0xae,
	0x80, 0x22, 0x00, 0x10,
	0x53, 0x54, 0x55, 0x4e,
	0x20, 0x74, 0x65, 0x73,
	0x74, 0x20, 0x63, 0x6c,
	0x69, 0x65, 0x6e, 0x74,
	0x00, 0x24, 0x00, 0x04,
	0x6e, 0x00, 0x01, 0xff,
	0x80, 0x29, 0x00, 0x08,
	0x93, 0x2f, 0xf9, 0xb1,
	0x51, 0x26, 0x3b, 0x36,
	0x00, 0x06, 0x00, 0x09,
	0x65, 0x76, 0x74, 0x6a,
	0x3a, 0x68, 0x36, 0x76,
	0x59, 0x20, 0x20, 0x20,
	0x00, 0x08, 0x00, 0x14,
	0x9a, 0xea, 0xa7, 0x0c,
	0xbf, 0xd8, 0xcb, 0x56,
	0x78, 0x1e, 0xf2, 0xb5,
	0xb2, 0xd3, 0xf2, 0x49,
	0xc1, 0xb5, 0x71, 0xa2,
	0x80, 0x28, 0x00, 0x04,
	0xe5, 0x7a, 0x3b, 0xcf,
}

func TestRFC5769Request(t *testing.T) {
	m := &Message{}
	if err := Decode(rfc5769Request, m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Type.Class != ClassRequest || m.Type.Method != MethodBinding {
		t.Fatalf("unexpected type: %v", m.Type)
	}
	var username Username
	if err := username.GetFrom(m); err != nil {
		t.Fatalf("username: %v", err)
	}
	if username != "evtj:h6vY" {
		t.Fatalf("unexpected username: %q", username)
	}
	key := NewShortTermIntegrity("VOkJxbRl1RmTxUk/WvJxBt")
	var integrity MessageIntegrity
	if err := integrity.GetFrom(m); err != nil {
		t.Fatalf("get integrity: %v", err)
	}
	if err := key.Check(m); err != nil {
		t.Fatalf("integrity check: %v", err)
	}
	if err := Fingerprint.Check(m); err != nil {
		t.Fatalf("fingerprint check: %v", err)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	m := New()
	m.Type = NewType(MethodBinding, ClassRequest)
	m.WriteHeader()
	if err := Username("user:frag").AddTo(m); err != nil {
		t.Fatal(err)
	}
	if err := Priority(12345).AddTo(m); err != nil {
		t.Fatal(err)
	}
	if err := (XORMappedAddress{IP: net.ParseIP("203.0.113.5"), Port: 12345}).AddTo(m); err != nil {
		t.Fatal(err)
	}
	if err := NewShortTermIntegrity("pwd").AddTo(m); err != nil {
		t.Fatal(err)
	}
	if err := Fingerprint.AddTo(m); err != nil {
		t.Fatal(err)
	}

	decoded := &Message{}
	if err := Decode(m.Raw, decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != m.Type {
		t.Fatalf("type mismatch: %v != %v", decoded.Type, m.Type)
	}
	if decoded.TransactionID != m.TransactionID {
		t.Fatalf("transaction id mismatch")
	}
	if len(decoded.Attributes) != len(m.Attributes) {
		t.Fatalf("attribute count mismatch: %d != %d", len(decoded.Attributes), len(m.Attributes))
	}
	for i := range decoded.Attributes {
		if !decoded.Attributes[i].equal(m.Attributes[i]) {
			t.Fatalf("attribute %d mismatch: %v != %v", i, decoded.Attributes[i], m.Attributes[i])
		}
	}
	if err := NewShortTermIntegrity("pwd").Check(decoded); err != nil {
		t.Fatalf("integrity check after round-trip: %v", err)
	}
	if err := Fingerprint.Check(decoded); err != nil {
		t.Fatalf("fingerprint check after round-trip: %v", err)
	}
}

func TestXORIdempotent(t *testing.T) {
	m := New()
	addr := XORMappedAddress{IP: net.ParseIP("2001:db8::1"), Port: 4242}
	if err := addr.AddTo(m); err != nil {
		t.Fatal(err)
	}
	var got XORMappedAddress
	if err := got.GetFrom(m); err != nil {
		t.Fatal(err)
	}
	if !got.IP.Equal(addr.IP) || got.Port != addr.Port {
		t.Fatalf("xor round trip mismatch: %v/%d != %v/%d", got.IP, got.Port, addr.IP, addr.Port)
	}
}

func TestIntegrityWrongKeyFails(t *testing.T) {
	m := New()
	m.Type = NewType(MethodBinding, ClassRequest)
	if err := NewShortTermIntegrity("right").AddTo(m); err != nil {
		t.Fatal(err)
	}
	if err := NewShortTermIntegrity("right").Check(m); err != nil {
		t.Fatalf("expected success: %v", err)
	}
	if err := NewShortTermIntegrity("wrong").Check(m); err == nil {
		t.Fatal("expected mismatch with wrong key")
	}
}

func TestIsMessageRejectsChannelData(t *testing.T) {
	cd := []byte{0x40, 0x00, 0x00, 0x04, 1, 2, 3, 4}
	if IsMessage(cd) {
		t.Fatal("channel data should not look like a STUN message")
	}
	if !IsChannelData(cd) {
		t.Fatal("expected channel data")
	}
}

func TestUnknownAttributeError(t *testing.T) {
	m := New()
	m.Type = NewType(MethodBinding, ClassRequest)
	m.Add(AttrType(0x7fff), []byte{1, 2, 3, 4})

	decoded := &Message{}
	err := Decode(m.Raw, decoded)
	uaErr, ok := err.(*UnknownAttributesError)
	if !ok {
		t.Fatalf("expected *UnknownAttributesError, got %T: %v", err, err)
	}
	if !bytes.Equal([]byte{byte(uaErr.Types[0] >> 8), byte(uaErr.Types[0])}, []byte{0x7f, 0xff}) {
		t.Fatalf("unexpected unknown type: %v", uaErr.Types)
	}
}
