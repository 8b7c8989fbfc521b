package transaction

import (
	"strings"

	"github.com/netice/ice/stun"
)

// CredentialsAuthority resolves a local username fragment to the
// MESSAGE-INTEGRITY key used to authenticate STUN requests/responses,
// spec.md Section 4.2 "Credentials". An ICE agent implements it by
// looking up its local password by ufrag; a TURN client implements it
// with the long-term credential challenged via REALM/NONCE.
type CredentialsAuthority interface {
	// Key returns the integrity key for local username fragment ufrag,
	// and whether it is known.
	Key(ufrag string) (stun.MessageIntegrity, bool)
}

// StaticCredentials is the simplest CredentialsAuthority: a single
// (ufrag, key) pair, as used by one ICE agent instance for its own
// checks, grounded on internal/auth.Static's credential map pattern.
type StaticCredentials struct {
	Ufrag string
	Key_  stun.MessageIntegrity
}

// Key implements CredentialsAuthority.
func (s StaticCredentials) Key(ufrag string) (stun.MessageIntegrity, bool) {
	if ufrag != s.Ufrag {
		return nil, false
	}
	return s.Key_, true
}

// A USERNAME attribute value is shaped "recipientUfrag:senderUfrag"
// (spec.md Section 4.7 "Username format", RFC 8445 Section 7.2.2): the
// sender of a check puts the peer's ufrag first and its own ufrag
// after the colon, so a request sent by B to A carries "A-ufrag:B-ufrag".

// LocalUfragFromUsername extracts the recipient's own ufrag, the part
// before the colon, used by the agent processing an incoming request
// to look up which of its local credentials it was addressed to.
func LocalUfragFromUsername(username string) (string, bool) {
	i := strings.IndexByte(username, ':')
	if i < 0 {
		return "", false
	}
	return username[:i], true
}

// RemoteUfragFromUsername extracts the sender's ufrag, the part after
// the colon, used by the recipient of a request to identify which
// peer it came from.
func RemoteUfragFromUsername(username string) (string, bool) {
	i := strings.IndexByte(username, ':')
	if i < 0 {
		return "", false
	}
	return username[i+1:], true
}
