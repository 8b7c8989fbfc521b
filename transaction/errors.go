// Package transaction implements the STUN/TURN client and server
// transaction layer: request/response correlation, retransmission,
// timeouts and credentials lookup, spec.md Section 4.2.
package transaction

import "github.com/pkg/errors"

// Failure is the outcome delivered to a transaction's collector when it
// does not complete successfully, spec.md Section 4.2 "Failure taxonomy".
type Failure byte

// Supported failure kinds.
const (
	// Timeout means no response arrived within the retransmission budget.
	Timeout Failure = iota
	// Unreachable means an ICMP error or a stream close was observed.
	Unreachable
	// ProtocolError means a response was received but was malformed.
	ProtocolError
	// UnauthenticatedResponse means MESSAGE-INTEGRITY validation failed.
	UnauthenticatedResponse
)

func (f Failure) String() string {
	switch f {
	case Timeout:
		return "timeout"
	case Unreachable:
		return "unreachable"
	case ProtocolError:
		return "protocol error"
	case UnauthenticatedResponse:
		return "unauthenticated response"
	default:
		return "unknown failure"
	}
}

// Error adapts a Failure to the error interface so it can flow through
// normal Go error handling while still being switchable via Cause.
type Error struct {
	Kind Failure
}

func (e *Error) Error() string { return "transaction: " + e.Kind.String() }

// errClosed is returned from Start/operations after the transaction table
// has been closed, e.g. by Agent.Free (spec.md Section 5 "Cancellation").
var errClosed = errors.New("transaction: closed")
