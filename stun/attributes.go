package stun

import "fmt"

// AttrType is the 16-bit STUN attribute type.
type AttrType uint16

// Supported attribute types, spec.md Section 4.1 "Supported attributes".
const (
	AttrMappedAddress     AttrType = 0x0001
	AttrResponseAddress   AttrType = 0x0002
	AttrChangeRequest     AttrType = 0x0003
	AttrSourceAddress     AttrType = 0x0004
	AttrChangedAddress    AttrType = 0x0005
	AttrUsername          AttrType = 0x0006
	AttrMessageIntegrity  AttrType = 0x0008
	AttrErrorCode         AttrType = 0x0009
	AttrUnknownAttributes AttrType = 0x000A
	AttrReflectedFrom     AttrType = 0x000B
	AttrChannelNumber     AttrType = 0x000C
	AttrLifetime          AttrType = 0x000D
	AttrXORPeerAddress    AttrType = 0x0012
	AttrData              AttrType = 0x0013
	AttrRealm             AttrType = 0x0014
	AttrNonce             AttrType = 0x0015
	AttrXORRelayedAddress AttrType = 0x0016
	AttrRequestedAddressFamily AttrType = 0x0017
	AttrEvenPort          AttrType = 0x0018
	AttrRequestedTransport AttrType = 0x0019
	AttrDontFragment      AttrType = 0x001A
	AttrXORMappedAddress  AttrType = 0x0020
	AttrReservationToken  AttrType = 0x0022
	AttrPriority          AttrType = 0x0024
	AttrUseCandidate      AttrType = 0x0025
	AttrSoftware          AttrType = 0x8022
	AttrAlternateServer   AttrType = 0x8023
	AttrFingerprint       AttrType = 0x8028
	AttrICEControlled     AttrType = 0x8029
	AttrICEControlling    AttrType = 0x802A
	AttrConnectionID      AttrType = 0x002A
)

var attrNames = map[AttrType]string{
	AttrMappedAddress:          "MAPPED-ADDRESS",
	AttrResponseAddress:        "RESPONSE-ADDRESS",
	AttrChangeRequest:          "CHANGE-REQUEST",
	AttrSourceAddress:          "SOURCE-ADDRESS",
	AttrChangedAddress:         "CHANGED-ADDRESS",
	AttrUsername:               "USERNAME",
	AttrMessageIntegrity:       "MESSAGE-INTEGRITY",
	AttrErrorCode:              "ERROR-CODE",
	AttrUnknownAttributes:      "UNKNOWN-ATTRIBUTES",
	AttrReflectedFrom:          "REFLECTED-FROM",
	AttrChannelNumber:          "CHANNEL-NUMBER",
	AttrLifetime:               "LIFETIME",
	AttrXORPeerAddress:         "XOR-PEER-ADDRESS",
	AttrData:                   "DATA",
	AttrRealm:                  "REALM",
	AttrNonce:                  "NONCE",
	AttrXORRelayedAddress:      "XOR-RELAYED-ADDRESS",
	AttrRequestedAddressFamily: "REQUESTED-ADDRESS-FAMILY",
	AttrEvenPort:               "EVEN-PORT",
	AttrRequestedTransport:     "REQUESTED-TRANSPORT",
	AttrDontFragment:           "DONT-FRAGMENT",
	AttrXORMappedAddress:       "XOR-MAPPED-ADDRESS",
	AttrReservationToken:       "RESERVATION-TOKEN",
	AttrPriority:               "PRIORITY",
	AttrUseCandidate:           "USE-CANDIDATE",
	AttrSoftware:               "SOFTWARE",
	AttrAlternateServer:        "ALTERNATE-SERVER",
	AttrFingerprint:            "FINGERPRINT",
	AttrICEControlled:          "ICE-CONTROLLED",
	AttrICEControlling:         "ICE-CONTROLLING",
	AttrConnectionID:           "CONNECTION-ID",
}

func (t AttrType) String() string {
	if n, ok := attrNames[t]; ok {
		return n
	}
	return fmt.Sprintf("0x%04x", uint16(t))
}

// known reports whether t is one of the attributes this codec understands.
func (t AttrType) known() bool {
	_, ok := attrNames[t]
	return ok
}

// CheckSize returns an error if got != expected, naming attr t in the message.
func CheckSize(t AttrType, got, expected int) error {
	if got != expected {
		return errorf("stun: bad length %d for %s, expected %d", got, t, expected)
	}
	return nil
}
