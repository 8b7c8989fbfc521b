package stun

import "crypto/rand"

// NewTransactionID returns a cryptographically random 96-bit transaction id.
func NewTransactionID() TransactionID {
	var id TransactionID
	if _, err := rand.Read(id[:]); err != nil {
		panic(err)
	}
	return id
}
