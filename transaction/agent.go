package transaction

import (
	"sync"

	"github.com/netice/ice/stun"
)

// Agent correlates incoming responses to outstanding ClientTransactions
// by transaction id, spec.md Section 4.2 "Client transactions". It is
// the client-side counterpart to ServerTable.
type Agent struct {
	mu     sync.Mutex
	active map[stun.TransactionID]*ClientTransaction
	closed bool
}

// NewAgent constructs an empty transaction table.
func NewAgent() *Agent {
	return &Agent{active: make(map[stun.TransactionID]*ClientTransaction)}
}

// Start registers t under the given transaction id, and returns
// errClosed if the agent has been freed.
func (a *Agent) Start(id stun.TransactionID, t *ClientTransaction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errClosed
	}
	a.active[id] = t
	return nil
}

// HandleResponse delivers resp to its matching transaction, if any,
// and removes it from the table. It reports whether a match was
// found.
func (a *Agent) HandleResponse(id stun.TransactionID, resp *stun.Message) bool {
	a.mu.Lock()
	t, ok := a.active[id]
	if ok {
		delete(a.active, id)
	}
	a.mu.Unlock()
	if !ok {
		return false
	}
	t.HandleResponse(resp)
	return true
}

// Stop cancels and removes the transaction for id, if still pending.
func (a *Agent) Stop(id stun.TransactionID) {
	a.mu.Lock()
	t, ok := a.active[id]
	if ok {
		delete(a.active, id)
	}
	a.mu.Unlock()
	if ok {
		t.Cancel()
	}
}

// Free cancels every pending transaction and marks the agent closed;
// subsequent Start calls fail, spec.md Section 5 "Cancellation".
func (a *Agent) Free() {
	a.mu.Lock()
	a.closed = true
	pending := make([]*ClientTransaction, 0, len(a.active))
	for id, t := range a.active {
		pending = append(pending, t)
		delete(a.active, id)
	}
	a.mu.Unlock()
	for _, t := range pending {
		t.Cancel()
	}
}
