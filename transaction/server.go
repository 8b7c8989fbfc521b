package transaction

import (
	"sync"
	"time"

	"github.com/netice/ice/stun"
)

// duplicateWindow is how long a server transaction keeps its cached
// response available for retransmitted duplicate requests, spec.md
// Section 4.2 "Server transactions": "a server transaction caches its
// response for 9.5s so retransmissions of the request receive the
// original answer instead of being reprocessed."
const duplicateWindow = 9500 * time.Millisecond

type cachedResponse struct {
	raw     []byte
	expires time.Time
}

// ServerTable deduplicates incoming requests by transaction id,
// caching each one's response so a retransmitted request gets the
// original answer instead of being processed twice, spec.md Section
// 4.2 "Server transactions".
type ServerTable struct {
	mu     sync.Mutex
	cached map[stun.TransactionID]cachedResponse
	now    func() time.Time
}

// NewServerTable constructs an empty table.
func NewServerTable() *ServerTable {
	return &ServerTable{
		cached: make(map[stun.TransactionID]cachedResponse),
		now:    time.Now,
	}
}

// Lookup returns the cached response for id, if one is present and has
// not expired. Callers should send it verbatim instead of reprocessing
// the request.
func (s *ServerTable) Lookup(id stun.TransactionID) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	c, ok := s.cached[id]
	if !ok {
		return nil, false
	}
	return c.raw, true
}

// Store remembers response as the answer for id, for duplicateWindow.
func (s *ServerTable) Store(id stun.TransactionID, response []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached[id] = cachedResponse{
		raw:     append([]byte(nil), response...),
		expires: s.now().Add(duplicateWindow),
	}
	s.evictLocked()
}

// evictLocked drops expired entries; called with mu held.
func (s *ServerTable) evictLocked() {
	now := s.now()
	for id, c := range s.cached {
		if now.After(c.expires) {
			delete(s.cached, id)
		}
	}
}
