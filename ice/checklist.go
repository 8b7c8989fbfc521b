// Package ice implements the ICE agent: checklist scheduling,
// connectivity checks, nomination and the selected-pair state machine,
// spec.md Sections 3-5, grounded on the checklist/pacing shape of the
// vendored github.com/gortc/ice (Checklist.ComputePriorities/Order/
// Prune/Limit, read before vendor/ was pruned — see DESIGN.md) and on
// gortcd's internal/server worker-pool dispatch pattern for the
// goroutine driving the pacing timer.
package ice

import (
	"sort"
	"sync"
	"time"

	"github.com/netice/ice/candidate"
)

// taDefault is the default pacing interval between ordinary checks,
// RFC 8445 Section 14 recommends 50ms, spec.md Section 5 "Pacing".
const taDefault = 50 * time.Millisecond

// Checklist schedules connectivity checks for one ICE stream's pairs:
// freezing/unfreezing by foundation, a paced ordinary-check cursor and
// a triggered-check FIFO queue that always takes priority over it,
// spec.md Section 5 "Scheduling".
type Checklist struct {
	mu        sync.Mutex
	pairs     candidate.Pairs
	triggered []int // indices into pairs, FIFO
	// done is not set or read by any method; Done derives the
	// terminal state from the pair states instead.
	done bool
}

// NewChecklist builds a checklist from pairs sorted by priority
// descending, setting the highest-priority pair of each foundation
// Waiting and every other pair Frozen, RFC 8445 Section 6.1.2.7 "Computing States": "for all pairs with the
// same foundation, only one is Waiting or In-Progress at a time; the
// rest start Frozen."
func NewChecklist(pairs candidate.Pairs) *Checklist {
	sorted := append(candidate.Pairs(nil), pairs...)
	sort.Sort(sorted)
	unfrozen := make(map[string]bool)
	for i := range sorted {
		f := sorted[i].Foundation()
		if !unfrozen[f] {
			sorted[i].State = candidate.PairWaiting
			unfrozen[f] = true
		} else {
			sorted[i].State = candidate.PairFrozen
		}
	}
	return &Checklist{pairs: sorted}
}

// Pairs returns a snapshot of the checklist's pairs.
func (c *Checklist) Pairs() candidate.Pairs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append(candidate.Pairs(nil), c.pairs...)
}

// Trigger sets the pair at index i Waiting (unless it already
// Succeeded) and appends it to the back of the triggered-check FIFO
// queue, spec.md Section 5
// "Triggered checks": "a check triggered by an incoming request on a
// pair that was Frozen or Waiting jumps the ordinary schedule."
func (c *Checklist) Trigger(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.pairs) {
		return
	}
	switch c.pairs[i].State {
	case candidate.PairSucceeded:
		return
	}
	c.pairs[i].State = candidate.PairWaiting
	c.triggered = append(c.triggered, i)
}

// Next returns the index of the next pair to check and marks it
// In-Progress, preferring the triggered-check queue over the ordinary
// frozen/foundation schedule, spec.md Section 5 "Scheduling". It
// returns ok=false if there is nothing eligible right now (everything
// Frozen pending another foundation's completion, or all Succeeded/
// Failed).
func (c *Checklist) Next() (index int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.triggered) > 0 {
		i := c.triggered[0]
		c.triggered = c.triggered[1:]
		if c.pairs[i].State == candidate.PairWaiting {
			c.pairs[i].State = candidate.PairInProgress
			return i, true
		}
	}
	for i := range c.pairs {
		if c.pairs[i].State == candidate.PairWaiting {
			c.pairs[i].State = candidate.PairInProgress
			return i, true
		}
	}
	return 0, false
}

// Complete records the outcome of the check for pair i: success
// unfreezes every Frozen pair sharing its foundation (RFC 8445 Section
// 6.1.2.7), failure leaves siblings untouched so a later foundation's
// check can still unfreeze them from a different pair.
func (c *Checklist) Complete(i int, success bool, nominated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.pairs) {
		return
	}
	f := c.pairs[i].Foundation()
	if success {
		c.pairs[i].State = candidate.PairSucceeded
		c.pairs[i].Valid = true
		c.pairs[i].Nominated = nominated
		for j := range c.pairs {
			if j == i {
				continue
			}
			if c.pairs[j].Foundation() == f && c.pairs[j].State == candidate.PairFrozen {
				c.pairs[j].State = candidate.PairWaiting
			}
		}
	} else {
		c.pairs[i].State = candidate.PairFailed
	}
}

// CompleteChecked records a successful check for pair i like Complete,
// but names the actual valid pair separately from pairs[i]: when a
// response's mapped address resolves to a different local candidate
// than pairs[i].Local (a peer-reflexive local discovery), valid is the
// (peer-reflexive local, pairs[i].Remote) pair that RFC 8445 Section
// 7.2.5.3 "Constructing a Valid Pair" actually adds to the valid list,
// spec.md Section 4.9 steps 2-3. If valid already exists in the
// checklist it is promoted in place; otherwise it is appended.
func (c *Checklist) CompleteChecked(i int, valid candidate.Pair, nominated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.pairs) {
		return
	}
	f := c.pairs[i].Foundation()
	c.pairs[i].State = candidate.PairSucceeded
	for j := range c.pairs {
		if j == i {
			continue
		}
		if c.pairs[j].Foundation() == f && c.pairs[j].State == candidate.PairFrozen {
			c.pairs[j].State = candidate.PairWaiting
		}
	}

	if c.pairs[i].Equal(valid) {
		c.pairs[i].Valid = true
		c.pairs[i].Nominated = nominated
		return
	}
	for j := range c.pairs {
		if c.pairs[j].Equal(valid) {
			c.pairs[j].State = candidate.PairSucceeded
			c.pairs[j].Valid = true
			c.pairs[j].Nominated = nominated
			return
		}
	}
	valid.State = candidate.PairSucceeded
	valid.Valid = true
	valid.Nominated = nominated
	c.pairs = append(c.pairs, valid)
}

// AddPairs merges newly discovered pairs into the checklist, RFC 8838
// "Trickle ICE": a new pair starts Waiting unless its foundation
// already has a non-Frozen pair, in which case it starts Frozen, per
// the same per-foundation rule NewChecklist applies up front (RFC 8445
// Section 6.1.2.7).
func (c *Checklist) AddPairs(pairs candidate.Pairs) {
	c.mu.Lock()
	defer c.mu.Unlock()
	unfrozen := make(map[string]bool)
	for _, p := range c.pairs {
		if p.State != candidate.PairFrozen {
			unfrozen[p.Foundation()] = true
		}
	}
	for _, p := range pairs {
		f := p.Foundation()
		if !unfrozen[f] {
			p.State = candidate.PairWaiting
			unfrozen[f] = true
		} else {
			p.State = candidate.PairFrozen
		}
		c.pairs = append(c.pairs, p)
	}
}

// SelectedPair returns the highest-priority Nominated, Valid pair for
// componentID, if any, spec.md Section 5 "Selecting pairs".
func (c *Checklist) SelectedPair(componentID int) (candidate.Pair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var best candidate.Pair
	found := false
	for _, p := range c.pairs {
		if p.Local.ComponentID != componentID || !p.Nominated || !p.Valid {
			continue
		}
		if !found || p.Priority > best.Priority {
			best = p
			found = true
		}
	}
	return best, found
}

// Done reports whether every pair has reached a terminal state
// (Succeeded or Failed).
func (c *Checklist) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.pairs {
		if p.State != candidate.PairSucceeded && p.State != candidate.PairFailed {
			return false
		}
	}
	return true
}
