package ice

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Runtime hosts every Agent in a process side by side, replacing the
// teacher's reliance on one process-wide *server.Server singleton
// (gortcd's cmd/gortcd wires exactly one Server per process) with an
// explicit registry keyed by stream id, spec.md Section 9 "Design
// Notes": "implementations MUST NOT rely on global or singleton state;
// multiple Agents must be constructible side by side in one process."
type Runtime struct {
	log *zap.Logger

	mu     sync.Mutex
	agents map[string]*Agent
}

// NewRuntime constructs an empty Runtime.
func NewRuntime(log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runtime{log: log.Named("ice-runtime"), agents: make(map[string]*Agent)}
}

// ErrDuplicateStream is returned by NewAgent when streamID is already
// registered.
type ErrDuplicateStream struct{ StreamID string }

func (e *ErrDuplicateStream) Error() string {
	return fmt.Sprintf("ice: stream %q already registered", e.StreamID)
}

// NewAgent constructs and registers a new Agent under streamID,
// mirroring Server.setOptions's atomic config swap in spirit: each
// stream's Agent is independent, so reconfiguring or closing one never
// touches another.
func (r *Runtime) NewAgent(streamID string, cfg Config, listener Listener) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[streamID]; exists {
		return nil, &ErrDuplicateStream{StreamID: streamID}
	}
	if cfg.Log == nil {
		cfg.Log = r.log
	}
	a := NewAgent(cfg, listener)
	r.agents[streamID] = a
	return a, nil
}

// Agent returns the Agent registered under streamID, if any.
func (r *Runtime) Agent(streamID string) (*Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[streamID]
	return a, ok
}

// CloseAgent closes and unregisters the Agent for streamID.
func (r *Runtime) CloseAgent(streamID string) {
	r.mu.Lock()
	a, ok := r.agents[streamID]
	delete(r.agents, streamID)
	r.mu.Unlock()
	if ok {
		a.Close()
	}
}

// StreamIDs returns the ids of every currently registered stream.
func (r *Runtime) StreamIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}

// Close closes every registered Agent and empties the registry.
func (r *Runtime) Close() {
	r.mu.Lock()
	agents := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	r.agents = make(map[string]*Agent)
	r.mu.Unlock()
	var wg sync.WaitGroup
	for _, a := range agents {
		wg.Add(1)
		go func(a *Agent) {
			defer wg.Done()
			a.Close()
		}(a)
	}
	wg.Wait()
}
