package ice

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/gather"
	"github.com/netice/ice/internal/metrics"
	"github.com/netice/ice/socket"
	"github.com/netice/ice/stun"
	"github.com/netice/ice/transaction"
	"github.com/netice/ice/transport"
)

// State is an ICE stream's overall connectivity state, RFC 8445
// Section 2.3, spec.md Section 5 "Agent states".
type State byte

// Supported states.
const (
	StateGathering State = iota
	StateChecking
	StateConnected
	StateCompleted
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateGathering:
		return "gathering"
	case StateChecking:
		return "checking"
	case StateConnected:
		return "connected"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Listener receives asynchronous notifications from an Agent, spec.md
// Section 5 "Callbacks". Embedding NopListener lets a caller implement
// only the methods it needs.
type Listener interface {
	OnStateChange(s State)
	OnSelectedPairChange(componentID int, pair candidate.Pair)
}

// NopListener implements Listener with no-ops, embed it to implement
// only the callbacks a caller cares about.
type NopListener struct{}

// OnStateChange implements Listener.
func (NopListener) OnStateChange(State) {}

// OnSelectedPairChange implements Listener.
func (NopListener) OnSelectedPairChange(int, candidate.Pair) {}

// Component is one component of an ICE stream: one socket, its
// gathered local candidates and its view of the stream's checklist.
type Component struct {
	ID     int
	Socket socket.Socket
	Local  candidate.Candidates
}

// Config configures an Agent, spec.md Section 4 "Agent
// configuration". It is the canonical options surface (Open Question
// decision mirrored from HarvestConfig, see DESIGN.md), analogous to
// gortcd's internal/server.Options single flat struct.
type Config struct {
	Role         Role
	LocalUfrag   string
	LocalPwd     string
	Harvest      gather.HarvestConfig
	Log          *zap.Logger
	ClientConfig transaction.ClientConfig
	// Ta is the pacing interval between ordinary checks, spec.md
	// Section 4 "Agent configuration"; defaults to taDefault (RFC 8445
	// Section 14's recommended 50ms) if zero.
	Ta time.Duration
	// Trickle records whether trickle mode (RFC 8838 "Trickle ICE") is
	// on, spec.md Section 4's "trickle mode". The Agent does not consult
	// it: AddRemoteCandidate merges remote candidates into a running
	// checklist whatever its value.
	Trickle bool
	// Metrics records check/nomination/gathering series, spec.md
	// Section 10 "metrics". Defaults to metrics.Nop{} if nil.
	Metrics metrics.Recorder
}

// Agent drives one ICE stream: gathering, checklist scheduling,
// connectivity checks and nomination, spec.md Sections 3-5. It
// replaces the teacher's reliance on a single long-lived *Server
// instance with an explicit, independently constructible runtime
// object an IceRuntime can host many of side by side (see runtime.go).
type Agent struct {
	cfg       Config
	log       *zap.Logger
	tieBreak  uint64
	tx        *transaction.Agent
	serverTbl *transaction.ServerTable
	creds     transaction.CredentialsAuthority

	mu         sync.Mutex
	role       Role
	components map[int]*Component
	checklist  *Checklist
	remote     struct {
		ufrag, pwd string
	}
	listener Listener
	state    State
	closed   chan struct{}
	wg       sync.WaitGroup
}

// NewAgent constructs an Agent in cfg.Role with no components yet; add
// components with AddComponent before calling Gather.
func NewAgent(cfg Config, listener Listener) *Agent {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.ClientConfig == (transaction.ClientConfig{}) {
		cfg.ClientConfig = transaction.DefaultClientConfig()
	}
	if listener == nil {
		listener = NopListener{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	a := &Agent{
		cfg:        cfg,
		log:        cfg.Log.Named("ice"),
		tieBreak:   newTieBreaker(),
		tx:         transaction.NewAgent(),
		serverTbl:  transaction.NewServerTable(),
		creds:      transaction.StaticCredentials{Ufrag: cfg.LocalUfrag, Key_: stun.NewShortTermIntegrity(cfg.LocalPwd)},
		role:       cfg.Role,
		components: make(map[int]*Component),
		listener:   listener,
		closed:     make(chan struct{}),
	}
	return a
}

// AddComponent registers a component's socket, starting its receive
// loop wired into this agent's STUN demultiplexing.
func (a *Agent) AddComponent(id int, s socket.Socket) {
	a.mu.Lock()
	a.components[id] = &Component{ID: id, Socket: s}
	a.mu.Unlock()
	s.SetHandler(func(b []byte, src transport.Address) { a.handleIncoming(id, s, b, src) })
}

// SetRemoteCredentials records the remote peer's ufrag/pwd, required
// before connectivity checks can begin, spec.md Section 4.7
// "Credential exchange".
func (a *Agent) SetRemoteCredentials(ufrag, pwd string) {
	a.mu.Lock()
	a.remote.ufrag, a.remote.pwd = ufrag, pwd
	a.mu.Unlock()
}

// Gather runs harvesting for every component concurrently and stores
// the resulting local candidates.
func (a *Agent) Gather(ctx context.Context) error {
	a.setState(StateGathering)
	g := gather.NewGatherer(a.cfg.Harvest)
	a.mu.Lock()
	components := make([]*Component, 0, len(a.components))
	for _, c := range a.components {
		components = append(components, c)
	}
	a.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range components {
		wg.Add(1)
		go func(c *Component) {
			defer wg.Done()
			start := time.Now()
			cs, err := g.Gather(ctx, c.ID, c.Socket)
			a.cfg.Metrics.ObserveGatheringDuration(time.Since(start).Seconds())
			if err != nil {
				a.log.Warn("gather failed", zap.Int("component", c.ID), zap.Error(err))
				return
			}
			for _, cand := range cs {
				a.cfg.Metrics.IncCandidatesGathered(cand.Type.String())
			}
			a.mu.Lock()
			c.Local = cs
			a.mu.Unlock()
		}(c)
	}
	wg.Wait()
	return nil
}

// LocalCandidates returns every gathered local candidate across all
// components.
func (a *Agent) LocalCandidates() candidate.Candidates {
	a.mu.Lock()
	defer a.mu.Unlock()
	var all candidate.Candidates
	for _, c := range a.components {
		all = append(all, c.Local...)
	}
	return all
}

// StartChecks builds the checklist from local and remote candidates
// and starts the paced connectivity-check loop, spec.md Section 5
// "Scheduling".
func (a *Agent) StartChecks(ctx context.Context, remote candidate.Candidates) {
	a.mu.Lock()
	local := a.localCandidatesLocked()
	byAddr := make(map[string]candidate.Candidate, len(local))
	for _, c := range local {
		if c.IsHost() {
			byAddr[c.TransportAddress.String()] = c
		}
	}
	pairs := candidate.NewPairs(local, remote)
	pairs = candidate.ReplaceSrflxWithBase(pairs, byAddr)
	pairs = candidate.Dedup(pairs)
	for i := range pairs {
		g, d := pairs[i].Local.Priority, pairs[i].Remote.Priority
		if a.role == Controlled {
			g, d = d, g
		}
		pairs[i].Priority = candidate.PairPriority(g, d)
	}
	a.checklist = NewChecklist(pairs)
	a.mu.Unlock()

	a.setState(StateChecking)
	a.wg.Add(1)
	go a.paceLoop(ctx)
}

// AddRemoteCandidate pairs remote with every known local candidate for
// its component and merges the results into the running checklist, RFC
// 8838 "Trickle ICE": candidates may arrive after StartChecks instead
// of all at once. It is a no-op if StartChecks has not run yet.
func (a *Agent) AddRemoteCandidate(remote candidate.Candidate) {
	a.mu.Lock()
	cl := a.checklist
	local := a.localCandidatesLocked()
	role := a.role
	a.mu.Unlock()
	if cl == nil {
		return
	}

	byAddr := make(map[string]candidate.Candidate, len(local))
	var matching candidate.Candidates
	for _, c := range local {
		if c.IsHost() {
			byAddr[c.TransportAddress.String()] = c
		}
		if c.ComponentID == remote.ComponentID {
			matching = append(matching, c)
		}
	}

	pairs := candidate.NewPairs(matching, candidate.Candidates{remote})
	pairs = candidate.ReplaceSrflxWithBase(pairs, byAddr)
	pairs = candidate.Dedup(pairs)
	for i := range pairs {
		g, d := pairs[i].Local.Priority, pairs[i].Remote.Priority
		if role == Controlled {
			g, d = d, g
		}
		pairs[i].Priority = candidate.PairPriority(g, d)
	}
	cl.AddPairs(pairs)
}

func (a *Agent) localCandidatesLocked() candidate.Candidates {
	var all candidate.Candidates
	for _, c := range a.components {
		all = append(all, c.Local...)
	}
	return all
}

// paceLoop fires one ordinary or triggered check every Ta, spec.md
// Section 5 "Pacing".
func (a *Agent) paceLoop(ctx context.Context) {
	defer a.wg.Done()
	ta := a.cfg.Ta
	if ta <= 0 {
		ta = taDefault
	}
	t := time.NewTicker(ta)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.closed:
			return
		case <-t.C:
			a.mu.Lock()
			cl := a.checklist
			a.mu.Unlock()
			if cl == nil {
				continue
			}
			i, ok := cl.Next()
			if !ok {
				if cl.Done() {
					a.setState(StateCompleted)
				}
				continue
			}
			go a.runCheck(ctx, cl, i)
		}
	}
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	changed := a.state != s
	a.state = s
	a.mu.Unlock()
	if changed {
		a.listener.OnStateChange(s)
	}
}

// Close stops the agent's background loops and frees its transactions.
func (a *Agent) Close() {
	select {
	case <-a.closed:
		return
	default:
		close(a.closed)
	}
	a.tx.Free()
	a.wg.Wait()
	a.setState(StateClosed)
}
