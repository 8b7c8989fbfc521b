package ice

import (
	"context"

	"go.uber.org/zap"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/stun"
	"github.com/netice/ice/transaction"
	"github.com/netice/ice/transport"
)

// runCheck sends one outgoing connectivity check for the checklist
// pair at index i and applies its outcome, spec.md Section 4.9
// "Connectivity checks". Nomination is requested (USE-CANDIDATE) when
// the agent is Controlling and no pair has been selected yet for the
// pair's component, so every check a Controlling agent sends before a
// selection carries USE-CANDIDATE.
func (a *Agent) runCheck(ctx context.Context, cl *Checklist, i int) {
	pairs := cl.Pairs()
	if i >= len(pairs) {
		return
	}
	pair := pairs[i]

	a.mu.Lock()
	comp, ok := a.components[pair.Local.ComponentID]
	role := a.role
	remoteUfrag, remotePwd := a.remote.ufrag, a.remote.pwd
	localUfrag := a.cfg.LocalUfrag
	a.mu.Unlock()
	if !ok {
		cl.Complete(i, false, false)
		return
	}

	req := stun.New()
	req.Type = stun.NewType(stun.MethodBinding, stun.ClassRequest)
	req.WriteHeader()
	stun.Username(remoteUfrag + ":" + localUfrag).AddTo(req) // nolint:errcheck
	stun.Priority(pair.Local.Priority).AddTo(req)             // nolint:errcheck
	nominate := role == Controlling && a.shouldNominate(cl, pair)
	if nominate {
		stun.UseCandidate{}.AddTo(req) // nolint:errcheck
	}
	if role == Controlling {
		stun.AttrControlling(a.tieBreak).AddTo(req) // nolint:errcheck
	} else {
		stun.AttrControlled(a.tieBreak).AddTo(req) // nolint:errcheck
	}
	integrity := stun.NewShortTermIntegrity(remotePwd)
	integrity.AddTo(req)    // nolint:errcheck
	stun.Fingerprint.AddTo(req) // nolint:errcheck

	sender := checkSender{comp.Socket}
	udp := comp.Socket.LocalAddr().Proto == transport.UDP
	tx := transaction.NewClientTransaction(ctx, sender, pair.Remote.TransportAddress, req, udp, a.cfg.ClientConfig, a.log)
	if err := a.tx.Start(req.TransactionID, tx); err != nil {
		cl.Complete(i, false, false)
		return
	}
	a.cfg.Metrics.IncChecksSent()

	select {
	case r := <-tx.Done():
		if r.Err != nil {
			a.log.Debug("check failed", zap.Int("pair", i), zap.Error(r.Err))
			a.cfg.Metrics.IncChecksFailed()
			cl.Complete(i, false, false)
			return
		}
		a.handleCheckResponse(cl, i, pair, r.Message, remotePwd, nominate)
	case <-ctx.Done():
		tx.Cancel()
		a.cfg.Metrics.IncChecksFailed()
		cl.Complete(i, false, false)
	}
}

// shouldNominate reports whether no pair has been selected yet for
// pair's component. It does not look at pair's own state or priority.
func (a *Agent) shouldNominate(cl *Checklist, pair candidate.Pair) bool {
	if _, ok := cl.SelectedPair(pair.Local.ComponentID); ok {
		return false
	}
	return true
}

// handleCheckResponse processes a success or error response to pair's
// outgoing check, spec.md Section 4.9 "On success response": (1)
// validate MESSAGE-INTEGRITY with the remote password, failing the
// pair if it doesn't check out; (2) if the response's mapped address
// doesn't match a local candidate already known for this component,
// construct a peer-reflexive local candidate for it, RFC 8445 Section
// 7.2.5.3 "Discovering Peer-Reflexive Candidates"; (3) record the
// resulting (mapped-address candidate, pair.Remote) as the valid pair,
// which may be a pair distinct from pair itself.
func (a *Agent) handleCheckResponse(cl *Checklist, i int, pair candidate.Pair, resp *stun.Message, remotePwd string, requestedNomination bool) {
	if resp.Type.Class == stun.ClassErrorResponse {
		var ec stun.ErrorCodeAttribute
		if err := ec.GetFrom(resp); err == nil && ec.Code == stun.CodeRoleConflict {
			a.flipRole()
		}
		a.cfg.Metrics.IncChecksFailed()
		cl.Complete(i, false, false)
		return
	}

	integrity := stun.NewShortTermIntegrity(remotePwd)
	if err := integrity.Check(resp); err != nil {
		a.log.Debug("check response failed integrity", zap.Int("pair", i), zap.Error(err))
		a.cfg.Metrics.IncChecksFailed()
		cl.Complete(i, false, false)
		return
	}

	var xma stun.XORMappedAddress
	if err := xma.GetFrom(resp); err != nil {
		a.cfg.Metrics.IncChecksFailed()
		cl.Complete(i, false, false)
		return
	}
	mapped := transport.Address{IP: xma.IP, Port: xma.Port, Proto: pair.Local.TransportAddress.Proto}

	local := a.localCandidateFor(pair.Local.ComponentID, mapped, pair.Local)
	valid := candidate.Pair{Local: local, Remote: pair.Remote}
	g, d := local.Priority, pair.Remote.Priority
	a.mu.Lock()
	role := a.role
	a.mu.Unlock()
	if role == Controlled {
		g, d = d, g
	}
	valid.Priority = candidate.PairPriority(g, d)

	a.cfg.Metrics.IncChecksSucceeded()
	cl.CompleteChecked(i, valid, requestedNomination)
	if requestedNomination {
		componentID := pair.Local.ComponentID
		if p, ok := cl.SelectedPair(componentID); ok {
			a.cfg.Metrics.IncPairsNominated()
			a.listener.OnSelectedPairChange(componentID, p)
		}
	}
}

// localCandidateFor returns the local candidate already known for
// componentID whose TransportAddress equals mapped, or a freshly
// constructed peer-reflexive candidate (base = sent.Base, priority =
// the PRIORITY this agent sent in the request, RFC 8445 Section
// 7.2.5.3) if mapped names no known local candidate.
func (a *Agent) localCandidateFor(componentID int, mapped transport.Address, sent candidate.Candidate) candidate.Candidate {
	if mapped.Equal(sent.TransportAddress) {
		return sent
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	comp, ok := a.components[componentID]
	if ok {
		for _, c := range comp.Local {
			if c.TransportAddress.Equal(mapped) {
				return c
			}
		}
	}
	c := candidate.Candidate{
		TransportAddress: mapped,
		Base:             sent.Base,
		Type:             candidate.PeerReflexive,
		ComponentID:      componentID,
		Priority:         sent.Priority,
	}
	c.Foundation = candidate.ComputeFoundation(candidate.PeerReflexive, c.Base, transport.Address{}, c.Base.Proto)
	if ok {
		comp.Local = append(comp.Local, c)
	}
	return c
}

func (a *Agent) flipRole() {
	a.mu.Lock()
	a.role = a.role.Opposite()
	a.mu.Unlock()
}

// checkSender adapts a socket.Socket to transaction.Sender.
type checkSender struct{ s interface{ SendTo([]byte, transport.Address) error } }

func (s checkSender) SendTo(b []byte, dst transport.Address) error { return s.s.SendTo(b, dst) }
