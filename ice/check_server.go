package ice

import (
	"go.uber.org/zap"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/socket"
	"github.com/netice/ice/stun"
	"github.com/netice/ice/transaction"
	"github.com/netice/ice/transport"
)

// handleIncoming is the socket receive callback for componentID's
// socket: it demultiplexes STUN responses (routed to the transaction
// agent) from STUN Binding requests (handled here as the connectivity-
// check server), mirroring the demux ordering in gortcd's
// internal/server.Server.process (fastest check first) generalized
// from STUN-vs-ChannelData to response-vs-request.
func (a *Agent) handleIncoming(componentID int, s socket.Socket, b []byte, src transport.Address) {
	if !stun.IsMessage(b) {
		return
	}
	var m stun.Message
	if err := stun.Decode(b, &m); err != nil {
		if _, ok := err.(*stun.UnknownAttributesError); !ok {
			a.log.Debug("failed to decode incoming message", zap.Error(err))
			return
		}
	}
	if m.Type.Class == stun.ClassSuccessResponse || m.Type.Class == stun.ClassErrorResponse {
		a.tx.HandleResponse(m.TransactionID, &m)
		return
	}
	if m.Type.Method != stun.MethodBinding || m.Type.Class != stun.ClassRequest {
		return
	}
	a.processBindingRequest(componentID, s, &m, src)
}

// processBindingRequest answers one incoming connectivity check, RFC
// 8445 Section 7.3 "Server Procedures", grounded on gortcd's
// internal/server/server_handlers.go processBindingRequest (build an
// XOR-MAPPED-ADDRESS success response) generalized to add role-
// conflict detection and peer-reflexive candidate discovery, which
// gortcd's plain STUN server never needed.
func (a *Agent) processBindingRequest(componentID int, s socket.Socket, req *stun.Message, src transport.Address) {
	if cached, ok := a.serverTbl.Lookup(req.TransactionID); ok {
		_ = s.SendTo(cached, src)
		return
	}

	var username stun.Username
	if err := username.GetFrom(req); err != nil {
		a.respondError(s, req, src, stun.CodeBadRequest)
		return
	}
	localUfrag, ok := transaction.LocalUfragFromUsername(string(username))
	if !ok {
		a.respondError(s, req, src, stun.CodeBadRequest)
		return
	}

	a.mu.Lock()
	role := a.role
	creds := a.creds
	a.mu.Unlock()

	integrity, ok := creds.Key(localUfrag)
	if !ok {
		a.respondError(s, req, src, stun.CodeUnauthorized)
		return
	}
	if err := integrity.Check(req); err != nil {
		a.respondError(s, req, src, stun.CodeUnauthorized)
		return
	}

	var controlling stun.AttrControlling
	var controlled stun.AttrControlled
	hasControlling := controlling.GetFrom(req) == nil
	hasControlled := controlled.GetFrom(req) == nil
	if (role == Controlling && hasControlling) || (role == Controlled && hasControlled) {
		remoteTie := uint64(controlling)
		if hasControlled {
			remoteTie = uint64(controlled)
		}
		resolved := resolveRoleConflict(role, a.tieBreak, remoteTie)
		if resolved != role {
			a.flipRole()
		} else {
			a.respondError(s, req, src, stun.CodeRoleConflict)
			return
		}
	}

	var priority stun.Priority
	_ = priority.GetFrom(req)
	var useCandidate stun.UseCandidate
	nominated := useCandidate.GetFrom(req) == nil

	a.learnPeerReflexive(componentID, s, src, uint32(priority))

	resp := stun.New()
	resp.TransactionID = req.TransactionID
	resp.Type = stun.NewType(stun.MethodBinding, stun.ClassSuccessResponse)
	resp.WriteHeader()
	xma := stun.XORMappedAddress{IP: src.IP, Port: src.Port}
	xma.AddTo(resp)             // nolint:errcheck
	integrity.AddTo(resp)       // nolint:errcheck
	stun.Fingerprint.AddTo(resp) // nolint:errcheck

	a.serverTbl.Store(req.TransactionID, resp.Raw)
	if err := s.SendTo(resp.Raw, src); err != nil {
		a.log.Warn("failed to send binding response", zap.Error(err))
	}

	a.triggerPairForRemote(componentID, src, nominated)
}

func (a *Agent) respondError(s socket.Socket, req *stun.Message, src transport.Address, code stun.ErrorCode) {
	resp := stun.New()
	resp.TransactionID = req.TransactionID
	resp.Type = stun.NewType(req.Type.Method, stun.ClassErrorResponse)
	resp.WriteHeader()
	stun.ErrorCodeAttribute{Code: code}.AddTo(resp) // nolint:errcheck
	stun.Fingerprint.AddTo(resp)                    // nolint:errcheck
	if err := s.SendTo(resp.Raw, src); err != nil {
		a.log.Debug("failed to send error response", zap.Error(err))
	}
}

// learnPeerReflexive learns a PEER-REFLEXIVE REMOTE candidate for src
// if no remote candidate at that address is already paired for
// componentID, RFC 8445 Section 7.3.1.3 "Peer-reflexive candidates",
// then pairs it with the local candidate bound to s (the socket that
// received the request) and adds that pair to the checklist, spec.md
// Section 4.9 incoming-request steps 4-5: "create a peer-reflexive
// remote candidate... then pair it with the local candidate of the
// socket on which the request was received." triggerPairForRemote
// (called by processBindingRequest right after this) finds the pair
// this adds and fires the triggered check.
func (a *Agent) learnPeerReflexive(componentID int, s socket.Socket, src transport.Address, priority uint32) {
	a.mu.Lock()
	comp, ok := a.components[componentID]
	cl := a.checklist
	role := a.role
	var local candidate.Candidate
	foundLocal := false
	if ok {
		for _, c := range comp.Local {
			if c.TransportAddress.Equal(s.LocalAddr()) {
				local = c
				foundLocal = true
				break
			}
		}
	}
	a.mu.Unlock()
	if !ok || cl == nil || !foundLocal {
		return
	}

	for _, p := range cl.Pairs() {
		if p.Local.ComponentID == componentID && p.Remote.TransportAddress.Equal(src) {
			return
		}
	}

	remote := candidate.Candidate{
		TransportAddress: src,
		Base:             src,
		Type:             candidate.PeerReflexive,
		ComponentID:      componentID,
		Priority:         priority,
	}
	remote.Foundation = candidate.ComputeFoundation(candidate.PeerReflexive, src, transport.Address{}, src.Proto)

	pair := candidate.Pair{Local: local, Remote: remote}
	g, d := local.Priority, remote.Priority
	if role == Controlled {
		g, d = d, g
	}
	pair.Priority = candidate.PairPriority(g, d)
	cl.AddPairs(candidate.Pairs{pair})
}

// triggerPairForRemote schedules a triggered check for the pair
// matching (componentID, src) if one exists in the checklist, spec.md
// Section 5 "Triggered checks".
func (a *Agent) triggerPairForRemote(componentID int, src transport.Address, nominate bool) {
	a.mu.Lock()
	cl := a.checklist
	a.mu.Unlock()
	if cl == nil {
		return
	}
	pairs := cl.Pairs()
	for i, p := range pairs {
		if p.Local.ComponentID == componentID && p.Remote.TransportAddress.Equal(src) {
			cl.Trigger(i)
			if nominate {
				cl.Complete(i, true, true)
			}
			return
		}
	}
}
