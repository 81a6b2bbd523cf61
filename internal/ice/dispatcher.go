package ice

import (
	"net"

	"github.com/pion/stun/v3"
)

// HandleInbound decodes a packet the caller's demuxer classified as
// STUN and routes it to the right handler.
// The caller is responsible for only handing this engine bytes that
// already look like STUN (RFC 8489 §12 multiplexing) -- this engine
// has no opinion on what else might share the socket.
func (a *Agent) HandleInbound(streamID, componentID int, data []byte, from net.Addr, socket Socket) error {
	m := &stun.Message{Raw: append([]byte(nil), data...)}
	if err := m.Decode(); err != nil {
		return wrap(err, "decode stun message")
	}
	if m.Type.Method != stun.MethodBinding {
		return nil
	}

	var result error
	a.withLock(func() {
		s, ok := a.streams[streamID]
		if !ok || s.pruned {
			return
		}
		switch m.Type.Class {
		case stun.ClassRequest:
			result = a.handleBindingRequest(s, componentID, m, from, socket)
		case stun.ClassSuccessResponse:
			if ks := a.findKeepaliveByTransaction(m.TransactionID); ks != nil {
				a.handleKeepaliveSuccess(ks, verifyIntegrity(m, ks.stream.remotePwd))
			} else {
				a.handleBindingSuccess(s, m, from)
			}
		case stun.ClassErrorResponse:
			if ks := a.findKeepaliveByTransaction(m.TransactionID); ks != nil {
				a.handleKeepaliveError(ks)
			} else {
				a.handleBindingError(s, m)
			}
		case stun.ClassIndication:
			// Keepalive indications require no response.
		}
	})
	return result
}

// handleBindingRequest answers an inbound connectivity check:
// validates credentials, resolves role conflicts, discovers any
// peer-reflexive remote candidate, schedules a triggered check on the
// corresponding pair, and acts on USE-CANDIDATE if the agent is
// controlled.
func (a *Agent) handleBindingRequest(s *Stream, componentID int, m *stun.Message, from net.Addr, socket Socket) error {
	if !verifyIntegrity(m, s.localPwd) {
		return ErrBadMessageIntegrity
	}

	udpAddr, ok := from.(*net.UDPAddr)
	if !ok {
		return nil
	}

	if conflict := a.resolveRoleConflict(s, m, socket, from); conflict {
		return nil
	}

	comp := s.component(componentID)
	if comp == nil {
		return ErrComponentNotFound
	}

	var local *Candidate
	for _, lc := range s.localCandidates {
		if lc.Component == componentID {
			local = lc
			break
		}
	}
	if local == nil {
		return ErrComponentNotFound
	}

	priority := readPriority(m)
	remote := a.discoverFromRequest(s, local, udpAddr.IP, udpAddr.Port, priority)

	resp, err := buildBindingSuccess(m, udpAddr.IP, udpAddr.Port, s.localPwd)
	if err != nil {
		return wrap(err, "build binding success")
	}
	if _, err := socket.WriteTo(resp.Raw, from); err != nil {
		return wrap(err, "send binding success")
	}

	key := pairKey(local, remote)
	p, ok := s.pairIndex[key]
	if !ok {
		return nil
	}

	useCandidate := m.Contains(stun.AttrUseCandidate)
	if useCandidate && !a.controlling {
		p.Nominated = true
		if p.State == PairSucceeded {
			a.updateComponentState(s, componentID)
		}
	}

	var selected *CheckPair
	if comp != nil {
		selected = comp.selectedPair
	}
	outranksSelected := selected == nil || p.Priority > selected.Priority

	switch p.State {
	case PairSucceeded:
		// Already running or done; nothing to trigger.
	case PairInProgress:
		// A higher-priority check for this component is still worth
		// waking the scheduler for, but the in-flight transaction is
		// left alone -- serviceTriggeredCheck skips InProgress pairs
		// rather than resending.
		if outranksSelected {
			a.enqueueTriggered(p)
		}
	case PairFailed:
		// The peer still considers this pair viable. If it would
		// outrank whatever is currently selected, walk the component
		// state back from its terminal FAILED/READY state and give the
		// pair another check.
		if outranksSelected {
			p.State = PairWaiting
			a.enqueueTriggered(p)
			a.updateComponentState(s, componentID)
		}
	default:
		p.State = PairWaiting
		a.enqueueTriggered(p)
	}
	return nil
}

// resolveRoleConflict implements RFC 8445 §7.3.1.1. A conflict exists
// only when the request's role attribute matches this agent's own
// role (both controlling, or both controlled); anything else proceeds
// normally. Within a conflict, the agent whose tiebreaker is larger
// keeps or takes the controlling role; a tie resolves the same way,
// favoring whichever side is evaluating the comparison to become or
// remain controlling. When the request's sender is the side that must
// change role, it gets a 487 response instead of a success and this
// agent keeps its role; when this agent must change role, it flips
// silently, recomputes every pair priority, and processes the request
// as usual.
func (a *Agent) resolveRoleConflict(s *Stream, m *stun.Message, socket Socket, from net.Addr) bool {
	var theirs uint64
	var theirRoleControlling bool
	var present bool

	if v, ok := readTiebreaker(m, stun.AttrICEControlling); ok {
		theirs, theirRoleControlling, present = v, true, true
	} else if v, ok := readTiebreaker(m, stun.AttrICEControlled); ok {
		theirs, theirRoleControlling, present = v, false, true
	}
	if !present {
		return false
	}

	if theirRoleControlling != a.controlling {
		return false
	}

	if a.controlling {
		if theirs <= a.tiebreaker {
			resp, err := buildRoleConflictError(m, s.localPwd)
			if err == nil {
				_, _ = socket.WriteTo(resp.Raw, from)
			}
			return true
		}
		a.controlling = false
	} else {
		if theirs <= a.tiebreaker {
			a.controlling = true
		} else {
			resp, err := buildRoleConflictError(m, s.localPwd)
			if err == nil {
				_, _ = socket.WriteTo(resp.Raw, from)
			}
			return true
		}
	}

	for _, st := range a.streams {
		st.recomputeAllPriorities()
	}
	return false
}

// handleBindingSuccess matches a response to its transaction, verifies
// its integrity, and completes the pair.
func (a *Agent) handleBindingSuccess(s *Stream, m *stun.Message, from net.Addr) {
	p := a.findPairByTransaction(s, m.TransactionID)
	if p == nil || p.txn == nil {
		return
	}
	if !verifyIntegrity(m, s.remotePwd) {
		return
	}

	xma := &stun.XORMappedAddress{}
	if err := xma.GetFrom(m); err != nil {
		a.failPair(p, 0)
		return
	}

	nominated := p.txn.useCandidate
	a.discoverFromResponse(p, xma.IP, xma.Port)
	a.succeedPair(p, nominated)
}

// handleBindingError processes an ICE error response: a
// 487 Role Conflict flips this agent's role and retries the check; any
// other error code fails the pair.
func (a *Agent) handleBindingError(s *Stream, m *stun.Message) {
	p := a.findPairByTransaction(s, m.TransactionID)
	if p == nil {
		return
	}

	code, ok := readErrorCode(m)
	if ok && code == errorCodeRoleConflict {
		p.stopTransaction()
		a.controlling = !a.controlling
		for _, st := range a.streams {
			st.recomputeAllPriorities()
		}
		p.State = PairWaiting
		a.enqueueTriggered(p)
		return
	}

	a.failPair(p, code)
}

func (a *Agent) findPairByTransaction(s *Stream, id [stun.TransactionIDSize]byte) *CheckPair {
	for _, p := range s.pairs {
		if p.txn != nil && p.txn.id == id {
			return p
		}
	}
	return nil
}

func readErrorCode(m *stun.Message) (int, bool) {
	v, err := m.Get(stun.AttrErrorCode)
	if err != nil || len(v) < 4 {
		return 0, false
	}
	return int(v[2])*100 + int(v[3]), true
}
