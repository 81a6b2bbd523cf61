package ice

import (
	"net"
	"time"
)

// sendCheck transmits a connectivity check for p, arming
// its retransmission transaction. useCandidate marks the request with
// USE-CANDIDATE, set by the nomination logic once a stopping criterion
// is met (regular nomination) or unconditionally while this agent is
// controlling under aggressive nomination.
func (a *Agent) sendCheck(p *CheckPair, useCandidate bool) {
	if a.controlling && a.config.NominationMode == NominationAggressive {
		useCandidate = true
	}
	s := p.stream
	username := localUsername(s.remoteUfrag, s.localUfrag)

	msg, err := buildBindingRequest(username, p.Local.Priority, a.controlling, a.tiebreaker, useCandidate, s.remotePwd)
	if err != nil {
		a.failPair(p, 0)
		return
	}

	component := s.component(p.Local.Component)
	if component == nil || component.socket == nil {
		a.failPair(p, 0)
		return
	}
	socket := component.socket
	addr := candidateNetAddr(p.Remote)

	p.State = PairInProgress
	if useCandidate {
		p.nominateOnSuccess = false
	}

	txn, err := a.startTransaction(p, msg, a.initialRTO(),
		func(b []byte) error {
			_, werr := socket.WriteTo(b, addr)
			return werr
		},
		func() { a.onCheckTimeout(p) },
		nil,
	)
	if err != nil {
		a.failPair(p, 0)
		return
	}
	txn.useCandidate = useCandidate
	p.txn = txn
}

// initialRTO computes RTO = max(Ta * N, RTO_MIN) per RFC 8445 §14,
// where N is the number of pairs across every stream currently Waiting
// or InProgress: a busier checklist backs off the pacing so
// retransmissions don't pile onto an already-saturated schedule.
func (a *Agent) initialRTO() time.Duration {
	n := 0
	for _, p := range a.allPairs() {
		if p.State == PairWaiting || p.State == PairInProgress {
			n++
		}
	}
	rto := a.config.TimerTa * time.Duration(n)
	if rto < a.config.StunInitialTimeout {
		return a.config.StunInitialTimeout
	}
	return rto
}

// onCheckTimeout handles a pair whose retransmission budget was
// exhausted with no response.
func (a *Agent) onCheckTimeout(p *CheckPair) {
	if p.State != PairInProgress {
		return
	}
	a.failPair(p, 0)
}

// failPair transitions p to Failed, recording an ICE error code when
// the failure came from a STUN error response rather than a timeout,
// and runs failure propagation for its component.
func (a *Agent) failPair(p *CheckPair, errorCode int) {
	p.stopTransaction()
	p.State = PairFailed
	p.errorCode = errorCode
	a.checkComponentFailure(p.stream, p.Local.Component)
}

// succeedPair transitions p to Succeeded, runs the freezing
// unfreeze-related rule, updates the component's selected pair if p now
// outranks it, and notifies the caller.
// nominated is true when the request that succeeded carried
// USE-CANDIDATE, either because this agent sent it (controlling) or
// because the peer's own check did (controlled).
func (a *Agent) succeedPair(p *CheckPair, nominated bool) {
	p.stopTransaction()
	p.State = PairSucceeded
	if nominated {
		p.Nominated = true
	}
	a.unfreezeRelated(p)
	a.updateComponentState(p.stream, p.Local.Component)
}

// candidateNetAddr renders a Candidate's own address as a net.Addr
// suitable for Socket.WriteTo. The engine only actively schedules
// retransmissions over UDP, but the same UDPAddr shape
// works for the TCP transports' framing, which is handled inside the
// Socket implementation.
func candidateNetAddr(c *Candidate) net.Addr {
	return &net.UDPAddr{IP: c.Addr, Port: c.Port}
}
