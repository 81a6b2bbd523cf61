package ice

import (
	"time"

	"github.com/lanikai/goice/internal/clock"
	"github.com/pion/stun/v3"
)

// keepalive implements RFC 8445 §11: once a component has
// a selected pair, the agent periodically sends traffic over it so NAT
// and firewall bindings do not expire. CompatibilityGoogle peers expect
// a bare indication; everyone else gets a fully credentialed binding
// request, which also re-validates connectivity and so gets its own
// retransmission/timeout tracking like an ordinary connectivity check.
type keepaliveState struct {
	timer     clock.Timer // fires the next keepalive cycle
	pair      *CheckPair
	stream    *Stream
	component int

	txn       *transaction // the in-flight keepalive request, if any
	lastMedia time.Time
}

// startKeepalive arms (or re-arms, if the selected pair changed) the
// keepalive timer for a component once it has a selected pair.
func (a *Agent) startKeepalive(s *Stream, componentID int) {
	comp := s.component(componentID)
	if comp == nil || comp.selectedPair == nil {
		return
	}

	key := keepaliveKey{stream: s.ID, component: componentID}
	if ks, ok := a.keepalives[key]; ok {
		if ks.pair == comp.selectedPair {
			return
		}
		if ks.timer != nil {
			ks.timer.Stop()
		}
		if ks.txn != nil {
			ks.txn.cancel()
		}
	}

	ks := &keepaliveState{
		pair:      comp.selectedPair,
		stream:    s,
		component: componentID,
		lastMedia: a.config.Clock.Now(),
	}
	a.keepalives[key] = ks
	a.scheduleNextKeepalive(ks)
}

func (a *Agent) scheduleNextKeepalive(ks *keepaliveState) {
	ks.timer = a.config.Clock.AfterFunc(a.config.KeepaliveInterval, func() {
		a.withLock(func() { a.fireKeepalive(ks) })
	})
}

func (a *Agent) fireKeepalive(ks *keepaliveState) {
	s := ks.stream
	if a.closed || s.pruned {
		return
	}
	comp := s.component(ks.component)
	if comp == nil || comp.selectedPair != ks.pair {
		return
	}

	p := ks.pair
	addr := candidateNetAddr(p.Remote)

	bareIndication := a.config.Compatibility == CompatibilityGoogle && !a.config.KeepaliveConncheck
	if bareIndication {
		msg, err := buildBindingIndication()
		if err == nil {
			_, _ = comp.socket.WriteTo(msg.Raw, addr)
		}
		a.scheduleNextKeepalive(ks)
		return
	}

	username := localUsername(s.remoteUfrag, s.localUfrag)
	msg, err := buildBindingRequest(username, p.Local.Priority, a.controlling, a.tiebreaker, false, s.remotePwd)
	if err != nil {
		a.scheduleNextKeepalive(ks)
		return
	}

	txn, err := a.startTransaction(p, msg, a.config.StunInitialTimeout,
		func(b []byte) error {
			_, werr := comp.socket.WriteTo(b, addr)
			return werr
		},
		func() { a.onKeepaliveTimeout(ks) },
		nil,
	)
	if err != nil {
		a.scheduleNextKeepalive(ks)
		return
	}
	ks.txn = txn
}

// onKeepaliveTimeout runs once a keepalive binding request exhausts
// its retransmissions with no response. A single lost keepalive is
// tolerated if media has flowed on the pair more recently than one
// keepalive interval ago; a prolonged silence fails the component
// outright rather than waiting on the idle scheduler sweep.
func (a *Agent) onKeepaliveTimeout(ks *keepaliveState) {
	ks.txn = nil
	if a.config.Clock.Now().Sub(ks.lastMedia) < a.config.KeepaliveInterval {
		a.scheduleNextKeepalive(ks)
		return
	}
	a.failComponent(ks.stream, ks.component)
}

// handleKeepaliveSuccess completes a keepalive's request/response
// round trip: the retransmit timer is cancelled and, once integrity
// checks out, lastMedia advances so a later lost keepalive is
// tolerated.
func (a *Agent) handleKeepaliveSuccess(ks *keepaliveState, valid bool) {
	if ks.txn != nil {
		ks.txn.cancel()
		ks.txn = nil
	}
	if valid {
		ks.lastMedia = a.config.Clock.Now()
	}
	a.scheduleNextKeepalive(ks)
}

// handleKeepaliveError cancels the retransmit timer on an error
// response; the peer is still reachable, so the cycle simply restarts
// rather than counting as a timeout.
func (a *Agent) handleKeepaliveError(ks *keepaliveState) {
	if ks.txn != nil {
		ks.txn.cancel()
		ks.txn = nil
	}
	a.scheduleNextKeepalive(ks)
}

// findKeepaliveByTransaction locates the keepalive (if any) whose
// in-flight request carries transaction id.
func (a *Agent) findKeepaliveByTransaction(id [stun.TransactionIDSize]byte) *keepaliveState {
	for _, ks := range a.keepalives {
		if ks.txn != nil && ks.txn.id == id {
			return ks
		}
	}
	return nil
}

type keepaliveKey struct {
	stream, component int
}
