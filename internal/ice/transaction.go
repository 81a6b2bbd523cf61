package ice

import (
	"time"

	"github.com/lanikai/goice/internal/clock"
	"github.com/pion/stun/v3"
)

// transaction tracks one outstanding STUN request sent for a pair's
// check, implementing the RFC 8445 §14 / RFC 5389 §7.2.1 retransmission
// timer: exponential backoff from StunInitialTimeout, doubling on each
// retransmit, capped at StunMaxRetransmissions attempts total for
// unreliable transports. Reliable transports send once and wait a
// fixed timeout.
type transaction struct {
	id           [stun.TransactionIDSize]byte
	pair         *CheckPair
	raw          []byte
	timer        clock.Timer
	attempt      int
	rto          time.Duration
	useCandidate bool
	onTimeout    func()
	onRetransmit func()
}

// startTransaction sends msg on pair's socket and arms the
// retransmission timer. sendFunc performs the actual write so the
// caller controls which Socket/address the bytes go to. rto is the
// transaction's initial retransmit timeout; callers compute it per RFC
// 8445 §14 rather than this function assuming a fixed config value.
func (a *Agent) startTransaction(pair *CheckPair, msg *stun.Message, rto time.Duration, sendFunc func([]byte) error, onTimeout, onRetransmit func()) (*transaction, error) {
	t := &transaction{
		id:           msg.TransactionID,
		pair:         pair,
		raw:          append([]byte(nil), msg.Raw...),
		rto:          rto,
		onTimeout:    onTimeout,
		onRetransmit: onRetransmit,
	}

	if err := sendFunc(t.raw); err != nil {
		return nil, wrap(err, "send binding request")
	}

	if pair.Local.Transport.reliable() {
		t.timer = a.config.Clock.AfterFunc(a.config.StunReliableTimeout, func() {
			a.withLock(func() { t.fireTimeout() })
		})
		return t, nil
	}

	t.timer = a.config.Clock.AfterFunc(t.rto, func() {
		a.withLock(func() { t.fireRetransmitOrTimeout(a, sendFunc) })
	})
	return t, nil
}

// fireRetransmitOrTimeout runs on the retransmission timer: if the
// attempt budget remains, it resends the same message bytes (RFC 8489
// requires retransmissions to be byte-identical) with a doubled RTO;
// otherwise it declares the transaction timed out.
func (t *transaction) fireRetransmitOrTimeout(a *Agent, sendFunc func([]byte) error) {
	t.attempt++
	if t.attempt >= a.config.StunMaxRetransmissions {
		t.fireTimeout()
		return
	}
	t.rto *= 2
	if err := sendFunc(t.raw); err != nil {
		t.fireTimeout()
		return
	}
	if t.onRetransmit != nil {
		t.onRetransmit()
	}
	t.timer = a.config.Clock.AfterFunc(t.rto, func() {
		a.withLock(func() { t.fireRetransmitOrTimeout(a, sendFunc) })
	})
}

func (t *transaction) fireTimeout() {
	if t.onTimeout != nil {
		t.onTimeout()
	}
}

// cancel stops the retransmission timer without invoking any callback,
// used when a response arrives or the pair/stream is torn down.
func (t *transaction) cancel() {
	if t.timer != nil {
		t.timer.Stop()
	}
}
