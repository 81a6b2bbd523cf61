package ice

import (
	"fmt"
)

// PairState is the RFC 8445 §6.1.2.6 candidate pair state machine,
// augmented with Discovered for pairs synthesized from a peer-reflexive
// local candidate on a successful check.
type PairState int

const (
	// PairFrozen pairs await unfreezing before they may be scheduled.
	PairFrozen PairState = iota

	// PairWaiting pairs are eligible to be picked by the scheduler.
	PairWaiting

	// PairInProgress pairs have an outstanding STUN transaction.
	PairInProgress

	// PairSucceeded pairs received a valid binding response.
	PairSucceeded

	// PairFailed pairs' checks definitively failed: an ICE error
	// response, a non-recoverable send error, or retransmission
	// timeout with no answer.
	PairFailed

	// PairDiscovered pairs are synthesized placeholders standing in
	// for a peer-reflexive candidate found via XOR-MAPPED-ADDRESS; the
	// pair that actually ran is reachable via SucceededPair.
	PairDiscovered
)

func (s PairState) String() string {
	switch s {
	case PairFrozen:
		return "frozen"
	case PairWaiting:
		return "waiting"
	case PairInProgress:
		return "in-progress"
	case PairSucceeded:
		return "succeeded"
	case PairFailed:
		return "failed"
	case PairDiscovered:
		return "discovered"
	default:
		return "unknown"
	}
}

// CheckPair is an entry in a Stream's pair table.
// A CheckPair is never mutated into a different (Local, Remote) tuple;
// peer-reflexive discovery always allocates a new CheckPair rather than
// rewriting one in place.
type CheckPair struct {
	Local  *Candidate
	Remote *Candidate

	State PairState

	// Foundation is "localFoundation:remoteFoundation", the key used
	// by the freezing algorithm to group pairs.
	Foundation string

	// Priority is the RFC 8445 §6.1.2.3 pair priority, fixed at
	// insertion time and role-dependent: it is NOT recomputed unless
	// the agent's controlling/controlled role changes.
	Priority uint64

	// Nominated is set once USE-CANDIDATE has been confirmed to apply
	// to this pair, either because this agent sent it (controlling) or
	// received it on a successful check (controlled).
	Nominated bool

	// nominateOnSuccess marks a regular-nomination pair that should be
	// re-sent with USE-CANDIDATE once its first check already
	// succeeded, per RFC 8445 §8.1.1. Controlling agent only.
	nominateOnSuccess bool

	// SucceededPair is set on a Discovered pair to point at the real
	// pair whose check actually ran and produced the peer-reflexive
	// mapping. The inverse pointer, set on the real pair,
	// is discoveredPair.
	SucceededPair *CheckPair
	discoveredPair *CheckPair

	// txn is the in-flight STUN transaction, if State is InProgress.
	txn *transaction

	// stream back-references the Stream this pair's table entry
	// belongs to, so check-sending code can reach the stream's
	// credentials and components without threading them separately.
	stream *Stream

	// errorCode is set when State transitions to Failed because of an
	// ICE error response rather than a timeout.
	errorCode int
}

// pairKey returns a map key uniquely identifying the (local, remote)
// address tuple, used to detect and skip duplicate pair insertion.
func pairKey(local, remote *Candidate) addrPairKey {
	return addrPairKey{l: local.addrPort(), r: remote.addrPort()}
}

type addrPairKey struct {
	l, r addrPort
}

// newCheckPair builds a pair and computes its role-aware priority per
// RFC 8445 §6.1.2.3. controlling is this agent's current ICE role.
func newCheckPair(local, remote *Candidate, controlling bool) *CheckPair {
	p := &CheckPair{
		Local:      local,
		Remote:     remote,
		State:      PairFrozen,
		Foundation: local.Foundation + ":" + remote.Foundation,
	}
	p.Priority = pairPriority(local.Priority, remote.Priority, controlling)
	return p
}

// pairPriority implements RFC 8445 §6.1.2.3:
//
//	pair-priority = 2^32 * MIN(G,D) + 2*MAX(G,D) + (G>D?1:0)
//
// where G is the controlling agent's candidate priority and D is the
// controlled agent's. Taking MIN/MAX directly off (local, remote)
// priority without accounting for which side is controlling only
// produces the same pair priority on both agents by accident; G and D
// must be resolved against the role first.
func pairPriority(localPriority, remotePriority uint32, controlling bool) uint64 {
	var g, d uint64
	if controlling {
		g, d = uint64(localPriority), uint64(remotePriority)
	} else {
		g, d = uint64(remotePriority), uint64(localPriority)
	}
	min, max := g, d
	if d < g {
		min, max = d, g
	}
	var cmp uint64
	if g > d {
		cmp = 1
	}
	return (uint64(1)<<32)*min + 2*max + cmp
}

// recomputePriority re-derives Priority after a role change: a role
// conflict flips which side's candidate priority is G vs D, so every
// pair's priority across every stream must be recalculated.
func (p *CheckPair) recomputePriority(controlling bool) {
	p.Priority = pairPriority(p.Local.Priority, p.Remote.Priority, controlling)
}

func (p *CheckPair) String() string {
	return fmt.Sprintf("[%s<->%s] %s prio=%d nominated=%v",
		p.Local, p.Remote, p.State, p.Priority, p.Nominated)
}

// stopTransaction cancels any in-flight transaction timer without
// altering State; callers update State themselves.
func (p *CheckPair) stopTransaction() {
	if p.txn != nil {
		p.txn.cancel()
		p.txn = nil
	}
}
