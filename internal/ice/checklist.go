package ice

// This file implements the RFC 8445 §6.1.2.6 freezing algorithm.
// Foundations are shared across every stream of the agent, not just
// within one stream, so all three rules below walk every stream's pair
// table rather than just the stream that triggered them.

// unfreezeOnInsert promotes a newly inserted Frozen pair straight to
// Waiting if some other pair sharing its foundation, anywhere in the
// agent, already succeeded.
func (s *Stream) unfreezeOnInsert(p *CheckPair) {
	if p.State != PairFrozen {
		return
	}
	for _, other := range s.agent.allPairs() {
		if other.Foundation == p.Foundation && other.State == PairSucceeded {
			p.State = PairWaiting
			return
		}
	}
}

// unfreezeRelated runs once a pair succeeds: every Frozen pair sharing
// its foundation (in any stream) is promoted to Waiting.
func (a *Agent) unfreezeRelated(succeeded *CheckPair) {
	for _, p := range a.allPairs() {
		if p.State == PairFrozen && p.Foundation == succeeded.Foundation {
			p.State = PairWaiting
		}
	}
}

// unfreezeNext is the idle unfreeze rule the scheduler falls back to
// when no stream has a Waiting pair to run. It promotes exactly one
// Frozen pair for each
// distinct foundation still represented among Frozen pairs, preferring
// the highest-priority pair in table order within each foundation, and
// reports whether it unfroze anything.
func (a *Agent) unfreezeNext() bool {
	seen := make(map[string]bool)
	unfroze := false
	for _, p := range a.allPairs() {
		if p.State != PairFrozen {
			continue
		}
		if seen[p.Foundation] {
			continue
		}
		seen[p.Foundation] = true
		p.State = PairWaiting
		unfroze = true
	}
	return unfroze
}

// anyWaiting reports whether any stream has a Waiting pair, the
// condition that suppresses the idle unfreeze rule.
func (a *Agent) anyWaiting() bool {
	for _, p := range a.allPairs() {
		if p.State == PairWaiting {
			return true
		}
	}
	return false
}

// allPairs returns every pair across every stream of the agent, in no
// particular cross-stream order (callers that care about priority
// order iterate per stream instead).
func (a *Agent) allPairs() []*CheckPair {
	var out []*CheckPair
	for _, s := range a.streams {
		out = append(out, s.pairs...)
	}
	return out
}
