package ice

// minValidPairs is NICE_MIN_NUMBER_OF_VALID_PAIRS: the controlling
// agent will nominate as soon as this many pairs have succeeded for a
// component, even without a host-host pair, rather than waiting for
// every pair to finish.
const minValidPairs = 2

// evaluateNomination drives regular nomination for the controlling
// agent: once a component accumulates enough succeeded pairs (or runs
// out of pairs still in flight), the best succeeded pair is re-sent
// with USE-CANDIDATE to confirm it to the peer. The controlled agent
// never nominates; it only reacts to an inbound USE-CANDIDATE.
// Aggressive nomination needs no tick-driven step here:
// sendCheck already marks every outbound check USE-CANDIDATE while
// this agent is controlling and aggressive.
func (a *Agent) evaluateNomination(s *Stream) {
	if !a.controlling || a.config.NominationMode == NominationAggressive {
		return
	}

	otherStreamPair := a.nominatingPairOutsideStream(s)
	for componentID := range s.components {
		a.evaluateComponentNomination(s, componentID, otherStreamPair)
	}
}

// isNominatingOrNominated reports whether p already carries (or is
// about to carry) USE-CANDIDATE, the condition sibling
// components/streams search for when looking for a pair to match
// endpoints with.
func isNominatingOrNominated(p *CheckPair) bool {
	return p.Nominated || (p.nominateOnSuccess && p.State != PairFailed)
}

// nominatingPairOutsideStream finds a nominated or about-to-nominate
// pair belonging to any component of any stream other than s.
func (a *Agent) nominatingPairOutsideStream(s *Stream) *CheckPair {
	for _, other := range a.streams {
		if other.ID == s.ID {
			continue
		}
		for _, p := range other.pairs {
			if isNominatingOrNominated(p) {
				return p
			}
		}
	}
	return nil
}

// nominatingPairInOtherComponent finds a nominated or about-to-nominate
// pair belonging to a different component of the same stream.
func nominatingPairInOtherComponent(s *Stream, componentID int) *CheckPair {
	for _, p := range s.pairs {
		if p.Local.Component == componentID {
			continue
		}
		if isNominatingOrNominated(p) {
			return p
		}
	}
	return nil
}

// endpointsMatch reports whether two pairs share a transport and the
// same local/remote addresses ignoring port, the affinity check that
// keeps a stream's components (or a set of streams) nominating
// consistent endpoints rather than picking unrelated ones independently.
func endpointsMatch(p, ref *CheckPair) bool {
	return p.Local.Transport == ref.Local.Transport &&
		p.Local.Addr.Equal(ref.Local.Addr) &&
		p.Remote.Addr.Equal(ref.Remote.Addr)
}

// resolveValid returns the pair whose check actually ran and succeeded
// for p: itself, or the real pair behind a Discovered placeholder.
func resolveValid(p *CheckPair) *CheckPair {
	if p.State == PairDiscovered {
		return p.SucceededPair
	}
	if p.State == PairSucceeded {
		return p
	}
	return nil
}

func (a *Agent) evaluateComponentNomination(s *Stream, componentID int, otherStreamPair *CheckPair) {
	pairs := s.componentPairs(componentID)
	if len(pairs) == 0 {
		return
	}

	var best *CheckPair
	var hostHost *CheckPair
	valid, frozen, waiting, inProgress := 0, 0, 0, 0
	alreadyNominating := false

	for _, p := range pairs {
		if p.Nominated || p.nominateOnSuccess {
			alreadyNominating = true
		}
		switch p.State {
		case PairSucceeded:
			valid++
			if best == nil || p.Priority > best.Priority {
				best = p
			}
			if hostHost == nil && p.Local.Kind == CandidateHost && p.Remote.Kind == CandidateHost {
				hostHost = p
			}
		case PairFrozen:
			frozen++
		case PairWaiting:
			waiting++
		case PairInProgress:
			inProgress++
		}
	}

	if alreadyNominating || best == nil {
		return
	}

	otherComponentPair := nominatingPairInOtherComponent(s, componentID)
	firstNomination := otherComponentPair == nil && otherStreamPair == nil

	if !firstNomination {
		reference := otherComponentPair
		if reference == nil {
			reference = otherStreamPair
		}
		for _, p := range pairs {
			resolved := resolveValid(p)
			if resolved == nil || p.Nominated || p.nominateOnSuccess {
				continue
			}
			if endpointsMatch(resolved, reference) {
				a.nominatePair(resolved)
				return
			}
		}
	}

	noMoreWork := frozen == 0 && waiting == 0 && inProgress == 0

	switch {
	case firstNomination && hostHost != nil:
		a.nominatePair(best)
	case firstNomination && valid >= minValidPairs:
		a.nominatePair(best)
	case noMoreWork:
		a.nominatePair(best)
	}
}

// nominatePair arranges for p to be re-sent with USE-CANDIDATE set,
// confirming the controlling agent's choice to the peer (RFC 8445
// §8.1.1). If p is a Discovered placeholder, the real pair that ran the
// successful check is nominated instead.
func (a *Agent) nominatePair(p *CheckPair) {
	if p.State == PairDiscovered && p.SucceededPair != nil {
		p = p.SucceededPair
	}
	p.nominateOnSuccess = true
	a.enqueueTriggered(p)
}
