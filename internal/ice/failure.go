package ice

// This file implements RFC 8445 §8 component state derivation and
// §4.6 "Failure Propagation": a component's externally visible state
// is derived from the terminal/non-terminal mix of its pairs, not
// tracked as independent state, so every pair transition (succeed,
// fail, or table exhaustion at end-of-run) re-derives it.

// updateComponentState re-derives component's ComponentState after one
// of its pairs changed and selects the best nominated succeeded pair,
// if any, as SelectedPair.
func (a *Agent) updateComponentState(s *Stream, componentID int) {
	comp := s.component(componentID)
	if comp == nil {
		return
	}
	pairs := s.componentPairs(componentID)
	if len(pairs) == 0 {
		return
	}

	var best *CheckPair
	allTerminal := true
	anySucceeded := false
	for _, p := range pairs {
		switch p.State {
		case PairSucceeded:
			anySucceeded = true
			if p.Nominated && (best == nil || p.Priority > best.Priority) {
				best = p
			}
		case PairFailed:
			// terminal, no-op
		default:
			allTerminal = false
		}
	}

	prevState := comp.state
	prevSelected := comp.selectedPair
	switch {
	case best != nil:
		comp.selectedPair = best
		if allTerminal {
			comp.state = ComponentReady
		} else {
			comp.state = ComponentConnected
		}
	case anySucceeded:
		comp.state = ComponentConnected
	case allTerminal:
		comp.state = ComponentFailed
	default:
		comp.state = ComponentConnecting
	}

	if comp.state != prevState {
		a.fireStateChange(s.ID, componentID, comp.state)
	}
	if best != nil && best != prevSelected {
		a.fireSelectedPair(s.ID, componentID, best)
		a.startKeepalive(s, componentID)
	}
}

// checkComponentFailure is invoked whenever a pair fails; if every pair
// for the component has now failed, the component is terminally
// Failed, otherwise state is just re-derived in case the failure
// unblocked nothing but a different pair already succeeded.
func (a *Agent) checkComponentFailure(s *Stream, componentID int) {
	a.updateComponentState(s, componentID)
}

// failComponent marks a component terminally Failed outside the usual
// pair-state derivation, used when a keepalive times out with no
// recent media: the selected pair has gone dark even though its check
// once succeeded, so there is no pair transition to derive the state
// change from.
func (a *Agent) failComponent(s *Stream, componentID int) {
	comp := s.component(componentID)
	if comp == nil || comp.state == ComponentFailed {
		return
	}
	comp.state = ComponentFailed
	a.fireStateChange(s.ID, componentID, ComponentFailed)
}

// propagateFailures is run once when the scheduler gives up after
// IdleTimeout with outstanding non-terminal pairs:
// every component still Connecting is marked Failed.
func (a *Agent) propagateFailures() {
	for _, s := range a.streams {
		for id, comp := range s.components {
			if comp.state == ComponentConnecting {
				for _, p := range s.componentPairs(id) {
					if p.State == PairWaiting || p.State == PairFrozen || p.State == PairInProgress {
						p.stopTransaction()
						p.State = PairFailed
					}
				}
				a.updateComponentState(s, id)
			}
		}
	}
}
