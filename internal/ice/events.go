package ice

// StateChangeHandler is invoked whenever a component's aggregate state
// changes. Handlers run while the agent's lock is held, so
// they must not call back into the Agent; dispatch to another
// goroutine if further work is needed.
type StateChangeHandler func(streamID, component int, state ComponentState)

// SelectedPairHandler is invoked when a component's selected pair is
// established or replaced by a higher-priority nominated pair.
type SelectedPairHandler func(streamID, component int, pair *CheckPair)

// OnComponentStateChange registers the handler invoked on every
// component state transition. Only one handler is kept; registering a
// new one replaces the old.
func (a *Agent) OnComponentStateChange(h StateChangeHandler) {
	a.withLock(func() { a.onStateChange = h })
}

// OnSelectedPairChange registers the handler invoked whenever a
// component's selected pair changes.
func (a *Agent) OnSelectedPairChange(h SelectedPairHandler) {
	a.withLock(func() { a.onSelectedPair = h })
}

func (a *Agent) fireStateChange(streamID, component int, state ComponentState) {
	if a.onStateChange != nil {
		a.onStateChange(streamID, component, state)
	}
}

func (a *Agent) fireSelectedPair(streamID, component int, pair *CheckPair) {
	if a.onSelectedPair != nil {
		a.onSelectedPair(streamID, component, pair)
	}
}
