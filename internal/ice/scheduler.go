package ice

import "time"

// This file implements the Ta-paced scheduler tick. Each tick
// (1) services the global triggered-check queue, stopping after the
// first check it sends, (2) otherwise looks for an ordinary Waiting
// pair in each stream, falling back to the idle unfreeze rule when none
// exists, (3) regardless of whether a check was sent, re-evaluates
// nomination for every stream, and (4) tracks consecutive idle ticks to
// run failure propagation and stop once IdleTimeout elapses.
//
// Each outstanding transaction owns its own retransmission timer
// (internal/clock.Timer) rather than being advanced by a manually
// ticked per-pair counter, since Go timers are cheap. The tick loop
// therefore has no separate "advance retransmissions" step.

func (a *Agent) startScheduler() {
	a.scheduleTick()
}

func (a *Agent) scheduleTick() {
	if a.closed {
		return
	}
	a.tickTimer = a.config.Clock.AfterFunc(a.config.TimerTa, func() {
		a.withLock(a.tick)
	})
}

func (a *Agent) tick() {
	if a.closed {
		return
	}

	didWork := a.serviceTriggeredCheck()
	if !didWork {
		didWork = a.serviceOrdinaryCheck()
	}

	for _, s := range a.streams {
		a.evaluateNomination(s)
	}

	if didWork {
		a.idleTicks = 0
	} else {
		a.idleTicks++
		if a.idleDeadlineReached() {
			a.propagateFailures()
			a.idleStopped = true
			return
		}
	}

	a.scheduleTick()
}

// wake restarts the tick loop after an idle stop. Idle termination
// (tick, above) is recoverable, unlike Close()'s terminal shutdown: a
// later trickled candidate or triggered check must resume checking
// rather than being silently dropped. Callers must already hold the
// agent lock.
func (a *Agent) wake() {
	if a.closed || !a.idleStopped {
		return
	}
	a.idleStopped = false
	a.idleTicks = 0
	a.scheduleTick()
}

func (a *Agent) idleDeadlineReached() bool {
	elapsed := a.config.TimerTa * time.Duration(a.idleTicks)
	return elapsed >= a.config.IdleTimeout
}

// serviceTriggeredCheck pops and sends the single oldest pair on the
// agent-global triggered-check queue, if any. It reports
// whether a check was sent.
func (a *Agent) serviceTriggeredCheck() bool {
	for len(a.triggeredQueue) > 0 {
		p := a.triggeredQueue[0]
		a.triggeredQueue = a.triggeredQueue[1:]

		if p.State == PairFailed || p.State == PairInProgress {
			continue
		}
		if p.State == PairSucceeded && !p.nominateOnSuccess {
			continue
		}
		a.sendCheck(p, p.nominateOnSuccess)
		return true
	}
	return false
}

// serviceOrdinaryCheck finds the next Waiting pair across each stream in turn; if no stream has one, it runs the
// global idle-unfreeze rule once and retries the same streams.
func (a *Agent) serviceOrdinaryCheck() bool {
	if a.sendNextWaiting() {
		return true
	}
	if a.unfreezeNext() {
		return a.sendNextWaiting()
	}
	return false
}

func (a *Agent) sendNextWaiting() bool {
	for _, s := range a.streams {
		for _, p := range s.pairs {
			if p.State == PairWaiting {
				a.sendCheck(p, false)
				return true
			}
		}
	}
	return false
}

// enqueueTriggered appends p to the global triggered-check queue unless
// it is already queued, and wakes the scheduler if it had stopped for
// idleness. Per RFC 8445 §7.3.1.4, a pair already InProgress is left
// to finish rather than resent: serviceTriggeredCheck skips it on
// dequeue instead of calling sendCheck again. A Succeeded pair that
// needs renomination is requeued directly.
func (a *Agent) enqueueTriggered(p *CheckPair) {
	a.wake()
	for _, q := range a.triggeredQueue {
		if q == p {
			return
		}
	}
	a.triggeredQueue = append(a.triggeredQueue, p)
}
