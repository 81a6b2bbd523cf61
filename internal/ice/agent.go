// Package ice implements the RFC 8445 connectivity-check engine: the
// candidate pair state machine, the freezing/unfreezing and scheduling
// rules that decide which pair to probe next, the STUN transaction
// lifecycle that runs each probe, and nomination of the pair that wins.
// Candidate gathering and the underlying sockets are external
// collaborators the engine only consumes, supplied by the caller
// through the Gatherer and Socket interfaces.
package ice

import (
	"sync"

	"github.com/lanikai/goice/internal/clock"
	"github.com/pion/logging"
)

// Agent runs connectivity checks for one or more Streams sharing a
// single ICE role and tiebreaker. All of an Agent's state is
// protected by a single mutex; the scheduler tick, keepalive timers,
// and inbound packet handling all serialize through it rather than
// each owning a finer-grained lock.
type Agent struct {
	mu sync.Mutex

	config      Config
	controlling bool
	tiebreaker  uint64

	streams      map[int]*Stream
	nextStreamID int

	triggeredQueue []*CheckPair
	idleTicks      int
	tickTimer      clock.Timer

	// idleStopped marks the scheduler paused after IdleTimeout with no
	// work, distinct from closed: Close() is terminal, idleStopped is
	// not -- a later triggered check or trickled candidate restarts the
	// tick loop via wake().
	idleStopped bool

	keepalives map[keepaliveKey]*keepaliveState

	closed bool

	log logging.LeveledLogger

	onStateChange  StateChangeHandler
	onSelectedPair SelectedPairHandler
}

// NewAgent constructs an Agent in the given ICE role and starts its
// scheduler immediately; callers add streams and candidates before or
// after construction, the scheduler simply finds nothing to do on
// streams with no pairs yet.
func NewAgent(config Config) *Agent {
	config.setDefaults()

	a := &Agent{
		config:      config,
		controlling: config.ControllingMode,
		tiebreaker:  generateTiebreaker(),
		streams:     make(map[int]*Stream),
		keepalives:  make(map[keepaliveKey]*keepaliveState),
		log:         newLogger(config.LoggerFactory),
	}
	a.startScheduler()
	return a
}

func (a *Agent) withLock(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn()
}

// AddStream creates a new Stream under this agent and returns it.
func (a *Agent) AddStream() *Stream {
	var s *Stream
	a.withLock(func() {
		a.nextStreamID++
		s = newStream(a, a.nextStreamID)
		a.streams[s.ID] = s
	})
	return s
}

// Stream looks up a previously added stream by ID.
func (a *Agent) Stream(id int) (*Stream, error) {
	var s *Stream
	var err error
	a.withLock(func() {
		var ok bool
		s, ok = a.streams[id]
		if !ok {
			err = ErrStreamNotFound
		}
	})
	return s, err
}

// Controlling reports this agent's current ICE role. It can change at
// runtime as a result of role-conflict resolution.
func (a *Agent) Controlling() bool {
	var c bool
	a.withLock(func() { c = a.controlling })
	return c
}

// PruneStream tears down every in-flight check on a stream and removes
// it from scheduling.
func (a *Agent) PruneStream(id int) error {
	var err error
	a.withLock(func() {
		s, ok := a.streams[id]
		if !ok {
			err = ErrStreamNotFound
			return
		}
		s.prune()
		delete(a.streams, id)
	})
	return err
}

// PruneSocket fails every pair, and cancels its pending transaction,
// whose local candidate is bound to socket, across every stream,
// typically called when the caller is about to close that socket.
func (a *Agent) PruneSocket(socket Socket) {
	a.withLock(func() {
		for _, s := range a.streams {
			for _, comp := range s.components {
				if comp.socket == socket {
					for _, p := range s.componentPairs(comp.ID) {
						a.failPair(p, 0)
					}
				}
			}
		}
	})
}

// NotifyMediaReceived records that traffic was just observed on a
// component's selected pair. This engine never sees RTP/RTCP itself --
// Socket and the Gatherer are the only media-adjacent integration
// points -- so a caller that demultiplexes media off the same socket
// calls this to let a lost keepalive response be tolerated instead of
// failing a component that is still carrying traffic.
func (a *Agent) NotifyMediaReceived(streamID, componentID int) {
	a.withLock(func() {
		key := keepaliveKey{stream: streamID, component: componentID}
		if ks, ok := a.keepalives[key]; ok {
			ks.lastMedia = a.config.Clock.Now()
		}
	})
}

// Close tears down every stream and stops the scheduler and all
// keepalive timers.
func (a *Agent) Close() error {
	a.withLock(func() {
		a.closed = true
		if a.tickTimer != nil {
			a.tickTimer.Stop()
		}
		for _, ks := range a.keepalives {
			if ks.timer != nil {
				ks.timer.Stop()
			}
			if ks.txn != nil {
				ks.txn.cancel()
			}
		}
		for _, s := range a.streams {
			s.prune()
		}
	})
	return nil
}
