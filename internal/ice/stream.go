package ice

import "sort"

// Stream is one RFC 8445 "media stream": a set of components sharing a
// single remote ufrag/password and a single combined, priority-sorted
// pair table. Pairs belonging to different components of the same
// stream live in this one list together; any per-component view is
// just this list filtered by Local.Component.
type Stream struct {
	ID    int
	agent *Agent

	components map[int]*Component

	localUfrag, localPwd   string
	remoteUfrag, remotePwd string
	remoteCredsSet         bool

	pairs     []*CheckPair
	pairIndex map[addrPairKey]*CheckPair

	// pendingRemote buffers remote candidates passed to
	// AddRemoteCandidate before SetRemoteCredentials, bounded by
	// Config.MaxRemoteCandidates. Inbound checks are not buffered here:
	// the dispatcher answers them and pairs their source address at once.
	pendingRemote []*Candidate

	localCandidates  []*Candidate
	remoteCandidates []*Candidate

	pruned bool
}

func newStream(agent *Agent, id int) *Stream {
	ufrag, _ := generateUfrag()
	pwd, _ := generatePassword()
	return &Stream{
		ID:         id,
		agent:      agent,
		components: make(map[int]*Component),
		localUfrag: ufrag,
		localPwd:   pwd,
		pairIndex:  make(map[addrPairKey]*CheckPair),
	}
}

// AddComponent registers a component of this stream bound to socket.
func (s *Stream) AddComponent(id int, socket Socket) *Component {
	var c *Component
	s.agent.withLock(func() {
		c = newComponent(id, socket)
		s.components[id] = c
	})
	return c
}

func (s *Stream) component(id int) *Component {
	return s.components[id]
}

// LocalCredentials returns the ufrag/password this stream advertises
// to the peer out of band (e.g. in SDP), per RFC 8445 §5.4.
func (s *Stream) LocalCredentials() (ufrag, pwd string) {
	return s.localUfrag, s.localPwd
}

// SetRemoteCredentials records the peer's ufrag/password and drains any
// early remote candidates buffered before it was known.
func (s *Stream) SetRemoteCredentials(ufrag, pwd string) {
	s.agent.withLock(func() {
		s.remoteUfrag, s.remotePwd = ufrag, pwd
		s.remoteCredsSet = true

		pending := s.pendingRemote
		s.pendingRemote = nil
		for _, rc := range pending {
			_ = s.addRemoteCandidateLocked(rc)
		}
	})
}

// AddLocalCandidate registers a locally gathered candidate and forms
// pairs against every already-known remote candidate for the same
// component.
func (s *Stream) AddLocalCandidate(c *Candidate) error {
	s.agent.withLock(func() {
		s.localCandidates = append(s.localCandidates, c)
		s.pairWithLocal(c, s.remoteCandidates)
		s.agent.wake()
	})
	return nil
}

// AddRemoteCandidate registers a remote candidate, pairing it against
// every known local candidate for the same component, provided remote
// credentials are already known; otherwise it is buffered.
func (s *Stream) AddRemoteCandidate(c *Candidate) error {
	var err error
	s.agent.withLock(func() {
		if !s.remoteCredsSet {
			if len(s.pendingRemote) >= s.agent.config.MaxRemoteCandidates {
				err = ErrPairTableFull
				return
			}
			s.pendingRemote = append(s.pendingRemote, c)
			return
		}
		err = s.addRemoteCandidateLocked(c)
	})
	return err
}

func (s *Stream) addRemoteCandidateLocked(remote *Candidate) error {
	s.remoteCandidates = append(s.remoteCandidates, remote)
	for _, local := range s.localCandidates {
		if local.Component != remote.Component {
			continue
		}
		if !local.Transport.compatibleWith(remote.Transport) {
			continue
		}
		if err := s.insertPair(local, remote); err != nil && err != errDuplicatePair {
			return err
		}
	}
	s.agent.wake()
	return nil
}

// pairWithLocal forms pairs between a freshly gathered local candidate
// and every already-known remote candidate for its component.
func (s *Stream) pairWithLocal(local *Candidate, remoteCandidates []*Candidate) {
	for _, remote := range remoteCandidates {
		if local.Component != remote.Component {
			continue
		}
		if !local.Transport.compatibleWith(remote.Transport) {
			continue
		}
		_ = s.insertPair(local, remote)
	}
}

var errDuplicatePair = errDuplicate{}

type errDuplicate struct{}

func (errDuplicate) Error() string { return "ice: duplicate pair" }

// insertPair adds a new Frozen pair for (local, remote) unless one
// already exists for that address tuple or the stream is already at its configured
// pair-table limit, then re-sorts the table and runs the
// unfreeze-on-insert rule.
func (s *Stream) insertPair(local, remote *Candidate) error {
	key := pairKey(local, remote)
	if _, ok := s.pairIndex[key]; ok {
		return errDuplicatePair
	}
	if s.agent.config.ForceRelay && local.Kind != CandidateRelayed {
		return nil
	}
	if len(s.pairs) >= s.agent.config.MaxConnChecks {
		return ErrPairTableFull
	}

	p := newCheckPair(local, remote, s.agent.controlling)
	p.stream = s
	s.pairIndex[key] = p
	s.pairs = append(s.pairs, p)
	s.sortPairs()

	s.unfreezeOnInsert(p)
	return nil
}

// sortPairs keeps the stream's pair table ordered highest-priority
// first, the order the scheduler and nomination logic walk it in
// (RFC 8445 §6.1.2.5).
func (s *Stream) sortPairs() {
	sort.SliceStable(s.pairs, func(i, j int) bool {
		return s.pairs[i].Priority > s.pairs[j].Priority
	})
}

// recomputeAllPriorities is invoked after a role change:
// every pair's priority depends on which side controls, so all of them
// are recalculated and the table re-sorted.
func (s *Stream) recomputeAllPriorities() {
	for _, p := range s.pairs {
		p.recomputePriority(s.agent.controlling)
	}
	s.sortPairs()
}

// componentPairs returns the subset of the stream's combined pair
// table belonging to component id, in table order.
func (s *Stream) componentPairs(component int) []*CheckPair {
	var out []*CheckPair
	for _, p := range s.pairs {
		if p.Local.Component == component {
			out = append(out, p)
		}
	}
	return out
}

// GatherComponent registers a component bound to socket and adds every
// candidate gatherer.Gather(id) returns as a local candidate, pairing
// each against whatever remote candidates are already known.
func (s *Stream) GatherComponent(id int, socket Socket, gatherer Gatherer) error {
	s.AddComponent(id, socket)
	candidates, err := gatherer.Gather(id)
	if err != nil {
		return wrap(err, "gather candidates")
	}
	for _, c := range candidates {
		if c.Component != id {
			continue
		}
		if err := s.AddLocalCandidate(c); err != nil {
			return err
		}
	}
	return nil
}

// prune tears down every in-flight transaction on this stream's pairs
// and marks it closed.
func (s *Stream) prune() {
	s.pruned = true
	for _, p := range s.pairs {
		p.stopTransaction()
	}
}
