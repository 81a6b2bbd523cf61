package ice

import (
	"net"
	"strconv"
)

// This file implements RFC 8445 §7.2.5/§7.3.1.3 peer-reflexive candidate
// discovery. A Discovered pair is a placeholder whose SucceededPair
// points at the real pair whose check produced the mapping, and it
// inherits that pair's nomination flag (as it stands at discovery) and
// priority inputs rather than recomputing them independently.

// discoverFromResponse handles the case where a success response's
// XOR-MAPPED-ADDRESS does not match the local candidate that sent the
// check: the peer observed us through a different, previously unknown
// address (typically a NAT mapping), so a new local peer-reflexive
// candidate is synthesized and a Discovered pair recorded against it.
func (a *Agent) discoverFromResponse(p *CheckPair, mappedIP net.IP, mappedPort int) {
	if p.Local.Addr.Equal(mappedIP) && p.Local.Port == mappedPort {
		return
	}
	if p.discoveredPair != nil {
		return
	}

	local := &Candidate{
		Kind:      CandidatePeerReflexive,
		Transport: p.Local.Transport,
		Addr:      mappedIP,
		Port:      mappedPort,
		Component: p.Local.Component,
		Foundation: peerReflexiveFoundation(),
		Base:      p.Local,
	}
	// The PRIORITY the check carried (sendCheck sends p.Local.Priority).
	local.Priority = p.Local.Priority

	discovered := newCheckPair(local, p.Remote, a.controlling)
	discovered.stream = p.stream
	discovered.State = PairDiscovered
	discovered.SucceededPair = p
	discovered.Nominated = p.Nominated

	p.discoveredPair = discovered
	p.stream.pairs = append(p.stream.pairs, discovered)
	p.stream.pairIndex[pairKey(local, p.Remote)] = discovered
	p.stream.sortPairs()
}

// discoverFromRequest handles an inbound request whose source address
// does not match any known remote candidate for the component: a new
// remote peer-reflexive candidate is synthesized from the request's
// PRIORITY attribute and 5-tuple source, then paired against the local
// candidate the request arrived on (RFC 8445 §7.3.1.3).
func (a *Agent) discoverFromRequest(s *Stream, local *Candidate, sourceIP net.IP, sourcePort int, priority uint32) *Candidate {
	for _, rc := range s.remoteCandidates {
		if rc.Component == local.Component && rc.Addr.Equal(sourceIP) && rc.Port == sourcePort {
			return rc
		}
	}

	remote := &Candidate{
		Kind:       CandidatePeerReflexive,
		Transport:  local.Transport,
		Addr:       sourceIP,
		Port:       sourcePort,
		Component:  local.Component,
		Foundation: peerReflexiveFoundation(),
	}
	remote.Priority = priority

	s.remoteCandidates = append(s.remoteCandidates, remote)
	_ = s.insertPair(local, remote)
	return remote
}

var peerReflexiveCounter uint64

// peerReflexiveFoundation mints a foundation string guaranteed not to
// collide with any foundation a real gatherer would assign (those are
// derived from base+server+type), satisfying RFC 8445 §7.2.5.3.1's
// requirement that a peer-reflexive candidate get a foundation of its
// own.
func peerReflexiveFoundation() string {
	peerReflexiveCounter++
	return "prflx-" + strconv.FormatUint(peerReflexiveCounter, 10)
}
