package ice

import (
	"fmt"
	"net"
)

// CandidateKind identifies how a candidate's transport address was
// obtained.
type CandidateKind int

const (
	CandidateHost CandidateKind = iota
	CandidateServerReflexive
	CandidatePeerReflexive
	CandidateRelayed
)

func (k CandidateKind) String() string {
	switch k {
	case CandidateHost:
		return "host"
	case CandidateServerReflexive:
		return "srflx"
	case CandidatePeerReflexive:
		return "prflx"
	case CandidateRelayed:
		return "relay"
	default:
		return "unknown"
	}
}

// typePreference returns the RFC 8445 §5.1.2.1 type preference used in
// the priority formula. Host beats peer-reflexive beats server-reflexive
// beats relay; srflx and prflx must not share a value, since a tie
// there would erase a real preference ordering the RFC calls for.
func (k CandidateKind) typePreference() uint32 {
	switch k {
	case CandidateHost:
		return 126
	case CandidatePeerReflexive:
		return 110
	case CandidateServerReflexive:
		return 100
	case CandidateRelayed:
		return 0
	default:
		return 0
	}
}

// Transport identifies the socket kind a candidate was gathered on.
// UDP is the only transport this engine actively schedules
// retransmissions for; TCP variants use the fixed reliable timeout
// instead.
type Transport int

const (
	TransportUDP Transport = iota
	TransportTCPActive
	TransportTCPPassive
	TransportTCPSO
)

func (t Transport) String() string {
	switch t {
	case TransportUDP:
		return "udp"
	case TransportTCPActive:
		return "tcp-active"
	case TransportTCPPassive:
		return "tcp-passive"
	case TransportTCPSO:
		return "tcp-so"
	default:
		return "unknown"
	}
}

func (t Transport) reliable() bool {
	return t != TransportUDP
}

// compatibleWith reports whether two candidates' transports may be
// paired per RFC 8445 §6.1.2.2: UDP only pairs with UDP, active only
// with passive (and vice versa), simultaneous-open only with itself.
func (t Transport) compatibleWith(o Transport) bool {
	switch t {
	case TransportUDP:
		return o == TransportUDP
	case TransportTCPActive:
		return o == TransportTCPPassive
	case TransportTCPPassive:
		return o == TransportTCPActive
	case TransportTCPSO:
		return o == TransportTCPSO
	default:
		return false
	}
}

// Candidate is a transport address an agent offers or receives, tagged
// with how it was obtained and the component/stream it belongs to.
// Candidates are immutable once added to a Stream: peer-reflexive
// discovery always allocates a new Candidate rather than mutating an
// existing one.
type Candidate struct {
	Kind      CandidateKind
	Transport Transport

	// Addr is the candidate's own transport address.
	Addr net.IP
	Port int

	// Component is the 1-based component ID within the stream (RTP=1,
	// RTCP=2 in the original WebRTC framing, though this engine treats
	// it as an opaque small integer and is agnostic to what it means).
	Component int

	// Foundation groups candidates that were obtained the same way
	// from the same base and STUN/TURN server, per RFC 8445 §5.1.1.3.
	// Pairs whose local and remote foundations both match share fate
	// in the freezing algorithm.
	Foundation string

	// Base is the local candidate this one was derived from (itself,
	// for host candidates; the host candidate whose socket the STUN
	// query went out on, for srflx/prflx). Only meaningful for local
	// candidates.
	Base *Candidate

	// RelatedAddr/RelatedPort is the mapped-address the discovery that
	// produced this candidate observed (STUN XOR-MAPPED-ADDRESS for
	// srflx, the 5-tuple source for prflx). Zero for host candidates.
	RelatedAddr net.IP
	RelatedPort int

	// Priority is computed once via SetPriority and then treated as
	// immutable; RFC 8445 fixes it at gathering time.
	Priority uint32
}

// SetPriority computes and stores this candidate's priority per RFC
// 8445 §5.1.2.1: (2^24)*type_pref + (2^8)*local_pref + (256-component).
// localPref distinguishes same-kind candidates gathered over different
// interfaces/address families; 65535 is the correct value when only
// one local address of that kind exists.
func (c *Candidate) SetPriority(localPref uint32) {
	c.Priority = (c.Kind.typePreference() << 24) | (localPref << 8) | (256 - uint32(c.Component))
}

// String renders a human-readable candidate summary for logging, not a
// wire format.
func (c *Candidate) String() string {
	return fmt.Sprintf("%s/%s %s:%d (component %d, foundation %s, prio %d)",
		c.Kind, c.Transport, c.Addr, c.Port, c.Component, c.Foundation, c.Priority)
}

// addrPort is a comparable key used for base/address matching when
// deduplicating peer-reflexive discoveries.
type addrPort struct {
	ip   string
	port int
}

func (c *Candidate) addrPort() addrPort {
	return addrPort{ip: c.Addr.String(), port: c.Port}
}
