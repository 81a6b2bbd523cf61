package ice

import "net"

// Socket is the transport collaborator the engine sends and receives
// STUN traffic through. Production code backs this with a UDP
// connection (internal/transport); tests use an in-memory stand-in. The
// engine never opens sockets itself -- gathering and socket lifecycle
// are owned by the caller.
type Socket interface {
	// WriteTo sends b to addr. Implementations must be safe to call
	// concurrently with Reads performed elsewhere by the caller, since
	// the engine is the only writer but the caller's demuxer is
	// typically the reader.
	WriteTo(b []byte, addr net.Addr) (int, error)

	// LocalAddr returns the socket's bound local address.
	LocalAddr() net.Addr

	// Transport reports which pairing-compatibility class this socket
	// belongs to.
	Transport() Transport

	Close() error
}

// Gatherer discovers local candidates for a component. Stream.
// GatherComponent calls it once for the component it registers and
// treats its results as opaque until it runs connectivity checks
// against them.
type Gatherer interface {
	// Gather returns every local candidate discovered for component.
	// The Socket checks are sent from is the one the component was
	// registered with (Stream.AddComponent), not a field of the
	// Candidate struct itself.
	Gather(component int) ([]*Candidate, error)
}
