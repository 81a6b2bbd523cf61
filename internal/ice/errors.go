package ice

import "github.com/pkg/errors"

// Sentinel errors returned by the engine's public API. Collaborator-boundary failures (socket send
// errors, gatherer failures) are wrapped with github.com/pkg/errors so
// callers can still unwrap/compare while logs retain a stack trace at
// the point of origin.
var (
	// ErrStreamNotFound is returned when an operation names a stream
	// that was never added to the agent.
	ErrStreamNotFound = errors.New("ice: stream not found")

	// ErrComponentNotFound is returned when an operation names a
	// component that was never added within its stream.
	ErrComponentNotFound = errors.New("ice: component not found")

	// ErrRemoteCredentialsNotSet names the failure of an operation that
	// needs the remote ufrag/password before they are known. No function
	// in this package returns it.
	ErrRemoteCredentialsNotSet = errors.New("ice: remote credentials not set")

	// ErrPairTableFull is returned when adding a pair would exceed the
	// stream's configured MaxConnChecks, and by AddRemoteCandidate when
	// the buffer of candidates awaiting remote credentials already holds
	// MaxRemoteCandidates entries.
	ErrPairTableFull = errors.New("ice: pair table full")

	// ErrClosed names an operation on an agent or stream that has
	// already been closed/pruned. No function in this package returns
	// it.
	ErrClosed = errors.New("ice: closed")

	// ErrBadMessageIntegrity is returned when an inbound STUN message's
	// MESSAGE-INTEGRITY does not validate against the credentials in
	// effect.
	ErrBadMessageIntegrity = errors.New("ice: bad message integrity")

	// ErrUnknownComponent names candidate gathering reporting a
	// component ID the stream was not configured with. No function in
	// this package returns it; GatherComponent skips such candidates.
	ErrUnknownComponent = errors.New("ice: unknown component")
)

// wrap annotates an error from an external collaborator (Socket,
// Gatherer, Clock) with the operation that failed, preserving the
// original error for errors.Is/As.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, op)
}
