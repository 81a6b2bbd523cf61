package ice

import (
	"time"

	"github.com/lanikai/goice/internal/clock"
	"github.com/pion/logging"
)

// NominationMode selects how the controlling agent marks a pair as the
// one carrying media for a component.
type NominationMode int

const (
	// NominationRegular nominates by scheduling a second, triggered
	// check with USE-CANDIDATE once a stopping criterion is met.
	NominationRegular NominationMode = iota

	// NominationAggressive sets USE-CANDIDATE on every check the
	// controlling agent emits.
	NominationAggressive
)

func (m NominationMode) String() string {
	if m == NominationAggressive {
		return "aggressive"
	}
	return "regular"
}

// Compatibility selects the interoperability mode. RFC 8445 is the
// canonical mode; the others exist because real deployments still
// interoperate with pre-standard ICE stacks. Only the keepalive form
// depends on it: usernames, passwords and STUN attributes are built the
// same way in every mode.
type Compatibility int

const (
	// CompatibilityRFC8445 is the canonical RFC 8445 mode:
	// USERNAME = "remote_ufrag:local_ufrag", full
	// MESSAGE-INTEGRITY/FINGERPRINT on every message.
	CompatibilityRFC8445 Compatibility = iota

	// CompatibilityGoogle matches legacy Google/libjingle agents:
	// keepalives are bare STUN indications rather than credentialed
	// binding requests unless KeepaliveConncheck is set. Role-conflict
	// handling uses the same attributes as RFC 8445 mode. Routed
	// through here so the core state machine stays unchanged.
	CompatibilityGoogle
)

// Config holds the process-local knobs recognized by the engine. None
// of this is a wire format.
type Config struct {
	// ControllingMode is this agent's initial ICE role. It may flip at
	// runtime on a role conflict.
	ControllingMode bool

	NominationMode NominationMode
	Compatibility  Compatibility

	// TimerTa is the pacing interval between connectivity checks.
	// RFC 8445 default is 20-50ms depending on deployment; this
	// engine defaults to 20ms.
	TimerTa time.Duration

	// StunInitialTimeout is RTO_MIN, the minimum/initial retransmit
	// timeout for an unreliable transaction.
	StunInitialTimeout time.Duration

	// StunMaxRetransmissions bounds the RFC 5389 exponential backoff
	// series before a transaction is declared timed out.
	StunMaxRetransmissions int

	// StunReliableTimeout is the fixed timeout used for reliable
	// (TCP-like) sockets, which do not retransmit.
	StunReliableTimeout time.Duration

	// IdleTimeout is the grace period of consecutive empty ticks
	// before the scheduler runs the failure-propagation sweep and
	// stops.
	IdleTimeout time.Duration

	// MaxConnChecks caps the per-stream pair table: once it is reached,
	// new pairs are refused with ErrPairTableFull. Existing pairs are
	// never pruned to make room.
	MaxConnChecks int

	// MaxRemoteCandidates bounds how many remote candidates are
	// buffered per stream before remote credentials are known.
	MaxRemoteCandidates int

	// KeepaliveConncheck selects full credentialed binding-request
	// keepalives over bare indications.
	KeepaliveConncheck bool

	// KeepaliveInterval is Tr, the period between keepalives on the
	// selected pair. Default 15s.
	KeepaliveInterval time.Duration

	// ForceRelay restricts checks to relayed local candidates only.
	ForceRelay bool

	// SupportRenomination is carried for the NOMINATION attribute
	// extension; no code reads it, and the NOMINATION attribute is
	// neither sent nor parsed.
	SupportRenomination bool

	LoggerFactory logging.LoggerFactory
	Clock         clock.Clock
}

// DefaultConfig returns the RFC 8445 canonical configuration used
// unless the caller overrides specific fields.
func DefaultConfig() Config {
	return Config{
		NominationMode:         NominationRegular,
		Compatibility:          CompatibilityRFC8445,
		TimerTa:                20 * time.Millisecond,
		StunInitialTimeout:     500 * time.Millisecond,
		StunMaxRetransmissions: 7,
		StunReliableTimeout:    7900 * time.Millisecond,
		IdleTimeout:            5 * time.Second,
		MaxConnChecks:          100,
		MaxRemoteCandidates:    25,
		KeepaliveInterval:      15 * time.Second,
		LoggerFactory:          logging.NewDefaultLoggerFactory(),
		Clock:                  clock.Real{},
	}
}

func (c *Config) setDefaults() {
	d := DefaultConfig()
	if c.TimerTa == 0 {
		c.TimerTa = d.TimerTa
	}
	if c.StunInitialTimeout == 0 {
		c.StunInitialTimeout = d.StunInitialTimeout
	}
	if c.StunMaxRetransmissions == 0 {
		c.StunMaxRetransmissions = d.StunMaxRetransmissions
	}
	if c.StunReliableTimeout == 0 {
		c.StunReliableTimeout = d.StunReliableTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxConnChecks == 0 {
		c.MaxConnChecks = d.MaxConnChecks
	}
	if c.MaxRemoteCandidates == 0 {
		c.MaxRemoteCandidates = d.MaxRemoteCandidates
	}
	if c.KeepaliveInterval == 0 {
		c.KeepaliveInterval = d.KeepaliveInterval
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = d.LoggerFactory
	}
	if c.Clock == nil {
		c.Clock = d.Clock
	}
}
