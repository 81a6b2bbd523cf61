package ice

import (
	"encoding/binary"

	"github.com/pion/stun/v3"
)

var bin = binary.BigEndian

// This file isolates every direct dependency on pion/stun/v3's message
// building API behind small helpers, so the rest of the engine only
// ever talks about usernames, priorities and roles rather than raw
// STUN attributes. RFC 8445 introduces several attributes (PRIORITY,
// USE-CANDIDATE, ICE-CONTROLLING/-CONTROLLED, and the 487 Role
// Conflict error code) that pion/stun, a generic RFC 5389/8489 codec,
// has no built-in knowledge of; this file defines them as small types
// implementing stun.Setter.

const errorCodeRoleConflict = 487

// roleConflictAttr is the RFC 8445 §7.3.1.1 487 (Role Conflict) error
// code, sent back on the same transaction ID as the offending request.
// pion/stun's ERROR-CODE helper only ships the base RFC 5389 codes, so
// this encodes the RFC 5389 §15.6 wire format (class/number split plus
// reason phrase) directly.
type roleConflictAttr struct{}

func (roleConflictAttr) AddTo(m *stun.Message) error {
	const reason = "Role Conflict"
	v := make([]byte, 4+len(reason))
	v[2] = byte(errorCodeRoleConflict / 100)
	v[3] = byte(errorCodeRoleConflict % 100)
	copy(v[4:], reason)
	m.Add(stun.AttrErrorCode, v)
	return nil
}

// buildBindingRequest constructs an RFC 8445 §7.1.3/7.1.4 connectivity
// check request: USERNAME, PRIORITY, the controlling/controlled
// attribute with its tiebreaker, USE-CANDIDATE when nominating, short
// term MESSAGE-INTEGRITY and a trailing FINGERPRINT. It returns the
// built message; callers match responses against msg.TransactionID.
func buildBindingRequest(username string, priority uint32, controlling bool, tiebreaker uint64, useCandidate bool, password string) (*stun.Message, error) {
	setters := []stun.Setter{
		stun.TransactionID,
		stun.BindingRequest,
		stun.NewUsername(username),
		priorityAttr(priority),
	}
	if controlling {
		setters = append(setters, controllingAttr(tiebreaker))
	} else {
		setters = append(setters, controlledAttr(tiebreaker))
	}
	if useCandidate {
		setters = append(setters, useCandidateAttr{})
	}
	setters = append(setters, stun.NewShortTermIntegrity(password), stun.Fingerprint)

	return stun.Build(setters...)
}

// buildBindingSuccess constructs the RFC 8445 §7.3.1 success response:
// XOR-MAPPED-ADDRESS of the 5-tuple source, MESSAGE-INTEGRITY,
// FINGERPRINT, copying the request's transaction ID.
func buildBindingSuccess(req *stun.Message, mappedIP []byte, mappedPort int, password string) (*stun.Message, error) {
	return stun.Build(
		req,
		stun.BindingSuccess,
		&stun.XORMappedAddress{IP: mappedIP, Port: mappedPort},
		stun.NewShortTermIntegrity(password),
		stun.Fingerprint,
	)
}

// buildRoleConflictError constructs the RFC 8445 §7.3.1.1 487 (Role
// Conflict) error response sent when both agents believe they control.
func buildRoleConflictError(req *stun.Message, password string) (*stun.Message, error) {
	return stun.Build(
		req,
		stun.BindingError,
		roleConflictAttr{},
		stun.NewShortTermIntegrity(password),
		stun.Fingerprint,
	)
}

// buildBindingIndication constructs a bare indication used for
// non-credentialed keepalives against legacy peers.
func buildBindingIndication() (*stun.Message, error) {
	return stun.Build(stun.TransactionID, stun.BindingIndication, stun.Fingerprint)
}

// verifyIntegrity checks a message's MESSAGE-INTEGRITY against the
// given password and reports whether it is present and valid. Absent
// MESSAGE-INTEGRITY is treated as invalid; callers decide whether that
// warrants a 401/400 error response.
func verifyIntegrity(m *stun.Message, password string) bool {
	if !m.Contains(stun.AttrMessageIntegrity) {
		return false
	}
	return stun.MessageIntegrity(password).Check(m) == nil
}

// hasFingerprint reports whether m carries a FINGERPRINT attribute.
func hasFingerprint(m *stun.Message) bool {
	return m.Contains(stun.AttrFingerprint)
}

type priorityAttr uint32

func (p priorityAttr) AddTo(m *stun.Message) error {
	v := make([]byte, 4)
	bin.PutUint32(v, uint32(p))
	m.Add(stun.AttrPriority, v)
	return nil
}

type useCandidateAttr struct{}

func (useCandidateAttr) AddTo(m *stun.Message) error {
	m.Add(stun.AttrUseCandidate, nil)
	return nil
}

type controllingAttr uint64

func (t controllingAttr) AddTo(m *stun.Message) error {
	v := make([]byte, 8)
	bin.PutUint64(v, uint64(t))
	m.Add(stun.AttrICEControlling, v)
	return nil
}

type controlledAttr uint64

func (t controlledAttr) AddTo(m *stun.Message) error {
	v := make([]byte, 8)
	bin.PutUint64(v, uint64(t))
	m.Add(stun.AttrICEControlled, v)
	return nil
}

// readPriority extracts the PRIORITY attribute value, defaulting to 0
// if absent (callers only rely on this for peer-reflexive discovery,
// where the attribute is mandatory on well-formed checks).
func readPriority(m *stun.Message) uint32 {
	v, err := m.Get(stun.AttrPriority)
	if err != nil || len(v) < 4 {
		return 0
	}
	return bin.Uint32(v)
}

// readTiebreaker extracts a 64-bit ICE-CONTROLLING/ICE-CONTROLLED
// value used for role-conflict resolution.
func readTiebreaker(m *stun.Message, attr stun.AttrType) (uint64, bool) {
	v, err := m.Get(attr)
	if err != nil || len(v) < 8 {
		return 0, false
	}
	return bin.Uint64(v), true
}
