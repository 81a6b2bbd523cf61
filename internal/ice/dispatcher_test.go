package ice

import (
	"net"
	"testing"

	"github.com/pion/stun/v3"
	"github.com/stretchr/testify/require"
)

type recordingSocket struct {
	writes [][]byte
}

func (s *recordingSocket) WriteTo(b []byte, addr net.Addr) (int, error) {
	s.writes = append(s.writes, append([]byte(nil), b...))
	return len(b), nil
}

func (s *recordingSocket) LocalAddr() net.Addr    { return &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1} }
func (s *recordingSocket) Transport() Transport    { return TransportUDP }
func (s *recordingSocket) Close() error            { return nil }

func decodeRaw(t *testing.T, raw []byte) *stun.Message {
	t.Helper()
	m := &stun.Message{Raw: append([]byte(nil), raw...)}
	require.NoError(t, m.Decode())
	return m
}

func controllingRequest(t *testing.T, tiebreaker uint64, pwd string) *stun.Message {
	t.Helper()
	msg, err := buildBindingRequest("u", 1, true, tiebreaker, false, pwd)
	require.NoError(t, err)
	return decodeRaw(t, msg.Raw)
}

func controlledRequest(t *testing.T, tiebreaker uint64, pwd string) *stun.Message {
	t.Helper()
	msg, err := buildBindingRequest("u", 1, false, tiebreaker, false, pwd)
	require.NoError(t, err)
	return decodeRaw(t, msg.Raw)
}

func TestResolveRoleConflictBothControllingTheirsLower(t *testing.T) {
	a := testAgent(t)
	a.controlling = true
	a.tiebreaker = 100
	s := a.AddStream()

	req := controllingRequest(t, 50, s.localPwd)
	sock := &recordingSocket{}

	conflict := a.resolveRoleConflict(s, req, sock, &net.UDPAddr{})
	require.True(t, conflict, "the side with the larger tiebreaker must reject with a conflict response")
	require.Len(t, sock.writes, 1)
	require.True(t, a.controlling, "the rejecting agent keeps its role")
}

func TestResolveRoleConflictBothControllingTheirsHigher(t *testing.T) {
	a := testAgent(t)
	a.controlling = true
	a.tiebreaker = 50
	s := a.AddStream()

	req := controllingRequest(t, 100, s.localPwd)
	sock := &recordingSocket{}

	conflict := a.resolveRoleConflict(s, req, sock, &net.UDPAddr{})
	require.False(t, conflict, "the side with the smaller tiebreaker must yield instead of rejecting")
	require.Len(t, sock.writes, 0)
	require.False(t, a.controlling, "the yielding agent switches to controlled")
}

func TestResolveRoleConflictEqualTiebreakersFavorEvaluatingSide(t *testing.T) {
	a := testAgent(t)
	a.controlling = true
	a.tiebreaker = 77
	s := a.AddStream()
	req := controllingRequest(t, 77, s.localPwd)
	sock := &recordingSocket{}

	conflict := a.resolveRoleConflict(s, req, sock, &net.UDPAddr{})
	require.True(t, conflict, "a tie must resolve in favor of the evaluating (controlling) agent")
	require.True(t, a.controlling)

	a2 := testAgent(t)
	a2.controlling = false
	a2.tiebreaker = 77
	s2 := a2.AddStream()
	req2 := controlledRequest(t, 77, s2.localPwd)
	sock2 := &recordingSocket{}

	conflict2 := a2.resolveRoleConflict(s2, req2, sock2, &net.UDPAddr{})
	require.False(t, conflict2, "a tie on the controlled side must flip this agent to controlling, not reject")
	require.True(t, a2.controlling)
}

func TestResolveRoleConflictBothControlledTheirsHigher(t *testing.T) {
	a := testAgent(t)
	a.controlling = false
	a.tiebreaker = 10
	s := a.AddStream()

	req := controlledRequest(t, 100, s.localPwd)
	sock := &recordingSocket{}

	conflict := a.resolveRoleConflict(s, req, sock, &net.UDPAddr{})
	require.True(t, conflict, "if the peer's tiebreaker is higher while both claim controlled, this agent must reject")
	require.False(t, a.controlling)
}

func TestResolveRoleConflictNoAttributeIsNotAConflict(t *testing.T) {
	a := testAgent(t)
	s := a.AddStream()

	msg, err := stun.Build(stun.TransactionID, stun.BindingRequest, stun.Fingerprint)
	require.NoError(t, err)
	req := decodeRaw(t, msg.Raw)
	sock := &recordingSocket{}

	conflict := a.resolveRoleConflict(s, req, sock, &net.UDPAddr{})
	require.False(t, conflict)
	require.Len(t, sock.writes, 0)
}

func TestHandleBindingRequestRevivesFailedPairWhenOutranksSelected(t *testing.T) {
	a := testAgent(t)
	a.controlling = false
	s := a.AddStream()
	sock := &recordingSocket{}
	comp := s.AddComponent(1, sock)
	s.SetRemoteCredentials("ru", "rp")

	local := hostCandidate(1, "10.0.0.1", 5000, "lf")
	remote := hostCandidate(1, "10.0.0.2", 6000, "rf")
	require.NoError(t, s.AddLocalCandidate(local))
	require.NoError(t, s.AddRemoteCandidate(remote))

	p := s.pairIndex[pairKey(local, remote)]
	require.NotNil(t, p)
	p.State = PairFailed
	p.Priority = 500

	comp.selectedPair = &CheckPair{Local: local, Remote: remote, Priority: 100, State: PairSucceeded}
	comp.state = ComponentReady

	req, err := buildBindingRequest("u", 1, true, 999, false, s.localPwd)
	require.NoError(t, err)

	err = a.handleBindingRequest(s, 1, decodeRaw(t, req.Raw), &net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 6000}, sock)
	require.NoError(t, err)

	require.Equal(t, PairWaiting, p.State, "a higher-priority failed pair should be revived to waiting")
	require.Equal(t, ComponentConnecting, comp.state, "component state should be walked back from ready")
}

func TestHandleBindingRequestLeavesLowerPriorityFailedPairAlone(t *testing.T) {
	a := testAgent(t)
	a.controlling = false
	s := a.AddStream()
	sock := &recordingSocket{}
	comp := s.AddComponent(1, sock)
	s.SetRemoteCredentials("ru", "rp")

	local := hostCandidate(1, "10.0.0.1", 5000, "lf")
	remote := hostCandidate(1, "10.0.0.2", 6000, "rf")
	require.NoError(t, s.AddLocalCandidate(local))
	require.NoError(t, s.AddRemoteCandidate(remote))

	p := s.pairIndex[pairKey(local, remote)]
	require.NotNil(t, p)
	p.State = PairFailed
	p.Priority = 1

	comp.selectedPair = &CheckPair{Local: local, Remote: remote, Priority: 1000, State: PairSucceeded}
	comp.state = ComponentReady

	req, err := buildBindingRequest("u", 1, true, 999, false, s.localPwd)
	require.NoError(t, err)

	err = a.handleBindingRequest(s, 1, decodeRaw(t, req.Raw), &net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 6000}, sock)
	require.NoError(t, err)

	require.Equal(t, PairFailed, p.State, "a failed pair that would not outrank the selected pair stays failed")
	require.Equal(t, ComponentReady, comp.state)
}

func TestHandleBindingRequestWakesInProgressPairWithoutResending(t *testing.T) {
	a := testAgent(t)
	a.controlling = false
	s := a.AddStream()
	sock := &recordingSocket{}
	s.AddComponent(1, sock)
	s.SetRemoteCredentials("ru", "rp")

	local := hostCandidate(1, "10.0.0.1", 5000, "lf")
	remote := hostCandidate(1, "10.0.0.2", 6000, "rf")
	require.NoError(t, s.AddLocalCandidate(local))
	require.NoError(t, s.AddRemoteCandidate(remote))

	p := s.pairIndex[pairKey(local, remote)]
	require.NotNil(t, p)
	p.State = PairInProgress
	p.Priority = 500

	req, err := buildBindingRequest("u", 1, true, 999, false, s.localPwd)
	require.NoError(t, err)

	err = a.handleBindingRequest(s, 1, decodeRaw(t, req.Raw), &net.UDPAddr{IP: net.ParseIP("10.0.0.2"), Port: 6000}, sock)
	require.NoError(t, err)

	require.Equal(t, PairInProgress, p.State, "an in-flight transaction must not be reset or resent")
	require.Contains(t, a.triggeredQueue, p)
}

func TestResolveRoleConflictDifferentRolesIsNotAConflict(t *testing.T) {
	a := testAgent(t)
	a.controlling = true
	s := a.AddStream()

	req := controlledRequest(t, 1, s.localPwd)
	sock := &recordingSocket{}

	conflict := a.resolveRoleConflict(s, req, sock, &net.UDPAddr{})
	require.False(t, conflict, "controlling agent receiving a controlled peer's attribute is the normal case")
	require.True(t, a.controlling)
}
