package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypePreferenceOrdering(t *testing.T) {
	assert.Greater(t, CandidateHost.typePreference(), CandidateServerReflexive.typePreference())
	assert.Greater(t, CandidatePeerReflexive.typePreference(), CandidateServerReflexive.typePreference())
	assert.Greater(t, CandidateServerReflexive.typePreference(), CandidateRelayed.typePreference())
}

func TestSetPriorityEncodesComponentAndLocalPref(t *testing.T) {
	host := &Candidate{Kind: CandidateHost, Component: 1}
	host.SetPriority(65535)

	relay := &Candidate{Kind: CandidateRelayed, Component: 1}
	relay.SetPriority(65535)

	assert.Greater(t, host.Priority, relay.Priority)

	rtcp := &Candidate{Kind: CandidateHost, Component: 2}
	rtcp.SetPriority(65535)
	assert.Less(t, rtcp.Priority, host.Priority, "higher component number should lower priority slightly")
}

func TestTransportCompatibleWith(t *testing.T) {
	cases := []struct {
		a, b Transport
		want bool
	}{
		{TransportUDP, TransportUDP, true},
		{TransportUDP, TransportTCPActive, false},
		{TransportTCPActive, TransportTCPPassive, true},
		{TransportTCPPassive, TransportTCPActive, true},
		{TransportTCPActive, TransportTCPActive, false},
		{TransportTCPSO, TransportTCPSO, true},
		{TransportTCPSO, TransportTCPActive, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.a.compatibleWith(c.b), "%s vs %s", c.a, c.b)
	}
}

func TestTransportReliable(t *testing.T) {
	assert.False(t, TransportUDP.reliable())
	assert.True(t, TransportTCPActive.reliable())
	assert.True(t, TransportTCPPassive.reliable())
	assert.True(t, TransportTCPSO.reliable())
}

func TestAddrPortDedup(t *testing.T) {
	a := &Candidate{Addr: net.ParseIP("10.0.0.1"), Port: 5000}
	b := &Candidate{Addr: net.ParseIP("10.0.0.1"), Port: 5000}
	c := &Candidate{Addr: net.ParseIP("10.0.0.2"), Port: 5000}

	assert.Equal(t, a.addrPort(), b.addrPort())
	assert.NotEqual(t, a.addrPort(), c.addrPort())
}
