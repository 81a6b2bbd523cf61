package ice

import (
	"net"
	"testing"

	"github.com/lanikai/goice/internal/clock"
	"github.com/stretchr/testify/require"
)

func testAgent(t *testing.T) *Agent {
	t.Helper()
	a := NewAgent(Config{Clock: clock.NewFake()})
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func hostCandidate(component int, ip string, port int, foundation string) *Candidate {
	c := &Candidate{
		Kind:       CandidateHost,
		Transport:  TransportUDP,
		Addr:       net.ParseIP(ip),
		Port:       port,
		Component:  component,
		Foundation: foundation,
	}
	c.SetPriority(65535)
	return c
}

func TestUnfreezeOnInsertPromotesMatchingFoundation(t *testing.T) {
	a := testAgent(t)
	s := a.AddStream()

	local1 := hostCandidate(1, "10.0.0.1", 5000, "f1")
	remote1 := hostCandidate(1, "10.0.0.2", 6000, "f1")
	require.NoError(t, s.AddLocalCandidate(local1))
	s.SetRemoteCredentials("ufrag", "pwd")
	require.NoError(t, s.AddRemoteCandidate(remote1))

	require.Len(t, s.pairs, 1)
	s.pairs[0].State = PairSucceeded

	local2 := hostCandidate(1, "10.0.0.3", 5001, "f1")
	require.NoError(t, s.AddLocalCandidate(local2))

	var newPair *CheckPair
	for _, p := range s.pairs {
		if p.Local == local2 {
			newPair = p
		}
	}
	require.NotNil(t, newPair)
	require.Equal(t, PairWaiting, newPair.State, "a pair sharing a succeeded foundation should unfreeze immediately")
}

func TestUnfreezeRelatedPromotesAcrossStreams(t *testing.T) {
	a := testAgent(t)
	s1 := a.AddStream()
	s2 := a.AddStream()

	l1 := hostCandidate(1, "10.0.0.1", 5000, "shared")
	r1 := hostCandidate(1, "10.0.0.2", 6000, "shared")
	require.NoError(t, s1.AddLocalCandidate(l1))
	s1.SetRemoteCredentials("u", "p")
	require.NoError(t, s1.AddRemoteCandidate(r1))

	l2 := hostCandidate(1, "10.0.0.3", 5001, "shared")
	r2 := hostCandidate(1, "10.0.0.4", 6001, "shared")
	require.NoError(t, s2.AddLocalCandidate(l2))
	s2.SetRemoteCredentials("u", "p")
	require.NoError(t, s2.AddRemoteCandidate(r2))

	require.Len(t, s2.pairs, 1)
	require.Equal(t, PairFrozen, s2.pairs[0].State)

	a.unfreezeRelated(s1.pairs[0])
	require.Equal(t, PairWaiting, s2.pairs[0].State, "a frozen pair sharing the succeeded pair's foundation in another stream should unfreeze")
}

func TestUnfreezeNextPromotesOnePerFoundation(t *testing.T) {
	a := testAgent(t)
	s := a.AddStream()

	la := hostCandidate(1, "10.0.0.1", 5000, "fa")
	ra := hostCandidate(1, "10.0.0.2", 6000, "fa")
	lb := hostCandidate(1, "10.0.0.3", 5001, "fb")
	rb := hostCandidate(1, "10.0.0.4", 6001, "fb")

	require.NoError(t, s.AddLocalCandidate(la))
	require.NoError(t, s.AddLocalCandidate(lb))
	s.SetRemoteCredentials("u", "p")
	require.NoError(t, s.AddRemoteCandidate(ra))
	require.NoError(t, s.AddRemoteCandidate(rb))

	// Two locals times two remotes on one component: four pairs, with
	// foundations fa:fa, fb:fa, fa:fb and fb:fb.
	require.Len(t, s.pairs, 4)
	for _, p := range s.pairs {
		require.Equal(t, PairFrozen, p.State)
	}

	unfroze := a.unfreezeNext()
	require.True(t, unfroze)

	waiting := 0
	for _, p := range s.pairs {
		if p.State == PairWaiting {
			waiting++
		}
	}
	require.Equal(t, 4, waiting, "one pair per distinct foundation should unfreeze")
}

func TestAnyWaitingReflectsPairStates(t *testing.T) {
	a := testAgent(t)
	s := a.AddStream()
	require.False(t, a.anyWaiting())

	local := hostCandidate(1, "10.0.0.1", 5000, "f1")
	remote := hostCandidate(1, "10.0.0.2", 6000, "f1")
	require.NoError(t, s.AddLocalCandidate(local))
	s.SetRemoteCredentials("u", "p")
	require.NoError(t, s.AddRemoteCandidate(remote))

	require.False(t, a.anyWaiting(), "first pair of a brand-new foundation starts Frozen")

	a.unfreezeNext()
	require.True(t, a.anyWaiting())
}
