package gather

import (
	"net"
	"testing"
	"time"

	"github.com/lanikai/goice/internal/ice"
	"github.com/lanikai/goice/internal/transport"
	"github.com/pion/stun/v3"
	"github.com/stretchr/testify/require"
)

func TestFoundationDeterministic(t *testing.T) {
	ip := net.ParseIP("192.168.1.5")
	a := foundation(ice.CandidateHost, ip, "")
	b := foundation(ice.CandidateHost, ip, "")
	require.Equal(t, a, b)

	c := foundation(ice.CandidateServerReflexive, ip, "stun.example.com:3478")
	require.NotEqual(t, a, c, "different kind/server must produce a different foundation")
}

func TestNewGathererDefaults(t *testing.T) {
	g := NewGatherer("stun.example.com:3478")
	require.Equal(t, "stun.example.com:3478", g.StunServer)
	require.NotNil(t, g.Sockets)
	require.Equal(t, 5*time.Second, g.queryTimeout)
}

func TestGatherWithoutStunServerProducesOnlyHostCandidates(t *testing.T) {
	g := NewGatherer("")
	candidates, err := g.Gather(1)
	require.NoError(t, err)

	for _, c := range candidates {
		require.Equal(t, ice.CandidateHost, c.Kind)
		require.Equal(t, 1, c.Component)
	}
}

func TestQueryStunServerRoundTrip(t *testing.T) {
	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 1500)
		require.NoError(t, server.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, addr, err := server.ReadFromUDP(buf)
		if err != nil {
			return
		}
		req := &stun.Message{Raw: append([]byte(nil), buf[:n]...)}
		if req.Decode() != nil {
			return
		}
		resp, err := stun.Build(req, stun.BindingSuccess,
			&stun.XORMappedAddress{IP: net.ParseIP("203.0.113.9"), Port: 4321},
			stun.Fingerprint,
		)
		if err != nil {
			return
		}
		_, _ = server.WriteToUDP(resp.Raw, addr)
	}()

	sock, err := transport.ListenUDP(net.ParseIP("127.0.0.1"))
	require.NoError(t, err)
	defer sock.Close()

	g := NewGatherer(server.LocalAddr().String())
	ip, port, err := g.queryStunServer(sock)
	require.NoError(t, err)
	require.Equal(t, "203.0.113.9", ip.String())
	require.Equal(t, 4321, port)

	<-done
}
