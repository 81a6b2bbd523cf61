// Package gather implements host and server-reflexive candidate
// discovery: the concrete ice.Gatherer the conncheck engine consumes.
// It walks local interfaces the way a real deployment must (skipping
// loopback and down interfaces), opens one UDP socket per usable
// address, and queries a STUN server for each socket's reflexive
// mapping, adapted from the original base-per-interface gathering
// model into one that produces ice.Candidate values directly.
package gather

import (
	"fmt"
	"net"
	"time"

	"github.com/lanikai/goice/internal/ice"
	"github.com/lanikai/goice/internal/transport"
	"github.com/pion/stun/v3"
)

// Gatherer discovers host and, optionally, server-reflexive candidates
// over UDP for every usable local interface address.
type Gatherer struct {
	// StunServer is the host:port of a STUN server used to discover
	// server-reflexive candidates. Leave empty to gather host
	// candidates only.
	StunServer string

	// IncludeIPv6 gathers IPv6 interface addresses in addition to IPv4.
	IncludeIPv6 bool

	// Sockets accumulates every UDPSocket opened during Gather, keyed
	// by the local candidate's address, so the caller can bind each
	// Candidate's component to the right Socket before adding it to a
	// Stream.
	Sockets map[string]*transport.UDPSocket

	queryTimeout time.Duration
}

// NewGatherer returns a Gatherer with a default 5s STUN query timeout.
func NewGatherer(stunServer string) *Gatherer {
	return &Gatherer{
		StunServer:   stunServer,
		Sockets:      make(map[string]*transport.UDPSocket),
		queryTimeout: 5 * time.Second,
	}
}

// Gather implements ice.Gatherer.
func (g *Gatherer) Gather(component int) ([]*ice.Candidate, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []*ice.Candidate
	localPref := uint32(65535)

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipnet.IP
			if ip4 := ip.To4(); ip4 == nil && !g.IncludeIPv6 {
				continue
			}

			socket, err := transport.ListenUDP(ip)
			if err != nil {
				// Link-local addresses and similar oddities commonly
				// fail to bind; skip rather than aborting gathering.
				continue
			}
			udpAddr := socket.LocalAddr().(*net.UDPAddr)
			g.Sockets[udpAddr.String()] = socket

			host := &ice.Candidate{
				Kind:      ice.CandidateHost,
				Transport: ice.TransportUDP,
				Addr:      udpAddr.IP,
				Port:      udpAddr.Port,
				Component: component,
				Foundation: foundation(ice.CandidateHost, udpAddr.IP, ""),
			}
			host.Base = host
			host.SetPriority(localPref)
			out = append(out, host)

			if g.StunServer == "" {
				continue
			}
			mappedIP, mappedPort, err := g.queryStunServer(socket)
			if err != nil {
				continue
			}
			if mappedIP.Equal(udpAddr.IP) && mappedPort == udpAddr.Port {
				continue
			}

			srflx := &ice.Candidate{
				Kind:        ice.CandidateServerReflexive,
				Transport:   ice.TransportUDP,
				Addr:        mappedIP,
				Port:        mappedPort,
				Component:   component,
				Foundation:  foundation(ice.CandidateServerReflexive, udpAddr.IP, g.StunServer),
				Base:        host,
				RelatedAddr: udpAddr.IP,
				RelatedPort: udpAddr.Port,
			}
			srflx.SetPriority(localPref)
			out = append(out, srflx)
		}
	}
	return out, nil
}

// queryStunServer sends a single STUN binding request to g.StunServer
// over socket and waits for the XOR-MAPPED-ADDRESS in the response.
// Unlike the engine's own connectivity checks, gathering has no
// freezing/scheduling to interleave with, so a direct blocking
// request/response round trip is the idiomatic shape here.
func (g *Gatherer) queryStunServer(socket *transport.UDPSocket) (net.IP, int, error) {
	serverAddr, err := net.ResolveUDPAddr("udp", g.StunServer)
	if err != nil {
		return nil, 0, err
	}

	req, err := stun.Build(stun.TransactionID, stun.BindingRequest, stun.Fingerprint)
	if err != nil {
		return nil, 0, err
	}
	if _, err := socket.WriteTo(req.Raw, serverAddr); err != nil {
		return nil, 0, err
	}

	type result struct {
		ip   net.IP
		port int
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		pkt, ok := <-socket.Inbound
		if !ok {
			resCh <- result{err: fmt.Errorf("gather: socket closed")}
			return
		}
		resp := &stun.Message{Raw: append([]byte(nil), pkt.Data...)}
		if err := resp.Decode(); err != nil {
			resCh <- result{err: err}
			return
		}
		if resp.TransactionID != req.TransactionID {
			resCh <- result{err: fmt.Errorf("gather: unexpected transaction id")}
			return
		}
		var xma stun.XORMappedAddress
		if err := xma.GetFrom(resp); err != nil {
			resCh <- result{err: err}
			return
		}
		resCh <- result{ip: xma.IP, port: xma.Port}
	}()

	select {
	case r := <-resCh:
		return r.ip, r.port, r.err
	case <-time.After(g.queryTimeout):
		return nil, 0, fmt.Errorf("gather: stun query timed out")
	}
}

// foundation derives an RFC 8445 §5.1.1.3 foundation: candidates that
// share type, base address, and (for srflx) STUN server collapse to
// the same foundation so the freezing algorithm treats them as one
// group.
func foundation(kind ice.CandidateKind, base net.IP, server string) string {
	return fmt.Sprintf("%s-%s-%s", kind, base.String(), server)
}
