// Package transport provides the concrete Socket implementation that
// callers bind a stream's components to (Stream.AddComponent), adapted from the
// original base-per-interface gathering layer: where that layer read
// directly off a single net.PacketConn and dispatched by transaction
// handler, this package exposes a small addressed-packet channel so a
// caller-owned demuxer can classify inbound traffic (STUN versus
// anything else sharing the socket, per RFC 8489 §12) before handing
// it to the engine.
package transport

import (
	"net"

	"github.com/lanikai/goice/internal/ice"
)

// Packet is one datagram read off a UDPSocket, tagged with its sender.
type Packet struct {
	Data []byte
	From net.Addr
}

// UDPSocket adapts a bound *net.UDPConn to the ice.Socket interface. Its
// read pump publishes every inbound datagram on Inbound for the
// caller's demuxer to classify and route.
type UDPSocket struct {
	conn *net.UDPConn

	// Inbound delivers every datagram this socket receives, in order.
	// The engine itself never reads this directly -- HandleInbound is
	// fed by whatever demuxer the caller runs over this channel.
	Inbound chan Packet
}

// ListenUDP opens a UDP socket bound to ip (any available port) and
// starts its read pump.
func ListenUDP(ip net.IP) (*UDPSocket, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: 0})
	if err != nil {
		return nil, err
	}
	s := &UDPSocket{
		conn:    conn,
		Inbound: make(chan Packet, 64),
	}
	go s.readLoop()
	return s, nil
}

func (s *UDPSocket) readLoop() {
	for {
		buf := make([]byte, 1500)
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			close(s.Inbound)
			return
		}
		s.Inbound <- Packet{Data: buf[:n], From: addr}
	}
}

// WriteTo implements ice.Socket.
func (s *UDPSocket) WriteTo(b []byte, addr net.Addr) (int, error) {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		resolved, err := net.ResolveUDPAddr("udp", addr.String())
		if err != nil {
			return 0, err
		}
		udpAddr = resolved
	}
	return s.conn.WriteToUDP(b, udpAddr)
}

// LocalAddr implements ice.Socket.
func (s *UDPSocket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Transport implements ice.Socket.
func (s *UDPSocket) Transport() ice.Transport { return ice.TransportUDP }

// Close implements ice.Socket.
func (s *UDPSocket) Close() error {
	return s.conn.Close()
}

var _ ice.Socket = (*UDPSocket)(nil)
