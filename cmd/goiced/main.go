// Command goiced runs two connectivity-check agents against each other
// over UDP and reports when they converge on a selected pair. It
// exists to exercise the engine end to end the same way alohartcd
// exercises a full peer connection: wire it up, watch state changes,
// print what happened.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"

	"github.com/lanikai/goice/internal/gather"
	"github.com/lanikai/goice/internal/ice"
	"github.com/lanikai/goice/internal/transport"
)

var (
	flagStunServer = flag.String("stun-server", "", "STUN server (host:port) for server-reflexive gathering")
	flagTimeout    = flag.Duration("timeout", 10*time.Second, "how long to wait for both agents to reach Ready")
	flagHelp       = flag.BoolP("help", "h", false, "show usage")
)

type side struct {
	name       string
	agent      *ice.Agent
	stream     *ice.Stream
	socket     *transport.UDPSocket
	candidates []*ice.Candidate
}

func main() {
	flag.Parse()
	if *flagHelp {
		flag.Usage()
		os.Exit(0)
	}

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	offerer, err := newSide("offerer", true)
	must(err)
	answerer, err := newSide("answerer", false)
	must(err)
	defer offerer.agent.Close()
	defer answerer.agent.Close()

	go demux(offerer)
	go demux(answerer)

	exchangeCandidates(offerer, answerer)

	ready := make(chan struct{}, 2)
	offerer.agent.OnComponentStateChange(reporter(offerer.name, ready))
	answerer.agent.OnComponentStateChange(reporter(answerer.name, ready))

	waitForReady(ready)
}

func newSide(name string, controlling bool) (*side, error) {
	agent := ice.NewAgent(ice.Config{ControllingMode: controlling})
	stream := agent.AddStream()

	g := gather.NewGatherer(*flagStunServer)
	candidates, err := g.Gather(1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s: no local candidates gathered", name)
	}

	socket := g.Sockets[candidates[0].Base.Addr.String()+":0"]
	for _, sock := range g.Sockets {
		socket = sock
		break
	}
	stream.AddComponent(1, socket)

	for _, c := range candidates {
		if err := stream.AddLocalCandidate(c); err != nil {
			return nil, err
		}
	}

	return &side{name: name, agent: agent, stream: stream, socket: socket, candidates: candidates}, nil
}

// demux reads every datagram a side's socket receives and hands STUN
// traffic to its agent; anything else is outside this demo's scope.
func demux(s *side) {
	for pkt := range s.socket.Inbound {
		if !looksLikeStun(pkt.Data) {
			continue
		}
		if err := s.agent.HandleInbound(s.stream.ID, 1, pkt.Data, pkt.From, s.socket); err != nil {
			log.Printf("[%s] inbound stun error: %v", s.name, err)
		}
	}
}

// looksLikeStun applies the RFC 8489 §12 demultiplexing check: the two
// top bits of the first byte are zero for STUN, and real deployments
// also check the magic cookie; a minimal leading-bits check is enough
// for this loopback-only demo.
func looksLikeStun(b []byte) bool {
	return len(b) >= 20 && b[0]&0xc0 == 0
}

func exchangeCandidates(a, b *side) {
	aUfrag, aPwd := a.stream.LocalCredentials()
	bUfrag, bPwd := b.stream.LocalCredentials()
	a.stream.SetRemoteCredentials(bUfrag, bPwd)
	b.stream.SetRemoteCredentials(aUfrag, aPwd)

	for _, c := range a.candidates {
		_ = b.stream.AddRemoteCandidate(c)
	}
	for _, c := range b.candidates {
		_ = a.stream.AddRemoteCandidate(c)
	}
}

func reporter(name string, ready chan<- struct{}) ice.StateChangeHandler {
	return func(streamID, component int, state ice.ComponentState) {
		fmt.Printf("[%s] stream %d component %d -> %s\n", name, streamID, component, state)
		if state == ice.ComponentReady {
			ready <- struct{}{}
		}
	}
}

func waitForReady(ready chan struct{}) {
	select {
	case <-ready:
		select {
		case <-ready:
			color.Green("both agents reached Ready")
		case <-time.After(*flagTimeout):
			color.Red("timed out waiting for the second agent")
			os.Exit(1)
		}
	case <-time.After(*flagTimeout):
		color.Red("timed out waiting for connectivity")
		os.Exit(1)
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
