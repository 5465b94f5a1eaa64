package socket

import (
	"math/rand"
	"sync"

	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
)

// firstEphemeralPort and lastEphemeralPort bound the ephemeral port range
// handed out by allocateEphemeralPort.
const (
	firstEphemeralPort = 32768
	lastEphemeralPort  = 60999
)

// Registry is the process-wide IPv4 socket registry: every socket for
// ICMP fan-out, UDP sockets keyed by local port, and TCP sockets keyed by
// 4-tuple. A single mutex guards all three maps so tuple-uniqueness checks
// and port allocation happen under one lock across the whole registry.
type Registry struct {
	mu sync.Mutex

	all        map[*IPv4Socket]struct{}
	udpByPort  map[uint16]*IPv4Socket
	tcpByTuple map[netaddr.Tuple]*TCPSocket
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		all:        make(map[*IPv4Socket]struct{}),
		udpByPort:  make(map[uint16]*IPv4Socket),
		tcpByTuple: make(map[netaddr.Tuple]*TCPSocket),
	}
}

func (r *Registry) registerAll(s *IPv4Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all[s] = struct{}{}
}

// Unregister removes s from the all-sockets set and, if it was UDP-bound,
// from the by-port map. TCP sockets are removed via UnregisterTCP instead,
// since their anchor is the 4-tuple, not their identity in the all set.
func (r *Registry) Unregister(s *IPv4Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.all, s)
	if s.Type == SockDGRAM && s.Protocol == frame.ProtoUDP {
		if existing, ok := r.udpByPort[s.localPort]; ok && existing == s {
			delete(r.udpByPort, s.localPort)
		}
	}
}

// BindUDP assigns port as s's local port, unique among UDP sockets.
func (r *Registry) BindUDP(s *IPv4Socket, localAddr netaddr.IPv4, port uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.udpByPort[port]; taken {
		return ErrAddrInUse
	}
	s.mu.Lock()
	s.localAddr = localAddr
	s.localPort = port
	s.mu.Unlock()
	r.udpByPort[port] = s
	return nil
}

// FindUDP looks up a UDP socket by destination port, the only key UDP
// sockets are addressed by.
func (r *Registry) FindUDP(port uint16) (*IPv4Socket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.udpByPort[port]
	return s, ok
}

// ICMPFanout calls fn for every registered socket whose protocol is ICMP,
// independent of addressing. fn is called while the registry lock is
// held, so fn must not re-enter the registry.
func (r *Registry) ICMPFanout(fn func(*IPv4Socket)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s := range r.all {
		if s.Protocol == frame.ProtoICMP {
			fn(s)
		}
	}
}

// FindTCP looks up a TCP socket by exact 4-tuple. There is no listener
// demotion or wildcard match: incoming connections are out of scope, so
// nothing needs one.
func (r *Registry) FindTCP(tuple netaddr.Tuple) (*TCPSocket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.tcpByTuple[tuple]
	return s, ok
}

// registerTCP inserts sock at tuple, failing with ErrAddrInUse if the
// tuple is already occupied. Used by both Listen and the ephemeral port
// allocator (Connect), so both paths enforce the "no duplicate tuples"
// invariant through one code path.
func (r *Registry) registerTCP(tuple netaddr.Tuple, sock *TCPSocket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.tcpByTuple[tuple]; taken {
		return ErrAddrInUse
	}
	r.tcpByTuple[tuple] = sock
	return nil
}

// UnregisterTCP removes sock's tuple from the registry. The tuple is the
// socket's anchor for its whole lifetime, so this should be called from
// the TCP socket's terminal Close path, not on every state transition.
func (r *Registry) UnregisterTCP(tuple netaddr.Tuple) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tcpByTuple, tuple)
}

// allocateEphemeralPort performs a random-start linear scan over the
// ephemeral range and, on success, inserts the resulting tuple atomically
// under the same lock used for the uniqueness check.
func (r *Registry) allocateEphemeralPort(sock *TCPSocket, localAddr, peerAddr netaddr.IPv4, peerPort uint16) (uint16, error) {
	const rangeSize = lastEphemeralPort - firstEphemeralPort
	firstScan := uint16(firstEphemeralPort + rand.Intn(rangeSize))

	r.mu.Lock()
	defer r.mu.Unlock()

	port := firstScan
	for {
		tuple := netaddr.Tuple{LocalAddr: localAddr, LocalPort: port, PeerAddr: peerAddr, PeerPort: peerPort}
		if _, taken := r.tcpByTuple[tuple]; !taken {
			r.tcpByTuple[tuple] = sock
			return port, nil
		}
		port++
		if port > lastEphemeralPort {
			port = firstEphemeralPort
		}
		if port == firstScan {
			return 0, ErrAddrInUse
		}
	}
}
