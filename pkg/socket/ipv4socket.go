// Package socket implements the IPv4 socket registry, the TCP socket and
// its RFC-793-style state machine, and the ephemeral port allocator, over
// the Ethernet/ARP/IPv4 stack this repo targets, following
// Kernel/Net/TCPSocket.cpp for the exact state-transition and checksum
// semantics.
package socket

import (
	"sync"

	"github.com/abyesilyurt/netkernel/pkg/adapter"
	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
)

// SockType mirrors the two socket type constants this stack cares about.
type SockType int

const (
	SockDGRAM SockType = iota
	SockSTREAM
)

// IPv4Socket is the common base every socket this stack manages embeds:
// protocol, type, 4-tuple fields, a per-socket lock, and a receive queue.
// ICMP and UDP sockets use it directly; TCPSocket holds a pointer to one
// in its base field and layers its state machine and ring-buffered
// receive window on top.
type IPv4Socket struct {
	Protocol frame.IPProtocol
	Type     SockType

	mu sync.Mutex

	localAddr netaddr.IPv4
	localPort uint16
	peerAddr  netaddr.IPv4
	peerPort  uint16

	adapter adapter.Adapter

	// recvQ carries datagrams for ICMP/UDP sockets; TCPSocket does not use
	// this field, since its receive path is the ring-buffered window in
	// window.go.
	recvQ chan ReceivedDatagram
}

// ReceivedDatagram is what did_receive hands to a DGRAM-type socket: the
// copied IPv4 packet plus the sender's address and (for UDP) source port.
type ReceivedDatagram struct {
	SourceAddr netaddr.IPv4
	SourcePort uint16
	Packet     []byte
}

const recvQueueCapacity = 256

func newIPv4Socket(protocol frame.IPProtocol, sockType SockType) *IPv4Socket {
	return &IPv4Socket{
		Protocol: protocol,
		Type:     sockType,
		recvQ:    make(chan ReceivedDatagram, recvQueueCapacity),
	}
}

func (s *IPv4Socket) LocalAddr() netaddr.IPv4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localAddr
}

func (s *IPv4Socket) LocalPort() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localPort
}

func (s *IPv4Socket) PeerAddr() netaddr.IPv4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerAddr
}

func (s *IPv4Socket) PeerPort() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerPort
}

func (s *IPv4Socket) Adapter() adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

// setLocal, setPeer and setAdapter are used by TCPSocket, which keeps an
// IPv4Socket in its base field for its addressing fields but layers its own state and
// sequencing on top rather than duplicating the fields here.
func (s *IPv4Socket) setLocal(addr netaddr.IPv4, port uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localAddr, s.localPort = addr, port
}

func (s *IPv4Socket) setPeer(addr netaddr.IPv4, port uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerAddr, s.peerPort = addr, port
}

func (s *IPv4Socket) setAdapter(a adapter.Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapter = a
}

// DidReceive delivers a copied IPv4 packet to this socket's receive queue,
// the ICMP/UDP-socket equivalent of Kernel/Net/IPv4Socket.cpp's
// did_receive. It never blocks the calling network task: a full queue
// drops the datagram rather than stall the caller.
func (s *IPv4Socket) DidReceive(sourceAddr netaddr.IPv4, sourcePort uint16, packet []byte) {
	select {
	case s.recvQ <- ReceivedDatagram{SourceAddr: sourceAddr, SourcePort: sourcePort, Packet: packet}:
	default:
	}
}

// Recv blocks until a datagram is available or done is closed.
func (s *IPv4Socket) Recv(done <-chan struct{}) (ReceivedDatagram, bool) {
	select {
	case d := <-s.recvQ:
		return d, true
	case <-done:
		return ReceivedDatagram{}, false
	}
}

// NewICMPSocket returns a raw ICMP socket and registers it in reg's
// all-sockets set so it participates in ICMP fan-out, matched by the
// "protocol == ICMP" filter, independent of any address.
func NewICMPSocket(reg *Registry) *IPv4Socket {
	s := newIPv4Socket(frame.ProtoICMP, SockDGRAM)
	reg.registerAll(s)
	return s
}

// NewUDPSocket returns an unbound UDP socket. Call reg.BindUDP to give it a
// local port before it can receive anything.
func NewUDPSocket(reg *Registry) *IPv4Socket {
	s := newIPv4Socket(frame.ProtoUDP, SockDGRAM)
	reg.registerAll(s)
	return s
}
