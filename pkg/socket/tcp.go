package socket

import (
	"context"
	"io"
	"math/rand"
	"sync"

	"github.com/abyesilyurt/netkernel/pkg/adapter"
	"github.com/abyesilyurt/netkernel/pkg/arptable"
	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
	"github.com/sirupsen/logrus"
)

// tcpAdvertisedWindow is the fixed receive window this stack advertises on
// every outgoing segment, mirroring Kernel/Net/TCPSocket.cpp's constant.
const tcpAdvertisedWindow = 1024

// maxSegmentPayload bounds how much of a Write call's data one outgoing
// segment carries. There is no MTU discovery in scope, so this is a fixed
// conservative size rather than a negotiated one.
const maxSegmentPayload = 1400

// TCPSocket is a stream socket layered over IPv4Socket, adding the
// RFC-793-style state machine, sequence/ack bookkeeping, and a
// ring-buffered receive window, following Kernel/Net/TCPSocket.cpp for
// its state-transition and checksum semantics over real IPv4 4-tuples.
type TCPSocket struct {
	base *IPv4Socket

	reg *Registry
	arp *arptable.Table

	mu             sync.Mutex
	state          State
	tuple          netaddr.Tuple
	sequenceNumber uint32
	ackNumber      uint32

	recvWindow *window

	connectOnce sync.Once
	readyCh     chan struct{}

	closeOnce sync.Once
	closedCh  chan struct{}
}

// NewTCPSocket returns a socket in the Closed state, unbound and
// unconnected.
func NewTCPSocket(reg *Registry, arp *arptable.Table) *TCPSocket {
	return &TCPSocket{
		base:       newIPv4Socket(frame.ProtoTCP, SockSTREAM),
		reg:        reg,
		arp:        arp,
		state:      Closed,
		recvWindow: newWindow(),
		readyCh:    make(chan struct{}),
		closedCh:   make(chan struct{}),
	}
}

func (s *TCPSocket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *TCPSocket) IsDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsDisconnected()
}

func (s *TCPSocket) Tuple() netaddr.Tuple {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tuple
}

func (s *TCPSocket) LocalAddr() netaddr.IPv4 { return s.base.LocalAddr() }
func (s *TCPSocket) LocalPort() uint16       { return s.base.LocalPort() }
func (s *TCPSocket) PeerAddr() netaddr.IPv4  { return s.base.PeerAddr() }
func (s *TCPSocket) PeerPort() uint16        { return s.base.PeerPort() }

// setState applies next, waking any blocked Recv/Connect the moment the
// socket becomes unreachable and dropping the tuple from the registry once
// it reaches Closed. Every path that changes s.state goes through this
// instead of assigning the field directly.
func (s *TCPSocket) setState(next State) {
	prev := s.state
	s.state = next
	if next != prev {
		logrus.WithFields(logrus.Fields{
			"tuple": s.tuple, "from_state": prev, "to_state": next,
		}).Debug("tcp: state transition")
	}
	if next.IsDisconnected() && !prev.IsDisconnected() {
		s.closeOnce.Do(func() { close(s.closedCh) })
	}
	if next == Closed {
		s.reg.UnregisterTCP(s.tuple)
	}
}

func (s *TCPSocket) setConnectedLocked(connected bool) {
	if connected {
		s.connectOnce.Do(func() { close(s.readyCh) })
	}
}

// Bind records the adapter and local 2-tuple this socket will use.
// Adapter resolution itself -- matching localAddr against a configured
// interface -- is the caller's job, since routing-table adapter selection
// is out of scope here.
func (s *TCPSocket) Bind(ad adapter.Adapter, localAddr netaddr.IPv4, localPort uint16) {
	s.base.setAdapter(ad)
	s.base.setLocal(localAddr, localPort)
}

// Listen marks the socket as passively open on its bound local address,
// per Kernel/Net/TCPSocket.cpp's protocol_listen. Incoming connections are
// never accepted: a Listen-state socket exists only so querying its state
// and eventually closing it behaves sanely; any segment it receives is
// dropped per transitionTCP's Listen row.
func (s *TCPSocket) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Closed {
		return ErrInProgress
	}
	tuple := netaddr.Tuple{LocalAddr: s.base.LocalAddr(), LocalPort: s.base.LocalPort()}
	if err := s.reg.registerTCP(tuple, s); err != nil {
		return err
	}
	s.tuple = tuple
	s.setState(Listen)
	return nil
}

// Connect performs the active open: ephemeral port allocation, ISN
// selection, SYN emission, and a block until the handshake completes, an
// RST tears the attempt down, or ctx is cancelled. The blocking wait is
// the Go-idiomatic analog of Kernel/Net/TCPSocket.cpp's ConnectBlocker;
// ctx cancellation is the analog of the original's EINTR path.
func (s *TCPSocket) Connect(ctx context.Context, ad adapter.Adapter, localAddr, peerAddr netaddr.IPv4, peerPort uint16) error {
	s.mu.Lock()
	if s.state != Closed {
		s.mu.Unlock()
		return ErrInProgress
	}
	s.mu.Unlock()

	s.base.setAdapter(ad)
	s.base.setPeer(peerAddr, peerPort)

	port, err := s.reg.allocateEphemeralPort(s, localAddr, peerAddr, peerPort)
	if err != nil {
		return err
	}
	s.base.setLocal(localAddr, port)

	s.mu.Lock()
	s.tuple = netaddr.Tuple{LocalAddr: localAddr, LocalPort: port, PeerAddr: peerAddr, PeerPort: peerPort}
	s.sequenceNumber = rand.Uint32()
	s.ackNumber = 0
	s.setState(SynSent)
	s.sendSegmentLocked(frame.TCPFlagSyn, nil)
	s.mu.Unlock()

	select {
	case <-s.readyCh:
		return nil
	case <-s.closedCh:
		return ErrHostUnreach
	case <-ctx.Done():
		return ErrIntr
	}
}

// HandleSegment applies one incoming segment to the state machine: the
// ack/seq guard clause, then transitionTCP's table, then the resulting
// actions. It is called by the network task's TCP handler once per
// accepted segment and never blocks.
func (s *TCPSocket) HandleSegment(seqNum, ackNum uint32, flags uint8, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ackNum != s.sequenceNumber {
		logrus.WithFields(logrus.Fields{
			"tuple": s.tuple, "want_ack": s.sequenceNumber, "got_ack": ackNum,
		}).Debug("tcp: dropping segment, ack mismatch")
		return
	}

	tr := transitionTCP(s.state, Segment{Flags: flags, SequenceNumber: seqNum, Payload: payload})
	s.setState(tr.NextState)
	if tr.AckNumberSet {
		s.ackNumber = tr.AckNumber
	}
	for _, a := range tr.Actions {
		switch a.Kind {
		case ActionSendSegment:
			s.sendSegmentLocked(a.Flags, nil)
		case ActionDeliver:
			s.recvWindow.deliver(a.Payload)
		case ActionSetConnected:
			s.setConnectedLocked(a.Connected)
		}
	}
}

// sendSegmentLocked builds and emits one segment, then advances
// sequenceNumber by what it consumed: 1 for SYN, 1 for FIN, len(payload)
// for data, matching Kernel/Net/TCPSocket.cpp::send_tcp_packet exactly.
// Callers must hold s.mu.
func (s *TCPSocket) sendSegmentLocked(flags uint8, payload []byte) {
	localAddr, localPort := s.base.LocalAddr(), s.base.LocalPort()
	peerAddr, peerPort := s.base.PeerAddr(), s.base.PeerPort()

	seg := frame.BuildTCPSegment(localPort, peerPort, s.sequenceNumber, s.ackNumber, flags, tcpAdvertisedWindow, localAddr, peerAddr, payload)

	destMAC, _ := s.arp.Lookup(peerAddr)
	if err := s.base.Adapter().SendIPv4(destMAC, peerAddr, frame.ProtoTCP, seg); err != nil {
		logrus.WithError(err).WithField("tuple", s.tuple).Warn("tcp: send failed")
	}

	consumed := uint32(len(payload))
	if flags&frame.TCPFlagSyn != 0 {
		consumed++
	}
	if flags&frame.TCPFlagFin != 0 {
		consumed++
	}
	s.sequenceNumber += consumed
}

// Write sends data over an Established connection, chunked into
// maxSegmentPayload-sized segments, each carrying the ACK flag.
func (s *TCPSocket) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Established {
		return 0, ErrNotConnected
	}
	sent := 0
	for sent < len(data) {
		end := sent + maxSegmentPayload
		if end > len(data) {
			end = len(data)
		}
		s.sendSegmentLocked(frame.TCPFlagAck, data[sent:end])
		sent = end
	}
	return sent, nil
}

// Recv blocks until payload bytes are available, the connection reaches a
// disconnected state, or ctx is cancelled.
func (s *TCPSocket) Recv(ctx context.Context, buf []byte) (int, error) {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-s.closedCh:
		}
		close(stop)
	}()

	n, ok := s.recvWindow.read(buf, stop)
	if ok {
		return n, nil
	}
	if ctx.Err() != nil {
		return 0, ErrIntr
	}
	return 0, io.EOF
}

// Close initiates an active close from Established, or completes a
// passive close from CloseWait, per Kernel/Net/TCPSocket.cpp's
// protocol_close. From any other state the tuple is simply unregistered.
func (s *TCPSocket) Close() error {
	s.mu.Lock()
	switch s.state {
	case Established:
		s.setState(FinWait1)
		s.sendSegmentLocked(frame.TCPFlagFin|frame.TCPFlagAck, nil)
	case CloseWait:
		s.setState(LastAck)
		s.sendSegmentLocked(frame.TCPFlagFin|frame.TCPFlagAck, nil)
	default:
		s.setState(Closed)
	}
	s.mu.Unlock()
	return nil
}
