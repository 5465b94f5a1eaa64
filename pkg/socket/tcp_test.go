package socket

import (
	"context"
	"testing"
	"time"

	"github.com/abyesilyurt/netkernel/pkg/adapter"
	"github.com/abyesilyurt/netkernel/pkg/arptable"
	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
	"github.com/stretchr/testify/require"
)

func waitForSentIPv4(t *testing.T, fake *adapter.Fake) adapter.SentIPv4 {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sent, ok := fake.LastIPv4(); ok {
			return sent
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for an outgoing segment")
	return adapter.SentIPv4{}
}

func TestTCPConnectHandshakeDataAndClose(t *testing.T) {
	reg := NewRegistry()
	arp := arptable.New()
	localMAC := netaddr.MAC{1, 1, 1, 1, 1, 1}
	localIP := netaddr.IPv4From4([4]byte{10, 0, 0, 1})
	peerIP := netaddr.IPv4From4([4]byte{10, 0, 0, 2})
	const peerPort = 80

	fake := adapter.NewFake(localMAC, localIP)
	sock := NewTCPSocket(reg, arp)

	connectDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		connectDone <- sock.Connect(ctx, fake, localIP, peerIP, peerPort)
	}()

	syn := waitForSentIPv4(t, fake)
	synView, err := frame.ParseTCP(syn.Payload)
	require.NoError(t, err)
	require.True(t, synView.HasSYN())
	require.False(t, synView.HasACK())

	// Simulate the peer's SYN|ACK, acking our SYN.
	sock.HandleSegment(5000, synView.SequenceNumber()+1, frame.TCPFlagSyn|frame.TCPFlagAck, nil)

	require.NoError(t, <-connectDone)
	require.Equal(t, Established, sock.State())

	// Peer sends data; HandleSegment's ack guard requires acking our
	// current sequence number (which the SYN|ACK's own ACK already
	// advanced past the SYN).
	sock.mu.Lock()
	curSeq := sock.sequenceNumber
	sock.mu.Unlock()
	sock.HandleSegment(5001, curSeq, frame.TCPFlagAck, []byte("hi"))

	buf := make([]byte, 16)
	rctx, rcancel := context.WithTimeout(context.Background(), time.Second)
	defer rcancel()
	n, err := sock.Recv(rctx, buf)
	require.NoError(t, err)
	require.Equal(t, "hi", string(buf[:n]))

	n, err = sock.Write([]byte("yo"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.NoError(t, sock.Close())
	require.Equal(t, FinWait1, sock.State())

	sock.mu.Lock()
	curSeq = sock.sequenceNumber
	sock.mu.Unlock()
	sock.HandleSegment(5002, curSeq, frame.TCPFlagAck, nil)
	require.Equal(t, FinWait2, sock.State())
	require.True(t, sock.IsDisconnected())
}

func TestTCPConnectFailsOnResetBeforeEstablished(t *testing.T) {
	reg := NewRegistry()
	arp := arptable.New()
	localIP := netaddr.IPv4From4([4]byte{10, 0, 0, 1})
	peerIP := netaddr.IPv4From4([4]byte{10, 0, 0, 2})
	fake := adapter.NewFake(netaddr.MAC{1}, localIP)
	sock := NewTCPSocket(reg, arp)

	connectDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		connectDone <- sock.Connect(ctx, fake, localIP, peerIP, 80)
	}()

	syn := waitForSentIPv4(t, fake)
	synView, err := frame.ParseTCP(syn.Payload)
	require.NoError(t, err)

	sock.HandleSegment(1, synView.SequenceNumber()+1, frame.TCPFlagRst, nil)
	require.ErrorIs(t, <-connectDone, ErrHostUnreach)
}

func TestTCPConnectInterruptedByContext(t *testing.T) {
	reg := NewRegistry()
	arp := arptable.New()
	localIP := netaddr.IPv4From4([4]byte{10, 0, 0, 1})
	peerIP := netaddr.IPv4From4([4]byte{10, 0, 0, 2})
	fake := adapter.NewFake(netaddr.MAC{1}, localIP)
	sock := NewTCPSocket(reg, arp)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sock.Connect(ctx, fake, localIP, peerIP, 80)
	require.ErrorIs(t, err, ErrIntr)
}

func TestTCPHandleSegmentDropsOnAckMismatch(t *testing.T) {
	reg := NewRegistry()
	arp := arptable.New()
	sock := NewTCPSocket(reg, arp)
	sock.mu.Lock()
	sock.state = Established
	sock.sequenceNumber = 42
	sock.mu.Unlock()

	sock.HandleSegment(1, 999, frame.TCPFlagAck, []byte("ignored"))
	require.Equal(t, Established, sock.State())
}
