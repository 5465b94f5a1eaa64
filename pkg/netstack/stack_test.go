package netstack

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/abyesilyurt/netkernel/pkg/adapter"
	"github.com/abyesilyurt/netkernel/pkg/arptable"
	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
	"github.com/abyesilyurt/netkernel/pkg/socket"
	"github.com/stretchr/testify/require"
)

func ethernetFrame(dst, src netaddr.MAC, etherType frame.EtherType, payload []byte) []byte {
	buf := make([]byte, frame.EthernetHeaderLen+len(payload))
	frame.BuildEthernet(buf, dst, src, etherType)
	copy(buf[frame.EthernetHeaderLen:], payload)
	return buf
}

func buildUDP(srcPort, dstPort uint16, payload []byte) []byte {
	b := make([]byte, frame.UDPHeaderLen+len(payload))
	binary.BigEndian.PutUint16(b[0:2], srcPort)
	binary.BigEndian.PutUint16(b[2:4], dstPort)
	binary.BigEndian.PutUint16(b[4:6], uint16(len(b)))
	copy(b[frame.UDPHeaderLen:], payload)
	return b
}

func newTestStack() (*Stack, *adapter.Fake) {
	reg := socket.NewRegistry()
	arp := arptable.New()
	localMAC := netaddr.MAC{1, 1, 1, 1, 1, 1}
	localIP := netaddr.IPv4From4([4]byte{10, 0, 0, 1})
	fake := adapter.NewFake(localMAC, localIP)
	return New(reg, arp, fake), fake
}

func TestStackHandlesARPRequestForOwnAddress(t *testing.T) {
	stack, fake := newTestStack()

	peerMAC := netaddr.MAC{2, 2, 2, 2, 2, 2}
	peerIP := netaddr.IPv4From4([4]byte{10, 0, 0, 2})
	req := frame.BuildARP(frame.ARPRequest, peerMAC, peerIP, netaddr.MAC{}, fake.IPv4Address())
	fake.Deliver(ethernetFrame(fake.MACAddress(), peerMAC, frame.EtherTypeARP, req))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go stack.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	mac, ok := stack.ARPTable().Lookup(peerIP)
	require.True(t, ok)
	require.Equal(t, peerMAC, mac)

	require.NotEmpty(t, fake.SentARPs)
	reply, err := frame.ParseARP(fake.SentARPs[len(fake.SentARPs)-1].Packet)
	require.NoError(t, err)
	require.Equal(t, frame.ARPResponse, reply.Operation())
	require.Equal(t, fake.IPv4Address(), reply.SenderProtocolAddress())
}

func TestStackAnswersICMPEcho(t *testing.T) {
	stack, fake := newTestStack()

	peerIP := netaddr.IPv4From4([4]byte{10, 0, 0, 2})
	stack.ARPTable().Set(peerIP, netaddr.MAC{2, 2, 2, 2, 2, 2})

	echoReq := make([]byte, frame.ICMPEchoHeaderLen+4)
	echoReq[0] = byte(frame.ICMPTypeEchoRequest)
	binary.BigEndian.PutUint16(echoReq[4:6], 7)
	binary.BigEndian.PutUint16(echoReq[6:8], 1)
	copy(echoReq[frame.ICMPEchoHeaderLen:], []byte{9, 9, 9, 9})

	ip := frame.BuildIPv4(1, 64, frame.ProtoICMP, peerIP, fake.IPv4Address(), echoReq)
	fake.Deliver(ethernetFrame(fake.MACAddress(), netaddr.MAC{2}, frame.EtherTypeIPv4, ip))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go stack.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	sent, ok := fake.LastIPv4()
	require.True(t, ok)
	require.Equal(t, frame.ProtoICMP, sent.Protocol)
	echo, err := frame.ParseICMPEcho(sent.Payload)
	require.NoError(t, err)
	require.Equal(t, frame.ICMPTypeEchoReply, echo.Type())
	require.Equal(t, uint16(7), echo.Identifier())
}

func TestStackDeliversUDPToBoundSocket(t *testing.T) {
	stack, fake := newTestStack()
	sock := socket.NewUDPSocket(stack.Registry())
	require.NoError(t, stack.Registry().BindUDP(sock, fake.IPv4Address(), 9000))

	peerIP := netaddr.IPv4From4([4]byte{10, 0, 0, 2})
	udp := buildUDP(4000, 9000, []byte("hello"))
	ip := frame.BuildIPv4(1, 64, frame.ProtoUDP, peerIP, fake.IPv4Address(), udp)
	fake.Deliver(ethernetFrame(fake.MACAddress(), netaddr.MAC{2}, frame.EtherTypeIPv4, ip))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go stack.Run(ctx)

	done := make(chan struct{})
	dgram, ok := sock.Recv(done)
	close(done)
	require.True(t, ok)
	require.Equal(t, peerIP, dgram.SourceAddr)
	require.Equal(t, uint16(4000), dgram.SourcePort)
}
