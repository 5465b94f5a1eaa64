package adapter

import (
	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
)

// loopbackQueueCapacity bounds the loopback pseudo-adapter's RX queue; it
// only ever holds frames this same process just sent to itself.
const loopbackQueueCapacity = 256

// Loopback is the loopback pseudo-adapter: frames sent to it are
// immediately re-framed as Ethernet and pushed onto its own RX queue, so a
// packet addressed to the loopback IPv4 address is delivered without ever
// leaving the process. The network task prefers draining Loopback before
// any hardware adapter.
type Loopback struct {
	queue
	mac netaddr.MAC
	ip  netaddr.IPv4
}

// NewLoopback returns a Loopback adapter bound to ip (conventionally
// 127.0.0.1) with an all-zero MAC -- loopback frames never traverse a real
// link, so the MAC is a marker rather than a resolvable address.
func NewLoopback(ip netaddr.IPv4) *Loopback {
	return &Loopback{
		queue: newQueue(loopbackQueueCapacity),
		mac:   netaddr.Zero,
		ip:    ip,
	}
}

func (l *Loopback) MACAddress() netaddr.MAC   { return l.mac }
func (l *Loopback) IPv4Address() netaddr.IPv4 { return l.ip }

// Send wraps an ARP packet in an Ethernet frame addressed to destMAC and
// enqueues it directly on this adapter's own RX queue.
func (l *Loopback) Send(destMAC netaddr.MAC, arpPacket []byte) error {
	b := make([]byte, frame.EthernetHeaderLen+len(arpPacket))
	frame.BuildEthernet(b, destMAC, l.mac, frame.EtherTypeARP)
	copy(b[frame.EthernetHeaderLen:], arpPacket)
	l.enqueue(b)
	return nil
}

// SendIPv4 builds an IPv4 packet over payload and enqueues it as an
// Ethernet frame addressed to ourselves.
func (l *Loopback) SendIPv4(destMAC netaddr.MAC, destIP netaddr.IPv4, protocol frame.IPProtocol, payload []byte) error {
	ipPacket := frame.BuildIPv4(0, 64, protocol, l.ip, destIP, payload)
	b := make([]byte, frame.EthernetHeaderLen+len(ipPacket))
	frame.BuildEthernet(b, l.mac, l.mac, frame.EtherTypeIPv4)
	copy(b[frame.EthernetHeaderLen:], ipPacket)
	l.enqueue(b)
	return nil
}

func (l *Loopback) Close() error {
	close(l.queue.ch)
	return nil
}
