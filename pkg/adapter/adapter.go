// Package adapter defines the network adapter contract and ships two
// concrete adapters: an in-process Loopback and a UDPTunnel standing in
// for the E1000 hardware adapter, carrying whole Ethernet frames as UDP
// datagrams over a point-to-point socket.
package adapter

import (
	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
	"github.com/sirupsen/logrus"
)

// Adapter is the abstract collaborator: something with a MAC and
// (optionally) an IPv4 identity, an RX queue the network task drains, and
// TX entry points for ARP frames and IPv4 packets. The adapter owns MAC
// resolution when destMAC is netaddr.Zero: it may consult an ARP table or
// a static route.
type Adapter interface {
	MACAddress() netaddr.MAC
	IPv4Address() netaddr.IPv4

	// HasQueuedPackets and DequeuePacket give the network task's polling
	// step a synchronous non-blocking check.
	HasQueuedPackets() bool
	DequeuePacket() ([]byte, bool)

	// Packets is the channel-based form of the same RX queue, used by the
	// network task's idle-wait: a receive on this channel is the
	// Go-idiomatic block_until(pred), re-evaluated every time any
	// adapter's channel becomes ready. Closed when the adapter is closed.
	Packets() <-chan []byte

	Send(destMAC netaddr.MAC, arpPacket []byte) error
	SendIPv4(destMAC netaddr.MAC, destIP netaddr.IPv4, protocol frame.IPProtocol, payload []byte) error

	Close() error
}

// queue is the shared RX-queue implementation both concrete adapters embed:
// a single buffered channel that is simultaneously the data path (Packets)
// and, via len(ch), the has_queued_packets/dequeue_packet pair.
type queue struct {
	ch chan []byte
}

func newQueue(capacity int) queue {
	return queue{ch: make(chan []byte, capacity)}
}

func (q queue) HasQueuedPackets() bool { return len(q.ch) > 0 }

func (q queue) DequeuePacket() ([]byte, bool) {
	select {
	case b := <-q.ch:
		return b, true
	default:
		return nil, false
	}
}

func (q queue) Packets() <-chan []byte { return q.ch }

func (q queue) enqueue(b []byte) {
	select {
	case q.ch <- b:
	default:
		// Backpressure: a full buffered channel here means the simulated
		// "device" drops the frame, mirroring what a real NIC's ring buffer
		// does under saturation.
		logrus.WithField("adapter", "queue").Warn("rx queue full, dropping frame")
	}
}
