package adapter

import (
	"sync"

	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
)

// SentIPv4 records one SendIPv4 call observed by a Fake adapter.
type SentIPv4 struct {
	DestMAC  netaddr.MAC
	DestIP   netaddr.IPv4
	Protocol frame.IPProtocol
	Payload  []byte
}

// SentARP records one Send call observed by a Fake adapter.
type SentARP struct {
	DestMAC netaddr.MAC
	Packet  []byte
}

// Fake is an in-memory Adapter for deterministic frame-level tests: it
// never touches a real socket, and every outgoing call is recorded for
// assertions instead of transmitted.
type Fake struct {
	queue
	mac netaddr.MAC
	ip  netaddr.IPv4

	mu        sync.Mutex
	SentARPs  []SentARP
	SentIPv4s []SentIPv4
}

// NewFake returns a Fake adapter with the given identities.
func NewFake(mac netaddr.MAC, ip netaddr.IPv4) *Fake {
	return &Fake{queue: newQueue(64), mac: mac, ip: ip}
}

func (f *Fake) MACAddress() netaddr.MAC   { return f.mac }
func (f *Fake) IPv4Address() netaddr.IPv4 { return f.ip }

// Deliver pushes a raw Ethernet frame onto the adapter's RX queue, as if it
// had just arrived on the wire.
func (f *Fake) Deliver(ethernetFrame []byte) {
	f.enqueue(ethernetFrame)
}

func (f *Fake) Send(destMAC netaddr.MAC, arpPacket []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(arpPacket))
	copy(cp, arpPacket)
	f.SentARPs = append(f.SentARPs, SentARP{DestMAC: destMAC, Packet: cp})
	return nil
}

func (f *Fake) SendIPv4(destMAC netaddr.MAC, destIP netaddr.IPv4, protocol frame.IPProtocol, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.SentIPv4s = append(f.SentIPv4s, SentIPv4{DestMAC: destMAC, DestIP: destIP, Protocol: protocol, Payload: cp})
	return nil
}

// LastIPv4 returns the most recent SendIPv4 call, or false if none.
func (f *Fake) LastIPv4() (SentIPv4, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.SentIPv4s) == 0 {
		return SentIPv4{}, false
	}
	return f.SentIPv4s[len(f.SentIPv4s)-1], true
}

func (f *Fake) Close() error {
	close(f.queue.ch)
	return nil
}
