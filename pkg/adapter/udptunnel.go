package adapter

import (
	"net"

	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// udpTunnelQueueCapacity bounds the hardware adapter's RX queue.
const udpTunnelQueueCapacity = 1024

// udpTunnelMTU bounds a single read from the underlying UDP socket; whole
// Ethernet frames are expected to fit in one UDP datagram, mirroring the
// teacher's cmd/vrouter transport.
const udpTunnelMTU = 65536

// UDPTunnel stands in for the E1000 hardware adapter: it carries whole
// Ethernet frames as UDP datagrams to a single configured peer over a
// net.ListenUDP socket, with a goroutine pumping ReadFromUDP into the
// shared RX queue.
type UDPTunnel struct {
	queue
	mac     netaddr.MAC
	ip      netaddr.IPv4
	peerMAC netaddr.MAC
	conn    *net.UDPConn
	peer    *net.UDPAddr

	log *logrus.Entry
}

// NewUDPTunnel binds a UDP socket at localAddr and ships/accepts frames
// to/from peerAddr. mac/ip are this adapter's own identities; peerMAC is
// used as the destination MAC when a caller passes netaddr.Zero, since a
// point-to-point tunnel has exactly one possible next hop.
func NewUDPTunnel(localAddr, peerAddr string, mac netaddr.MAC, ip netaddr.IPv4, peerMAC netaddr.MAC) (*UDPTunnel, error) {
	laddr, err := net.ResolveUDPAddr("udp4", localAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve local udp address %q", localAddr)
	}
	raddr, err := net.ResolveUDPAddr("udp4", peerAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve peer udp address %q", peerAddr)
	}
	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen udp %q", localAddr)
	}

	t := &UDPTunnel{
		queue:   newQueue(udpTunnelQueueCapacity),
		mac:     mac,
		ip:      ip,
		peerMAC: peerMAC,
		conn:    conn,
		peer:    raddr,
		log:     logrus.WithField("adapter", "udptunnel").WithField("ip", ip.String()),
	}
	go t.pump()
	return t, nil
}

func (t *UDPTunnel) pump() {
	buf := make([]byte, udpTunnelMTU)
	for {
		n, _, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			t.log.WithError(err).Debug("udp tunnel closed, rx pump exiting")
			return
		}
		frameCopy := make([]byte, n)
		copy(frameCopy, buf[:n])
		t.enqueue(frameCopy)
	}
}

func (t *UDPTunnel) MACAddress() netaddr.MAC   { return t.mac }
func (t *UDPTunnel) IPv4Address() netaddr.IPv4 { return t.ip }

func (t *UDPTunnel) Send(destMAC netaddr.MAC, arpPacket []byte) error {
	if destMAC.IsZero() {
		destMAC = t.peerMAC
	}
	b := make([]byte, frame.EthernetHeaderLen+len(arpPacket))
	frame.BuildEthernet(b, destMAC, t.mac, frame.EtherTypeARP)
	copy(b[frame.EthernetHeaderLen:], arpPacket)
	return t.write(b)
}

func (t *UDPTunnel) SendIPv4(destMAC netaddr.MAC, destIP netaddr.IPv4, protocol frame.IPProtocol, payload []byte) error {
	if destMAC.IsZero() {
		destMAC = t.peerMAC
	}
	ipPacket := frame.BuildIPv4(0, 64, protocol, t.ip, destIP, payload)
	b := make([]byte, frame.EthernetHeaderLen+len(ipPacket))
	frame.BuildEthernet(b, destMAC, t.mac, frame.EtherTypeIPv4)
	copy(b[frame.EthernetHeaderLen:], ipPacket)
	return t.write(b)
}

func (t *UDPTunnel) write(b []byte) error {
	_, err := t.conn.WriteToUDP(b, t.peer)
	if err != nil {
		return errors.Wrap(err, "udp tunnel write")
	}
	return nil
}

func (t *UDPTunnel) Close() error {
	err := t.conn.Close()
	close(t.queue.ch)
	return err
}
