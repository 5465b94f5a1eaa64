package netstack

import (
	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
	"github.com/abyesilyurt/netkernel/pkg/socket"
)

// handleARP handles an inbound ARP frame: the sender is always learned
// into the ARP table, and a request addressed to any of our adapters'
// IPv4 addresses gets an immediate reply from that owning adapter, even if
// it arrived on a different adapter's wire. Replies are only learned,
// never answered.
func (s *Stack) handleARP(eth frame.Ethernet) {
	arp, err := frame.ParseARP(eth.Payload())
	if err != nil || !arp.Validate() {
		s.log.Debug("dropping malformed or unsupported arp packet")
		return
	}

	s.arp.Set(arp.SenderProtocolAddress(), arp.SenderHardwareAddress())

	if arp.Operation() != frame.ARPRequest {
		return
	}
	owner, ok := s.adapterOwning(arp.TargetProtocolAddress())
	if !ok {
		return
	}
	reply := frame.BuildARP(frame.ARPResponse, owner.MACAddress(), owner.IPv4Address(), arp.SenderHardwareAddress(), arp.SenderProtocolAddress())
	if err := owner.Send(arp.SenderHardwareAddress(), reply); err != nil {
		s.log.WithError(err).Warn("arp reply send failed")
	}
}

// handleIPv4 demuxes on the IPv4 protocol field.
func (s *Stack) handleIPv4(eth frame.Ethernet) {
	ip, err := frame.ParseIPv4(eth.Payload())
	if err != nil {
		s.log.WithError(err).Debug("dropping malformed ipv4 packet")
		return
	}
	switch ip.Protocol() {
	case frame.ProtoICMP:
		s.handleICMP(ip)
	case frame.ProtoUDP:
		s.handleUDP(ip)
	case frame.ProtoTCP:
		s.handleTCP(ip)
	default:
		s.log.WithField("protocol", ip.Protocol()).Debug("dropping ipv4 packet of unhandled protocol")
	}
}

// handleICMP answers echo requests addressed to one of our adapters
// directly, from the owning adapter, and fans the whole IPv4 packet out to
// every registered ICMP socket regardless of type, code, or destination.
func (s *Stack) handleICMP(ip frame.IPv4) {
	if icmp, err := frame.ParseICMPEcho(ip.Payload()); err == nil && icmp.Type() == frame.ICMPTypeEchoRequest {
		if owner, ok := s.adapterOwning(ip.Destination()); ok {
			reply := frame.BuildICMPEchoReply(icmp)
			destMAC, _ := s.arp.Lookup(ip.Source())
			if err := owner.SendIPv4(destMAC, ip.Source(), frame.ProtoICMP, reply); err != nil {
				s.log.WithError(err).Warn("icmp echo reply send failed")
			}
		}
	}

	raw := append([]byte(nil), ip.Raw()...)
	s.reg.ICMPFanout(func(sock *socket.IPv4Socket) {
		sock.DidReceive(ip.Source(), 0, raw)
	})
}

// handleUDP delivers to the socket bound to the destination port, if any.
// Datagrams addressed to an address none of our adapters own, and unbound
// ports, are silently dropped.
func (s *Stack) handleUDP(ip frame.IPv4) {
	if _, ok := s.adapterOwning(ip.Destination()); !ok {
		return
	}
	udp, err := frame.ParseUDP(ip.Payload())
	if err != nil {
		s.log.WithError(err).Debug("dropping malformed udp datagram")
		return
	}
	sock, ok := s.reg.FindUDP(udp.DestinationPort())
	if !ok {
		return
	}
	sock.DidReceive(ip.Source(), udp.SourcePort(), append([]byte(nil), udp.Payload()...))
}

// handleTCP validates the checksum, looks the segment up by exact 4-tuple,
// and dispatches it into the matching socket's state machine. A tuple with
// no registered socket is dropped: this stack never accepts incoming
// connections.
func (s *Stack) handleTCP(ip frame.IPv4) {
	segment := ip.Payload()
	tcp, err := frame.ParseTCP(segment)
	if err != nil {
		s.log.WithError(err).Debug("dropping malformed tcp segment")
		return
	}

	payloadSize := len(segment) - frame.TCPHeaderLen
	if payloadSize < 0 {
		return
	}
	if want := frame.ComputeTCPChecksum(ip.Destination(), ip.Source(), segment, payloadSize); want != tcp.Checksum() {
		s.log.WithFields(map[string]interface{}{
			"want": want, "got": tcp.Checksum(),
		}).Warn("dropping tcp segment with bad checksum")
		return
	}

	tuple := netaddr.Tuple{
		LocalAddr: ip.Destination(), LocalPort: tcp.DestinationPort(),
		PeerAddr: ip.Source(), PeerPort: tcp.SourcePort(),
	}
	sock, ok := s.reg.FindTCP(tuple)
	if !ok {
		return
	}
	sock.HandleSegment(tcp.SequenceNumber(), tcp.AckNumber(), tcp.Flags(), append([]byte(nil), tcp.Payload()...))
}
