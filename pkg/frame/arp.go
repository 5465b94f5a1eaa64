package frame

import (
	"encoding/binary"

	"github.com/abyesilyurt/netkernel/pkg/netaddr"
)

// ARPHeaderLen is the size of an Ethernet/IPv4 ARP packet (RFC 826).
const ARPHeaderLen = 28

// ARPOperation is the ARP opcode.
type ARPOperation uint16

const (
	ARPRequest  ARPOperation = 1
	ARPResponse ARPOperation = 2
)

// ARP is a non-owning view over an ARP packet restricted to Ethernet
// hardware addresses and IPv4 protocol addresses -- the only combination
// this stack handles; any other combination is rejected by Validate.
type ARP struct {
	b []byte
}

// ParseARP validates b is at least ARPHeaderLen bytes and returns a view
// over it.
func ParseARP(b []byte) (ARP, error) {
	if len(b) < ARPHeaderLen {
		return ARP{}, ErrTooShort
	}
	return ARP{b: b}, nil
}

// Validate reports whether the packet declares Ethernet hardware addresses
// and IPv4 protocol addresses: hardware_type=1, hw_addr_len=6,
// protocol_type=IPv4, proto_addr_len=4.
func (a ARP) Validate() bool {
	return a.HardwareType() == 1 && a.HardwareAddressLength() == 6 &&
		a.ProtocolType() == EtherTypeIPv4 && a.ProtocolAddressLength() == 4
}

func (a ARP) HardwareType() uint16          { return binary.BigEndian.Uint16(a.b[0:2]) }
func (a ARP) ProtocolType() EtherType        { return EtherType(binary.BigEndian.Uint16(a.b[2:4])) }
func (a ARP) HardwareAddressLength() uint8   { return a.b[4] }
func (a ARP) ProtocolAddressLength() uint8   { return a.b[5] }
func (a ARP) Operation() ARPOperation        { return ARPOperation(binary.BigEndian.Uint16(a.b[6:8])) }

func (a ARP) SenderHardwareAddress() netaddr.MAC {
	var m netaddr.MAC
	copy(m[:], a.b[8:14])
	return m
}

func (a ARP) SenderProtocolAddress() netaddr.IPv4 {
	var ip netaddr.IPv4
	copy(ip[:], a.b[14:18])
	return ip
}

func (a ARP) TargetHardwareAddress() netaddr.MAC {
	var m netaddr.MAC
	copy(m[:], a.b[18:24])
	return m
}

func (a ARP) TargetProtocolAddress() netaddr.IPv4 {
	var ip netaddr.IPv4
	copy(ip[:], a.b[24:28])
	return ip
}

// BuildARP encodes an ARP packet into a freshly allocated, zeroed
// ARPHeaderLen-byte buffer.
func BuildARP(op ARPOperation, senderHW netaddr.MAC, senderIP netaddr.IPv4, targetHW netaddr.MAC, targetIP netaddr.IPv4) []byte {
	b := make([]byte, ARPHeaderLen)
	binary.BigEndian.PutUint16(b[0:2], 1)
	binary.BigEndian.PutUint16(b[2:4], uint16(EtherTypeIPv4))
	b[4] = 6
	b[5] = 4
	binary.BigEndian.PutUint16(b[6:8], uint16(op))
	copy(b[8:14], senderHW[:])
	copy(b[14:18], senderIP[:])
	copy(b[18:24], targetHW[:])
	copy(b[24:28], targetIP[:])
	return b
}
