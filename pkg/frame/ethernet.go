package frame

import (
	"encoding/binary"

	"github.com/abyesilyurt/netkernel/pkg/netaddr"
)

// EthernetHeaderLen is the size of a (VLAN-less) Ethernet II header.
const EthernetHeaderLen = 14

// Ethernet is a non-owning view over an Ethernet II frame: 6 bytes
// destination MAC, 6 bytes source MAC, 2 bytes EtherType, followed by the
// payload. It is the first view the network task constructs over every
// dequeued buffer.
type Ethernet struct {
	b []byte
}

// ParseEthernet validates b is at least EthernetHeaderLen bytes and returns
// a view over it. The returned view aliases b.
func ParseEthernet(b []byte) (Ethernet, error) {
	if len(b) < EthernetHeaderLen {
		return Ethernet{}, ErrTooShort
	}
	return Ethernet{b: b}, nil
}

func (e Ethernet) Destination() netaddr.MAC {
	var m netaddr.MAC
	copy(m[:], e.b[0:6])
	return m
}

func (e Ethernet) Source() netaddr.MAC {
	var m netaddr.MAC
	copy(m[:], e.b[6:12])
	return m
}

func (e Ethernet) Type() EtherType {
	return EtherType(binary.BigEndian.Uint16(e.b[12:14]))
}

// Payload returns everything after the header, aliasing the underlying
// buffer.
func (e Ethernet) Payload() []byte {
	return e.b[EthernetHeaderLen:]
}

// BuildEthernet writes a header into dst (which must be at least
// EthernetHeaderLen long) and returns the number of header bytes written.
func BuildEthernet(dst []byte, destination, source netaddr.MAC, etherType EtherType) int {
	copy(dst[0:6], destination[:])
	copy(dst[6:12], source[:])
	binary.BigEndian.PutUint16(dst[12:14], uint16(etherType))
	return EthernetHeaderLen
}
