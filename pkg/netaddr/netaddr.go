// Package netaddr defines the link- and network-layer address types and the
// Internet checksum primitive shared by every view in pkg/frame and every
// socket in pkg/socket.
package netaddr

import (
	"encoding/binary"
	"fmt"
)

// MAC is a 6-byte Ethernet hardware address.
type MAC [6]byte

// Zero is the unspecified MAC address, used when an adapter should resolve
// the next hop itself (ARP or a static route) rather than the caller.
var Zero MAC

// Broadcast is the Ethernet broadcast address.
var Broadcast = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsZero reports whether m is the unspecified MAC address.
func (m MAC) IsZero() bool { return m == Zero }

// IPv4 is a 4-byte IPv4 address.
type IPv4 [4]byte

// Unspecified is the "let the route decide" address (0.0.0.0).
var Unspecified IPv4

func IPv4From4(b [4]byte) IPv4 { return IPv4(b) }

func (a IPv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// IsUnspecified reports whether a is 0.0.0.0.
func (a IPv4) IsUnspecified() bool { return a == Unspecified }

// Tuple is the 4-tuple identifying a TCP connection: (local addr, local
// port, peer addr, peer port). It is hashable and totally equatable, so it
// is usable directly as a map key -- the primary key of the TCP registry.
type Tuple struct {
	LocalAddr  IPv4
	LocalPort  uint16
	PeerAddr   IPv4
	PeerPort   uint16
}

func (t Tuple) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d", t.LocalAddr, t.LocalPort, t.PeerAddr, t.PeerPort)
}

// Checksum computes the Internet checksum (RFC 1071): the one's-complement
// of the one's-complement sum of 16-bit big-endian words over b, with the
// final byte treated as the high 8 bits of a 16-bit word on odd length.
func Checksum(b []byte) uint16 {
	return finish(partial(0, b))
}

// ChecksumParts folds the Internet checksum over several discontiguous
// regions (e.g. pseudo-header + header-with-zeroed-checksum + payload)
// without requiring the caller to concatenate them first.
func ChecksumParts(parts ...[]byte) uint16 {
	var acc uint32
	// pending holds an odd trailing byte of an earlier part until the first
	// byte of the next non-empty part completes its 16-bit word.
	var pending []byte
	for _, p := range parts {
		if len(pending) == 1 && len(p) > 0 {
			acc = partial(acc, []byte{pending[0], p[0]})
			pending, p = nil, p[1:]
		}
		if len(p)%2 == 1 {
			pending, p = p[len(p)-1:], p[:len(p)-1]
		}
		acc = partial(acc, p)
	}
	return finish(partial(acc, pending))
}

func partial(acc uint32, b []byte) uint32 {
	n := len(b)
	i := 0
	for ; i+1 < n; i += 2 {
		acc += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if i < n {
		acc += uint32(b[i]) << 8
	}
	for acc > 0xffff {
		acc = (acc >> 16) + (acc & 0xffff)
	}
	return acc
}

func finish(acc uint32) uint16 {
	for acc > 0xffff {
		acc = (acc >> 16) + (acc & 0xffff)
	}
	return ^uint16(acc)
}
