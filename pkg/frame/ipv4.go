package frame

import (
	"encoding/binary"

	"github.com/abyesilyurt/netkernel/pkg/netaddr"
)

// IPv4HeaderLen is the size of an IPv4 header with no options (RFC 791).
const IPv4HeaderLen = 20

// IPv4 is a non-owning view over an IPv4 packet. Options are not parsed:
// HeaderLen reads IHL from the packet and Payload skips past any options.
type IPv4 struct {
	b []byte
}

// ParseIPv4 validates b is at least IPv4HeaderLen bytes and that the
// declared TotalLength is at least IPv4HeaderLen and does not exceed
// len(b), and returns a view over b truncated to TotalLength.
func ParseIPv4(b []byte) (IPv4, error) {
	if len(b) < IPv4HeaderLen {
		return IPv4{}, ErrTooShort
	}
	v := IPv4{b: b}
	if tl := int(v.TotalLength()); tl < IPv4HeaderLen || tl > len(b) {
		return IPv4{}, ErrTooShort
	}
	return IPv4{b: b[:v.TotalLength()]}, nil
}

func (p IPv4) VersionAndIHL() uint8   { return p.b[0] }
func (p IPv4) TOS() uint8             { return p.b[1] }
func (p IPv4) TotalLength() uint16    { return binary.BigEndian.Uint16(p.b[2:4]) }
func (p IPv4) ID() uint16             { return binary.BigEndian.Uint16(p.b[4:6]) }
func (p IPv4) FlagsAndFragOffset() uint16 { return binary.BigEndian.Uint16(p.b[6:8]) }
func (p IPv4) TTL() uint8             { return p.b[8] }
func (p IPv4) Protocol() IPProtocol   { return IPProtocol(p.b[9]) }
func (p IPv4) Checksum() uint16       { return binary.BigEndian.Uint16(p.b[10:12]) }

func (p IPv4) Source() netaddr.IPv4 {
	var a netaddr.IPv4
	copy(a[:], p.b[12:16])
	return a
}

func (p IPv4) Destination() netaddr.IPv4 {
	var a netaddr.IPv4
	copy(a[:], p.b[16:20])
	return a
}

func (p IPv4) HeaderLen() int {
	return int(p.VersionAndIHL()&0x0f) * 4
}

// PayloadSize returns the number of bytes following the header (IHL
// words), per TotalLength. It is 0, never negative, when IHL claims more
// bytes than the packet holds.
func (p IPv4) PayloadSize() int {
	hl := p.HeaderLen()
	if hl > len(p.b) {
		return 0
	}
	return len(p.b) - hl
}

// Payload returns the bytes after the header, aliasing the underlying
// buffer.
func (p IPv4) Payload() []byte {
	hl := p.HeaderLen()
	if hl > len(p.b) {
		return nil
	}
	return p.b[hl:]
}

// Raw returns the full IPv4 packet (header + payload) as stored, suitable
// for the copy fanned out to ICMP sockets.
func (p IPv4) Raw() []byte { return p.b }

// BuildIPv4 encodes a 20-byte IPv4 header (no options) followed by payload
// into a freshly allocated buffer, with the header checksum computed and
// filled in.
func BuildIPv4(id uint16, ttl uint8, protocol IPProtocol, src, dst netaddr.IPv4, payload []byte) []byte {
	b := make([]byte, IPv4HeaderLen+len(payload))
	b[0] = 0x45 // version 4, IHL 5
	b[1] = 0
	binary.BigEndian.PutUint16(b[2:4], uint16(len(b)))
	binary.BigEndian.PutUint16(b[4:6], id)
	binary.BigEndian.PutUint16(b[6:8], 0)
	b[8] = ttl
	b[9] = byte(protocol)
	binary.BigEndian.PutUint16(b[10:12], 0)
	copy(b[12:16], src[:])
	copy(b[16:20], dst[:])
	copy(b[IPv4HeaderLen:], payload)
	binary.BigEndian.PutUint16(b[10:12], netaddr.Checksum(b[:IPv4HeaderLen]))
	return b
}
