package frame

import "encoding/binary"

// UDPHeaderLen is the size of a UDP header (RFC 768).
const UDPHeaderLen = 8

// UDP is a non-owning view over a UDP datagram.
type UDP struct {
	b []byte
}

func ParseUDP(b []byte) (UDP, error) {
	if len(b) < UDPHeaderLen {
		return UDP{}, ErrTooShort
	}
	if l := int(binary.BigEndian.Uint16(b[4:6])); l < UDPHeaderLen || l > len(b) {
		return UDP{}, ErrTooShort
	}
	return UDP{b: b}, nil
}

func (u UDP) SourcePort() uint16      { return binary.BigEndian.Uint16(u.b[0:2]) }
func (u UDP) DestinationPort() uint16 { return binary.BigEndian.Uint16(u.b[2:4]) }
func (u UDP) Length() uint16          { return binary.BigEndian.Uint16(u.b[4:6]) }
func (u UDP) Checksum() uint16        { return binary.BigEndian.Uint16(u.b[6:8]) }
func (u UDP) Payload() []byte         { return u.b[UDPHeaderLen:] }
