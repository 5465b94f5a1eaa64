package frame

import (
	"encoding/binary"

	"github.com/abyesilyurt/netkernel/pkg/netaddr"
)

// ICMPHeaderLen is the size of the fixed ICMPv4 header (type, code,
// checksum); ICMPEchoHeaderLen additionally covers identifier and sequence
// number, per RFC 792.
const (
	ICMPHeaderLen = 4
	ICMPEchoHeaderLen = 8
)

type ICMPType uint8

const (
	ICMPTypeEchoReply   ICMPType = 0
	ICMPTypeEchoRequest ICMPType = 8
)

// ICMP is a non-owning view over an ICMPv4 message.
type ICMP struct {
	b []byte
}

func ParseICMP(b []byte) (ICMP, error) {
	if len(b) < ICMPHeaderLen {
		return ICMP{}, ErrTooShort
	}
	return ICMP{b: b}, nil
}

func (i ICMP) Type() ICMPType    { return ICMPType(i.b[0]) }
func (i ICMP) Code() uint8       { return i.b[1] }
func (i ICMP) Checksum() uint16  { return binary.BigEndian.Uint16(i.b[2:4]) }
func (i ICMP) Payload() []byte   { return i.b[ICMPHeaderLen:] }
func (i ICMP) Raw() []byte       { return i.b }

// ParseICMPEcho re-validates the buffer is long enough to hold an echo
// header (type/code/checksum + identifier + sequence number) before
// exposing those two extra fields.
func ParseICMPEcho(b []byte) (ICMP, error) {
	if len(b) < ICMPEchoHeaderLen {
		return ICMP{}, ErrTooShort
	}
	return ICMP{b: b}, nil
}

func (i ICMP) Identifier() uint16     { return binary.BigEndian.Uint16(i.b[4:6]) }
func (i ICMP) SequenceNumber() uint16 { return binary.BigEndian.Uint16(i.b[6:8]) }
func (i ICMP) EchoPayload() []byte    { return i.b[ICMPEchoHeaderLen:] }

// BuildICMPEchoReply mirrors an EchoRequest's identifier, sequence number
// and payload back with type flipped to EchoReply and a freshly computed
// checksum.
func BuildICMPEchoReply(request ICMP) []byte {
	b := make([]byte, len(request.Raw()))
	b[0] = byte(ICMPTypeEchoReply)
	b[1] = 0
	binary.BigEndian.PutUint16(b[2:4], 0)
	binary.BigEndian.PutUint16(b[4:6], request.Identifier())
	binary.BigEndian.PutUint16(b[6:8], request.SequenceNumber())
	copy(b[ICMPEchoHeaderLen:], request.EchoPayload())
	binary.BigEndian.PutUint16(b[2:4], netaddr.Checksum(b))
	return b
}
