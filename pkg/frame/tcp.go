package frame

import (
	"encoding/binary"

	"github.com/abyesilyurt/netkernel/pkg/netaddr"
	"github.com/google/netstack/tcpip/header"
)

// TCPHeaderLen is the size of the fixed (no-options) TCP header this stack
// emits and expects; DataOffset is always 5 words.
const TCPHeaderLen = header.TCPMinimumSize

const (
	TCPFlagFin = header.TCPFlagFin
	TCPFlagSyn = header.TCPFlagSyn
	TCPFlagRst = header.TCPFlagRst
	TCPFlagAck = header.TCPFlagAck
)

// TCP is a non-owning view over a TCP segment, backed by
// google/netstack's header.TCP for field access and encoding -- the same
// library used elsewhere in this codebase's ancestry for the fixed TCP
// header.
type TCP struct {
	h header.TCP
}

func ParseTCP(b []byte) (TCP, error) {
	if len(b) < TCPHeaderLen {
		return TCP{}, ErrTooShort
	}
	return TCP{h: header.TCP(b)}, nil
}

func (t TCP) SourcePort() uint16      { return t.h.SourcePort() }
func (t TCP) DestinationPort() uint16 { return t.h.DestinationPort() }
func (t TCP) SequenceNumber() uint32  { return t.h.SequenceNumber() }
func (t TCP) AckNumber() uint32       { return t.h.AckNumber() }
func (t TCP) DataOffset() int         { return int(t.h.DataOffset()) }
func (t TCP) Flags() uint8            { return t.h.Flags() }
func (t TCP) WindowSize() uint16      { return t.h.WindowSize() }
func (t TCP) Checksum() uint16        { return t.h.Checksum() }
func (t TCP) HasSYN() bool            { return t.Flags()&TCPFlagSyn != 0 }
func (t TCP) HasACK() bool            { return t.Flags()&TCPFlagAck != 0 }
func (t TCP) HasFIN() bool            { return t.Flags()&TCPFlagFin != 0 }
func (t TCP) HasRST() bool            { return t.Flags()&TCPFlagRst != 0 }

// Payload returns the bytes after the (option-less) header, bounded by
// what the caller passed to ParseTCP -- callers must slice to the IPv4
// payload size themselves before calling ParseTCP so this cannot read past
// the segment into unrelated buffer memory.
func (t TCP) Payload() []byte { return t.h[TCPHeaderLen:] }

// BuildTCPSegment encodes a zeroed 20-byte TCP header followed by payload
// into a freshly allocated buffer, with the checksum computed over the
// pseudo-header + header + payload, mirroring
// TCPSocket::compute_tcp_checksum.
func BuildTCPSegment(srcPort, dstPort uint16, seq, ack uint32, flags uint8, window uint16, localAddr, peerAddr netaddr.IPv4, payload []byte) []byte {
	b := make([]byte, TCPHeaderLen+len(payload))
	tcp := header.TCP(b)
	tcp.Encode(&header.TCPFields{
		SrcPort:    srcPort,
		DstPort:    dstPort,
		SeqNum:     seq,
		AckNum:     ack,
		DataOffset: TCPHeaderLen,
		Flags:      flags,
		WindowSize: window,
	})
	copy(b[TCPHeaderLen:], payload)
	tcp.SetChecksum(ComputeTCPChecksum(localAddr, peerAddr, b, len(payload)))
	return b
}

// ComputeTCPChecksum computes the Internet checksum over the 12-byte TCP
// pseudo-header (src, dst, zero, protocol=6, big-endian TCP length), the
// TCP header with its checksum field treated as zero, and the payload.
// Passing a segment whose checksum field is already populated returns the
// value that, substituted in, would fold the whole checksum to zero --
// making this function usable both to compute an outgoing checksum and to
// verify an incoming one.
func ComputeTCPChecksum(localAddr, peerAddr netaddr.IPv4, segment []byte, payloadSize int) uint16 {
	var pseudo [12]byte
	copy(pseudo[0:4], localAddr[:])
	copy(pseudo[4:8], peerAddr[:])
	pseudo[8] = 0
	pseudo[9] = byte(ProtoTCP)
	binary.BigEndian.PutUint16(pseudo[10:12], uint16(TCPHeaderLen+payloadSize))

	headerLen := len(segment) - payloadSize
	hdrCopy := make([]byte, headerLen)
	copy(hdrCopy, segment[:headerLen])
	hdrCopy[16] = 0
	hdrCopy[17] = 0

	return netaddr.ChecksumParts(pseudo[:], hdrCopy, segment[headerLen:])
}
