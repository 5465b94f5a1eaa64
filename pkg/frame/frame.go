// Package frame implements zero-copy, length-checked views over the wire
// formats this stack understands: Ethernet II, ARP (RFC 826), IPv4 (RFC 791),
// ICMPv4 echo (RFC 792), UDP (RFC 768) and the 20-byte fixed TCP header
// (RFC 793 subset, no options). Every view borrows from the caller's buffer;
// none of them copy or own memory. Parsing a view never panics: a buffer
// shorter than the declared header is rejected with ErrTooShort before any
// field is read, and every inner protocol re-validates its own declared
// length against what remains of the buffer.
package frame

import "errors"

// ErrTooShort is returned when a buffer is smaller than the header it is
// being parsed as, or a declared inner length exceeds what remains.
var ErrTooShort = errors.New("frame: buffer too short")

// EtherType identifies the payload carried by an Ethernet frame.
type EtherType uint16

const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
)

// IPProtocol identifies the payload carried by an IPv4 packet.
type IPProtocol uint8

const (
	ProtoICMP IPProtocol = 1
	ProtoTCP  IPProtocol = 6
	ProtoUDP  IPProtocol = 17
)
