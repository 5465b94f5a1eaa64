package netaddr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksumFoldsToZeroWhenAppended(t *testing.T) {
	b := []byte{0x00, 0x01, 0xf2, 0x03, 0xf4, 0xf5, 0xf6, 0xf7}
	sum := Checksum(b)
	full := append(append([]byte{}, b...), byte(sum>>8), byte(sum))
	require.Equal(t, uint16(0), Checksum(full))
}

func TestChecksumOddLength(t *testing.T) {
	b := []byte{0xff, 0x00, 0x01}
	sum := Checksum(b)
	full := append(append([]byte{}, b...), byte(sum>>8), byte(sum))
	require.Equal(t, uint16(0xff), Checksum(full))
}

func TestChecksumPartsMatchesConcatenation(t *testing.T) {
	a := []byte{0x12, 0x34, 0x56}
	b := []byte{0x78, 0x9a, 0xbc, 0xde}
	require.Equal(t, Checksum(append(append([]byte{}, a...), b...)), ChecksumParts(a, b))
}

func TestMACString(t *testing.T) {
	m := MAC{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	require.Equal(t, "de:ad:be:ef:00:01", m.String())
}

func TestIPv4IsUnspecified(t *testing.T) {
	require.True(t, Unspecified.IsUnspecified())
	require.False(t, IPv4From4([4]byte{10, 0, 0, 1}).IsUnspecified())
}

func TestTupleIsMapKey(t *testing.T) {
	a := Tuple{LocalAddr: IPv4From4([4]byte{10, 0, 0, 1}), LocalPort: 1234, PeerAddr: IPv4From4([4]byte{10, 0, 0, 2}), PeerPort: 80}
	b := a
	m := map[Tuple]int{a: 1}
	require.Equal(t, 1, m[b])
}
