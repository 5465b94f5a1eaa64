package config

import (
	"strings"
	"testing"
	"time"

	"github.com/abyesilyurt/netkernel/pkg/netaddr"
	"github.com/stretchr/testify/require"
)

func TestParseLoopbackAndUDPInterfaces(t *testing.T) {
	const doc = `
# comment
if lo0
lo 10.0.0.1

if eth0
udp 127.0.0.1:5000 127.0.0.1:5001 10.0.0.2
mac 02:00:00:00:00:01
peer-mac 02:00:00:00:00:02

rto-min 100
rto-max 2000
`
	cfg, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, cfg.Interfaces, 2)

	lo := cfg.Interfaces[0]
	require.Equal(t, "lo0", lo.Name)
	require.Equal(t, "lo", lo.Kind)
	require.Equal(t, netaddr.IPv4From4([4]byte{10, 0, 0, 1}), lo.Assigned)

	eth := cfg.Interfaces[1]
	require.Equal(t, "eth0", eth.Name)
	require.Equal(t, "udp", eth.Kind)
	require.Equal(t, "127.0.0.1:5000", eth.ListenUDP)
	require.Equal(t, "127.0.0.1:5001", eth.PeerUDP)
	require.Equal(t, netaddr.IPv4From4([4]byte{10, 0, 0, 2}), eth.Assigned)
	require.Equal(t, netaddr.MAC{2, 0, 0, 0, 0, 1}, eth.MAC)
	require.Equal(t, netaddr.MAC{2, 0, 0, 0, 0, 2}, eth.PeerMAC)

	require.Equal(t, 100*time.Millisecond, cfg.RTOMin)
	require.Equal(t, 2000*time.Millisecond, cfg.RTOMax)
}

func TestParseDefaultsRTOWhenUnset(t *testing.T) {
	cfg, err := Parse(strings.NewReader("if lo0\nlo 10.0.0.1\n"))
	require.NoError(t, err)
	require.Equal(t, 1*time.Second, cfg.RTOMin)
	require.Equal(t, 5*time.Second, cfg.RTOMax)
}

func TestParseRejectsUnknownDirective(t *testing.T) {
	_, err := Parse(strings.NewReader("bogus foo\n"))
	require.Error(t, err)
}

func TestParseRejectsLoWithoutInterfaceBlock(t *testing.T) {
	_, err := Parse(strings.NewReader("lo 10.0.0.1\n"))
	require.Error(t, err)
}

func TestParseRejectsInvalidIPv4(t *testing.T) {
	_, err := Parse(strings.NewReader("if lo0\nlo 10.0.0.999\n"))
	require.Error(t, err)
}

func TestParseRejectsInvalidMAC(t *testing.T) {
	_, err := Parse(strings.NewReader("if eth0\nmac not-a-mac\n"))
	require.Error(t, err)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile("/nonexistent/path/to.lnx")
	require.Error(t, err)
}
