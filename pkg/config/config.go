// Package config loads the .lnx-style text configuration this stack
// starts from: one interface block per adapter (loopback or UDP tunnel)
// plus process-wide TCP bounds.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abyesilyurt/netkernel/pkg/netaddr"
	"github.com/pkg/errors"
)

// Interface describes one adapter to bring up: either the loopback
// pseudo-adapter (Kind == "lo") or a point-to-point UDP tunnel standing in
// for a hardware NIC (Kind == "udp").
type Interface struct {
	Name      string
	Kind      string
	Assigned  netaddr.IPv4
	MAC       netaddr.MAC
	ListenUDP string // Kind == "udp": local UDP address to bind
	PeerUDP   string // Kind == "udp": peer UDP address to send to
	PeerMAC   netaddr.MAC
}

// Config is a parsed .lnx file: the interfaces to bring up plus the TCP
// RTO bounds carried over from the original format. RTOMin/RTOMax are
// parsed and exposed for fidelity with upstream configs, but this stack
// has no retransmission logic to consult them.
type Config struct {
	Interfaces []Interface
	RTOMin     time.Duration
	RTOMax     time.Duration
}

// ParseFile reads and parses a .lnx file from disk.
func ParseFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open config %q", path)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads line-oriented "key value [value...]" records, one per line,
// blank lines and '#'-prefixed lines ignored. An "if" record starts an
// interface block that subsequent indented-by-convention "lo"/"udp"/"mac"
// records belong to, ended by the next "if" or end of file.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{RTOMin: 1 * time.Second, RTOMax: 5 * time.Second}

	var current *Interface
	flush := func() {
		if current != nil {
			cfg.Interfaces = append(cfg.Interfaces, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch strings.ToLower(fields[0]) {
		case "if":
			flush()
			if len(fields) < 2 {
				return nil, fmt.Errorf("config line %d: if requires a name", lineNo)
			}
			current = &Interface{Name: fields[1]}
		case "lo":
			if current == nil || len(fields) < 2 {
				return nil, fmt.Errorf("config line %d: lo requires an interface block and an address", lineNo)
			}
			current.Kind = "lo"
			addr, err := parseIPv4(fields[1])
			if err != nil {
				return nil, errors.Wrapf(err, "config line %d", lineNo)
			}
			current.Assigned = addr
		case "udp":
			if current == nil || len(fields) < 4 {
				return nil, fmt.Errorf("config line %d: udp requires listen, peer, and assigned address", lineNo)
			}
			addr, err := parseIPv4(fields[3])
			if err != nil {
				return nil, errors.Wrapf(err, "config line %d", lineNo)
			}
			current.Kind = "udp"
			current.ListenUDP = fields[1]
			current.PeerUDP = fields[2]
			current.Assigned = addr
		case "mac":
			if current == nil || len(fields) < 2 {
				return nil, fmt.Errorf("config line %d: mac requires an interface block and an address", lineNo)
			}
			mac, err := parseMAC(fields[1])
			if err != nil {
				return nil, errors.Wrapf(err, "config line %d", lineNo)
			}
			current.MAC = mac
		case "peer-mac":
			if current == nil || len(fields) < 2 {
				return nil, fmt.Errorf("config line %d: peer-mac requires an interface block and an address", lineNo)
			}
			mac, err := parseMAC(fields[1])
			if err != nil {
				return nil, errors.Wrapf(err, "config line %d", lineNo)
			}
			current.PeerMAC = mac
		case "rto-min":
			d, err := parseMillis(fields)
			if err != nil {
				return nil, errors.Wrapf(err, "config line %d", lineNo)
			}
			cfg.RTOMin = d
		case "rto-max":
			d, err := parseMillis(fields)
			if err != nil {
				return nil, errors.Wrapf(err, "config line %d", lineNo)
			}
			cfg.RTOMax = d
		default:
			return nil, fmt.Errorf("config line %d: unknown directive %q", lineNo, fields[0])
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	return cfg, nil
}

func parseMillis(fields []string) (time.Duration, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("expected a millisecond value")
	}
	ms, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, errors.Wrap(err, "parsing milliseconds")
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parseIPv4(s string) (netaddr.IPv4, error) {
	parts := strings.Split(strings.SplitN(s, "/", 2)[0], ".")
	if len(parts) != 4 {
		return netaddr.IPv4{}, fmt.Errorf("invalid ipv4 address %q", s)
	}
	var out [4]byte
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return netaddr.IPv4{}, fmt.Errorf("invalid ipv4 address %q", s)
		}
		out[i] = byte(n)
	}
	return netaddr.IPv4From4(out), nil
}

func parseMAC(s string) (netaddr.MAC, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return netaddr.MAC{}, fmt.Errorf("invalid mac address %q", s)
	}
	var out [6]byte
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return netaddr.MAC{}, fmt.Errorf("invalid mac address %q", s)
		}
		out[i] = byte(n)
	}
	return netaddr.MAC(out), nil
}
