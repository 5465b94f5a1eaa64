// Package repl implements the interactive control console: a
// bufio.Scanner read loop dispatching on the first token, with
// tabwriter-formatted table output for listing commands. The command set
// is built around this stack's sockets (connect/listen/send/recv/close).
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/abyesilyurt/netkernel/pkg/adapter"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
	"github.com/abyesilyurt/netkernel/pkg/netstack"
	"github.com/abyesilyurt/netkernel/pkg/socket"
)

// REPL holds the open sockets the console commands operate on, keyed by
// the integer handle printed back to the user on connect/listen.
type REPL struct {
	stack *netstack.Stack
	out   io.Writer

	nextHandle int
	tcpSockets map[int]*socket.TCPSocket
}

// New returns a REPL bound to stack, writing output to out.
func New(stack *netstack.Stack, out io.Writer) *REPL {
	return &REPL{
		stack:      stack,
		out:        out,
		tcpSockets: make(map[int]*socket.TCPSocket),
	}
}

// Run reads commands from in until EOF or ctx is cancelled.
func (r *REPL) Run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}
		r.dispatch(ctx, strings.TrimSpace(scanner.Text()))
	}
}

func (r *REPL) dispatch(ctx context.Context, line string) {
	if line == "" {
		return
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "a", "arp":
		r.listARP()
	case "ls":
		r.listSockets()
	case "c", "connect":
		r.connect(ctx, fields)
	case "l", "listen":
		r.listen(fields)
	case "s", "send":
		r.send(fields, line)
	case "rd", "recv":
		r.recv(ctx, fields)
	case "cl", "close":
		r.close(fields)
	default:
		fmt.Fprintf(r.out, "unknown command %q\n", fields[0])
	}
}

func (r *REPL) listARP() {
	w := tabwriter.NewWriter(r.out, 1, 1, 3, ' ', 0)
	fmt.Fprintln(w, "IP\tMAC")
	r.stack.ARPTable().Each(func(ip netaddr.IPv4, mac netaddr.MAC) {
		fmt.Fprintln(w, ip.String()+"\t"+mac.String())
	})
	w.Flush()
}

func (r *REPL) listSockets() {
	w := tabwriter.NewWriter(r.out, 1, 1, 3, ' ', 0)
	fmt.Fprintln(w, "Handle\tState\tLocal\tPeer")
	for h, s := range r.tcpSockets {
		local := fmt.Sprintf("%s:%d", s.LocalAddr(), s.LocalPort())
		peer := fmt.Sprintf("%s:%d", s.PeerAddr(), s.PeerPort())
		fmt.Fprintln(w, fmt.Sprintf("%d\t%s\t%s\t%s", h, s.State(), local, peer))
	}
	w.Flush()
}

// connect <peer-ip> <peer-port> [local-ip]
func (r *REPL) connect(ctx context.Context, fields []string) {
	if len(fields) < 3 {
		fmt.Fprintln(r.out, "usage: connect <peer-ip> <peer-port> [local-ip]")
		return
	}
	peerAddr, err := parseIPv4(fields[1])
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	peerPort, err := parsePort(fields[2])
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	ad, localAddr, err := r.resolveLocal(fields, 3)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}

	sock := socket.NewTCPSocket(r.stack.Registry(), r.stack.ARPTable())
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sock.Connect(connectCtx, ad, localAddr, peerAddr, peerPort); err != nil {
		fmt.Fprintln(r.out, "connect failed:", err)
		return
	}
	r.nextHandle++
	r.tcpSockets[r.nextHandle] = sock
	fmt.Fprintf(r.out, "connected, handle %d\n", r.nextHandle)
}

// listen <local-ip> <local-port>
func (r *REPL) listen(fields []string) {
	if len(fields) < 3 {
		fmt.Fprintln(r.out, "usage: listen <local-ip> <local-port>")
		return
	}
	ad, localAddr, err := r.resolveLocal(fields, 1)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	port, err := parsePort(fields[2])
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	sock := socket.NewTCPSocket(r.stack.Registry(), r.stack.ARPTable())
	sock.Bind(ad, localAddr, port)
	if err := sock.Listen(); err != nil {
		fmt.Fprintln(r.out, "listen failed:", err)
		return
	}
	r.nextHandle++
	r.tcpSockets[r.nextHandle] = sock
	fmt.Fprintf(r.out, "listening, handle %d\n", r.nextHandle)
}

// send <handle> <text...>
func (r *REPL) send(fields []string, line string) {
	if len(fields) < 3 {
		fmt.Fprintln(r.out, "usage: send <handle> <text>")
		return
	}
	sock, err := r.byHandle(fields[1])
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	parts := strings.SplitN(line, " ", 3)
	n, err := sock.Write([]byte(parts[2]))
	if err != nil {
		fmt.Fprintln(r.out, "send failed:", err)
		return
	}
	fmt.Fprintf(r.out, "sent %d bytes\n", n)
}

// recv <handle>
func (r *REPL) recv(ctx context.Context, fields []string) {
	if len(fields) < 2 {
		fmt.Fprintln(r.out, "usage: recv <handle>")
		return
	}
	sock, err := r.byHandle(fields[1])
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	buf := make([]byte, 4096)
	recvCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := sock.Recv(recvCtx, buf)
	if err != nil {
		fmt.Fprintln(r.out, "recv:", err)
		return
	}
	fmt.Fprintf(r.out, "%s\n", buf[:n])
}

// close <handle>
func (r *REPL) close(fields []string) {
	if len(fields) < 2 {
		fmt.Fprintln(r.out, "usage: close <handle>")
		return
	}
	sock, err := r.byHandle(fields[1])
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	if err := sock.Close(); err != nil {
		fmt.Fprintln(r.out, "close failed:", err)
	}
}

func (r *REPL) byHandle(s string) (*socket.TCPSocket, error) {
	h, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid handle %q", s)
	}
	sock, ok := r.tcpSockets[h]
	if !ok {
		return nil, fmt.Errorf("no such socket %d", h)
	}
	return sock, nil
}

// resolveLocal finds, among the stack's adapters, the one whose
// IPv4Address matches fields[idx] if present, or the stack's first
// adapter otherwise. Routing-table adapter selection proper is out of
// scope; the console always lets the operator name the interface
// directly instead.
func (r *REPL) resolveLocal(fields []string, idx int) (adapter.Adapter, netaddr.IPv4, error) {
	adapters := r.stack.Adapters()
	if len(adapters) == 0 {
		return nil, netaddr.IPv4{}, fmt.Errorf("no adapters configured")
	}
	if idx >= len(fields) {
		return adapters[0], adapters[0].IPv4Address(), nil
	}
	addr, err := parseIPv4(fields[idx])
	if err != nil {
		return nil, netaddr.IPv4{}, err
	}
	for _, a := range adapters {
		if a.IPv4Address() == addr {
			return a, addr, nil
		}
	}
	return nil, netaddr.IPv4{}, fmt.Errorf("no adapter assigned %s", addr)
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 65535 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return uint16(n), nil
}

func parseIPv4(s string) (netaddr.IPv4, error) {
	parts := strings.Split(s, ".")
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
