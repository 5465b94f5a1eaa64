// Command netstackd brings up the network task against a .lnx-style
// config file and drops into the interactive console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/abyesilyurt/netkernel/pkg/adapter"
	"github.com/abyesilyurt/netkernel/pkg/arptable"
	"github.com/abyesilyurt/netkernel/pkg/config"
	"github.com/abyesilyurt/netkernel/pkg/netstack"
	"github.com/abyesilyurt/netkernel/pkg/repl"
	"github.com/abyesilyurt/netkernel/pkg/socket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) != 3 || os.Args[1] != "--config" {
		fmt.Printf("Usage: %s --config <lnx file>\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.ParseFile(os.Args[2])
	if err != nil {
		logrus.WithError(err).Fatal("failed to parse config")
	}

	adapters, err := buildAdapters(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to bring up adapters")
	}

	reg := socket.NewRegistry()
	arp := arptable.New()
	stack := netstack.New(reg, arp, adapters...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	// The network task and the console run as siblings under one
	// errgroup: either one returning tears down the other via ctx, and
	// Wait surfaces whichever error (if any) caused the shutdown.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stack.Run(ctx)
		return nil
	})
	g.Go(func() error {
		console := repl.New(stack, os.Stdout)
		console.Run(ctx, os.Stdin)
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Fatal("netstackd exiting")
	}
}

// buildAdapters brings up one adapter per configured interface, loopback
// first so the network task's poll ordering favors it over the wire. A
// udp interface's peer MAC defaults to a marker value the UDPTunnel
// substitutes whenever a caller passes netaddr.Zero, since it has exactly
// one possible next hop.
func buildAdapters(cfg *config.Config) ([]adapter.Adapter, error) {
	var loopbacks, hardware []adapter.Adapter
	for _, iface := range cfg.Interfaces {
		switch iface.Kind {
		case "lo":
			loopbacks = append(loopbacks, adapter.NewLoopback(iface.Assigned))
		case "udp":
			tun, err := adapter.NewUDPTunnel(iface.ListenUDP, iface.PeerUDP, iface.MAC, iface.Assigned, iface.PeerMAC)
			if err != nil {
				return nil, err
			}
			hardware = append(hardware, tun)
		default:
			return nil, fmt.Errorf("interface %q: unknown kind %q", iface.Name, iface.Kind)
		}
	}
	return append(loopbacks, hardware...), nil
}
