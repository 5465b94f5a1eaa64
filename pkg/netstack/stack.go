// Package netstack implements the network task: the single consumer loop
// that drains queued frames from every adapter, demultiplexes Ethernet
// into ARP/IPv4, and IPv4 into ICMP/UDP/TCP. It follows
// Kernel/Net/NetworkTask.cpp's network_task_main loop, translated from a
// cooperative block_until(pred) kernel primitive into a Go poll-then-select
// loop over each adapter's channel.
package netstack

import (
	"context"
	"reflect"

	"github.com/abyesilyurt/netkernel/pkg/adapter"
	"github.com/abyesilyurt/netkernel/pkg/arptable"
	"github.com/abyesilyurt/netkernel/pkg/frame"
	"github.com/abyesilyurt/netkernel/pkg/netaddr"
	"github.com/abyesilyurt/netkernel/pkg/socket"
	"github.com/sirupsen/logrus"
)

// Stack owns the adapters, ARP table and socket registry one network task
// loop serves. Adapters are polled in the order given to New -- callers
// should pass the loopback adapter first so it is preferred over hardware
// adapters.
type Stack struct {
	adapters []adapter.Adapter
	arp      *arptable.Table
	reg      *socket.Registry
	log      *logrus.Entry
}

// New returns a Stack that will service adapters in the given preference
// order once Run is called.
func New(reg *socket.Registry, arp *arptable.Table, adapters ...adapter.Adapter) *Stack {
	return &Stack{
		adapters: adapters,
		arp:      arp,
		reg:      reg,
		log:      logrus.WithField("component", "netstack"),
	}
}

// Registry returns the socket registry this stack serves, so callers can
// create and bind sockets against the same registry the loop consults.
func (s *Stack) Registry() *socket.Registry { return s.reg }

// ARPTable returns the ARP table this stack maintains.
func (s *Stack) ARPTable() *arptable.Table { return s.arp }

// Adapters returns the stack's adapters in preference order.
func (s *Stack) Adapters() []adapter.Adapter { return s.adapters }

// adapterOwning returns the adapter whose IPv4 address is ip, if any.
// Ownership checks (ARP target resolution, "is this destination ours")
// must consult every adapter, not just the one a frame arrived on, since a
// request for one adapter's address can arrive on another adapter's wire.
func (s *Stack) adapterOwning(ip netaddr.IPv4) (adapter.Adapter, bool) {
	for _, a := range s.adapters {
		if a.IPv4Address() == ip {
			return a, true
		}
	}
	return nil, false
}

// Run drains and handles frames until ctx is cancelled. Each iteration
// first polls every adapter in preference order for an already-queued
// frame; only when none have one does it block, via reflect.Select over
// every adapter's Packets() channel plus ctx.Done(), until something
// changes. The frame that wakes the Select is handled at once, whichever
// adapter it came from (reflect.Select picks pseudo-randomly among ready
// channels); the poll loop then resumes in preference order.
func (s *Stack) Run(ctx context.Context) {
	cases := make([]reflect.SelectCase, len(s.adapters)+1)
	for i, a := range s.adapters {
		cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(a.Packets())}
	}
	cases[len(s.adapters)] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())}

	for {
		if ctx.Err() != nil {
			return
		}

		handled := false
		for _, a := range s.adapters {
			if raw, ok := a.DequeuePacket(); ok {
				s.handleFrame(raw)
				handled = true
				break
			}
		}
		if handled {
			continue
		}

		chosen, recv, recvOK := reflect.Select(cases)
		if chosen == len(s.adapters) {
			return
		}
		if recvOK {
			s.handleFrame(recv.Bytes())
		}
	}
}

// handleFrame is the Ethernet-layer demux.
func (s *Stack) handleFrame(raw []byte) {
	eth, err := frame.ParseEthernet(raw)
	if err != nil {
		s.log.WithError(err).Debug("dropping undersized ethernet frame")
		return
	}
	switch eth.Type() {
	case frame.EtherTypeARP:
		s.handleARP(eth)
	case frame.EtherTypeIPv4:
		s.handleIPv4(eth)
	default:
		s.log.WithField("ethertype", eth.Type()).Debug("dropping frame of unsupported ethertype")
	}
}
