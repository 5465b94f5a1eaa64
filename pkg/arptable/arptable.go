// Package arptable implements the process-wide IPv4-to-MAC mapping
// populated by ARP replies and consulted by adapters resolving a next hop.
// It is a single lock-protected map, matching Kernel/Net/NetworkTask.cpp's
// arp_table(): no TTL, no conflict resolution, no gratuitous-ARP policy.
package arptable

import (
	"sync"

	"github.com/abyesilyurt/netkernel/pkg/netaddr"
)

// Table is a lock-protected IPv4->MAC map. The zero value is ready to use.
type Table struct {
	mu sync.RWMutex
	m  map[netaddr.IPv4]netaddr.MAC
}

// New returns an empty table.
func New() *Table {
	return &Table{m: make(map[netaddr.IPv4]netaddr.MAC)}
}

// Lookup returns the MAC address for ip and whether an entry exists.
func (t *Table) Lookup(ip netaddr.IPv4) (netaddr.MAC, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	mac, ok := t.m[ip]
	return mac, ok
}

// Set inserts or overwrites the entry for ip.
func (t *Table) Set(ip netaddr.IPv4, mac netaddr.MAC) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		t.m = make(map[netaddr.IPv4]netaddr.MAC)
	}
	t.m[ip] = mac
}

// Size returns the number of entries.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

// Each calls fn for every entry. fn must not call back into the table.
func (t *Table) Each(fn func(ip netaddr.IPv4, mac netaddr.MAC)) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for ip, mac := range t.m {
		fn(ip, mac)
	}
}
