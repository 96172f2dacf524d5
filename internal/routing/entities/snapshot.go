package entities

import (
	"net/netip"
)

// Entry is one row of the live routing table
type Entry struct {
	Destination netip.Addr
	NextHop     netip.Addr // invalid for on-link rows
}

// Snapshot is a point-in-time read of the routing table. It is never
// modified after construction; re-query the provider to observe changes.
type Snapshot struct {
	entries        map[netip.Addr]netip.Addr
	defaultGateway netip.Addr
}

// NewSnapshot copies entries into a new snapshot. An invalid gateway means
// the table has no usable default route.
func NewSnapshot(entries map[netip.Addr]netip.Addr, defaultGateway netip.Addr) *Snapshot {
	copied := make(map[netip.Addr]netip.Addr, len(entries))
	for dst, hop := range entries {
		copied[dst] = hop
	}
	return &Snapshot{entries: copied, defaultGateway: defaultGateway}
}

// SnapshotFromEntries builds a snapshot from table rows. Later rows for the same destination win.
func SnapshotFromEntries(rows []Entry, defaultGateway netip.Addr) *Snapshot {
	entries := make(map[netip.Addr]netip.Addr, len(rows))
	for _, row := range rows {
		entries[row.Destination] = row.NextHop
	}
	return &Snapshot{entries: entries, defaultGateway: defaultGateway}
}

// Lookup returns the next hop recorded for a destination
func (s *Snapshot) Lookup(destination netip.Addr) (netip.Addr, bool) {
	hop, ok := s.entries[destination]
	return hop, ok
}

// Has reports whether the destination is present in the table
func (s *Snapshot) Has(destination netip.Addr) bool {
	_, ok := s.entries[destination]
	return ok
}

// DefaultGateway returns the default gateway, if the table has one
func (s *Snapshot) DefaultGateway() (netip.Addr, bool) {
	return s.defaultGateway, s.defaultGateway.IsValid()
}

// Len returns the number of table entries
func (s *Snapshot) Len() int {
	return len(s.entries)
}
