//go:build linux

package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// routeHandle is the subset of *netlink.Handle the provider uses
type routeHandle interface {
	RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error)
	RouteAdd(route *netlink.Route) error
	RouteDel(route *netlink.Route) error
}

// NetlinkProvider reads and writes the main table over rtnetlink
type NetlinkProvider struct {
	handle routeHandle
}

// NewNetlinkProvider opens a netlink handle in the current namespace
func NewNetlinkProvider() (*NetlinkProvider, error) {
	h, err := netlink.NewHandle(unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("failed to open netlink handle: %w", err)
	}
	return &NetlinkProvider{handle: h}, nil
}

func (p *NetlinkProvider) Name() string { return "netlink" }

// MaxConcurrency is unbounded; the kernel serializes route updates itself
func (p *NetlinkProvider) MaxConcurrency() int { return 0 }

// Snapshot lists the IPv4 main table
func (p *NetlinkProvider) Snapshot(context.Context) (*entities.Snapshot, error) {
	routes, err := p.handle.RouteListFiltered(netlink.FAMILY_V4,
		&netlink.Route{Table: unix.RT_TABLE_MAIN}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	var (
		entries []entities.Entry
		gateway netip.Addr
	)
	for _, r := range routes {
		hop, _ := netip.AddrFromSlice(r.Gw.To4())

		if r.Dst == nil || isDefault(r.Dst) {
			if !gateway.IsValid() && hop.IsValid() {
				gateway = hop
			}
			continue
		}

		dst, ok := netip.AddrFromSlice(r.Dst.IP.To4())
		if !ok {
			continue
		}
		entries = append(entries, entities.Entry{Destination: dst, NextHop: hop})
	}

	return entities.SnapshotFromEntries(entries, gateway), nil
}

// Mutate applies each operation in order. Adding an existing route or
// deleting a missing one counts as converged.
func (p *NetlinkProvider) Mutate(_ context.Context, ops []types.Operation) (entities.MutateOutput, error) {
	var (
		stderr strings.Builder
		failed int
	)

	for _, op := range ops {
		route := &netlink.Route{
			Dst:   prefixToIPNet(op.Destination),
			Table: unix.RT_TABLE_MAIN,
		}

		var err error
		switch op.Action {
		case types.RouteActionAdd:
			route.Gw = net.IP(op.Gateway.AsSlice())
			route.Priority = op.Metric
			err = p.handle.RouteAdd(route)
			if errors.Is(err, unix.EEXIST) {
				err = nil
			}
		case types.RouteActionDelete:
			err = p.handle.RouteDel(route)
			if errors.Is(err, unix.ESRCH) {
				err = nil
			}
		}

		if err == nil {
			continue
		}
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
			return entities.MutateOutput{Stderr: []byte(stderr.String())}, &types.RouteError{
				Kind:        types.ErrPermission,
				Destination: op.Destination.String(),
				Message:     permissionMessage(),
				Cause:       err,
			}
		}

		failed++
		fmt.Fprintf(&stderr, "%s: %v\n", op, err)
	}

	out := entities.MutateOutput{Stderr: []byte(stderr.String())}
	if failed > 0 {
		return out, fmt.Errorf("%d of %d route operations failed", failed, len(ops))
	}
	return out, nil
}

func permissionMessage() string {
	if unix.Geteuid() != 0 {
		return "route operation requires root privileges"
	}
	return "route operation requires CAP_NET_ADMIN"
}

func isDefault(dst *net.IPNet) bool {
	ones, _ := dst.Mask.Size()
	return ones == 0
}

func prefixToIPNet(p netip.Prefix) *net.IPNet {
	return &net.IPNet{
		IP:   net.IP(p.Addr().AsSlice()),
		Mask: net.CIDRMask(p.Bits(), 32),
	}
}

func newNetlinkProvider() (entities.Provider, error) {
	return NewNetlinkProvider()
}
