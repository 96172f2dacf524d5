//go:build linux

package platform

import (
	"context"
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/wesleywu/lucky-route/internal/routing/types"
)

type fakeHandle struct {
	routes  []netlink.Route
	added   []*netlink.Route
	deleted []*netlink.Route
	addErr  error
	delErr  error
}

func (f *fakeHandle) RouteListFiltered(family int, filter *netlink.Route, mask uint64) ([]netlink.Route, error) {
	return f.routes, nil
}

func (f *fakeHandle) RouteAdd(r *netlink.Route) error {
	f.added = append(f.added, r)
	return f.addErr
}

func (f *fakeHandle) RouteDel(r *netlink.Route) error {
	f.deleted = append(f.deleted, r)
	return f.delErr
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

func TestNetlinkSnapshot(t *testing.T) {
	h := &fakeHandle{routes: []netlink.Route{
		{Dst: nil, Gw: net.ParseIP("192.168.1.1")},
		{Dst: mustCIDR("1.0.1.0/24"), Gw: net.ParseIP("192.168.1.1")},
		{Dst: mustCIDR("192.168.1.0/24")},
	}}
	p := &NetlinkProvider{handle: h}

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)

	gw, ok := snap.DefaultGateway()
	assert.True(t, ok)
	assert.Equal(t, "192.168.1.1", gw.String())
	assert.Equal(t, 2, snap.Len())

	hop, ok := snap.Lookup(netip.MustParseAddr("1.0.1.0"))
	require.True(t, ok)
	assert.Equal(t, "192.168.1.1", hop.String())
	hop, ok = snap.Lookup(netip.MustParseAddr("192.168.1.0"))
	require.True(t, ok)
	assert.False(t, hop.IsValid())
}

func TestNetlinkMutate(t *testing.T) {
	h := &fakeHandle{}
	p := &NetlinkProvider{handle: h}

	_, err := p.Mutate(context.Background(), []types.Operation{
		addOp("1.0.1.0/24", "192.168.1.1", 5),
		deleteOp("1.0.2.0/23"),
	})
	require.NoError(t, err)

	require.Len(t, h.added, 1)
	assert.Equal(t, "1.0.1.0/24", h.added[0].Dst.String())
	assert.Equal(t, "192.168.1.1", h.added[0].Gw.String())
	assert.Equal(t, 5, h.added[0].Priority)
	require.Len(t, h.deleted, 1)
	assert.Equal(t, "1.0.2.0/23", h.deleted[0].Dst.String())
}

func TestNetlinkMutateConverged(t *testing.T) {
	h := &fakeHandle{addErr: unix.EEXIST, delErr: unix.ESRCH}
	p := &NetlinkProvider{handle: h}

	_, err := p.Mutate(context.Background(), []types.Operation{
		addOp("1.0.1.0/24", "192.168.1.1", 5),
		deleteOp("1.0.2.0/23"),
	})
	assert.NoError(t, err)
}

func TestNetlinkMutateFailures(t *testing.T) {
	h := &fakeHandle{addErr: unix.ENETUNREACH}
	p := &NetlinkProvider{handle: h}

	out, err := p.Mutate(context.Background(), []types.Operation{
		addOp("1.0.1.0/24", "10.9.9.9", 5),
		addOp("1.0.2.0/23", "10.9.9.9", 5),
	})
	require.Error(t, err)
	assert.Len(t, h.added, 2)
	assert.Contains(t, string(out.Stderr), "add 1.0.2.0/23 via 10.9.9.9 metric 5")
}

func TestNetlinkMutatePermission(t *testing.T) {
	h := &fakeHandle{addErr: unix.EPERM}
	p := &NetlinkProvider{handle: h}

	_, err := p.Mutate(context.Background(), []types.Operation{
		addOp("1.0.1.0/24", "192.168.1.1", 5),
		addOp("1.0.2.0/23", "192.168.1.1", 5),
	})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrPermission))
	assert.Len(t, h.added, 1)
}
