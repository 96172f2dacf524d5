// Package reconcile diffs a desired block set against a routing table snapshot.
//
// Both planners are pure: they read the snapshot and return a fresh plan
// without touching the live table.
package reconcile

import (
	"net/netip"
	"sort"

	"github.com/wesleywu/lucky-route/internal/routing/cidr"
	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// ResolveGateway picks the explicit gateway if set, else the snapshot's default gateway.
func ResolveGateway(gateway netip.Addr, snapshot *entities.Snapshot) (netip.Addr, error) {
	if gateway.IsValid() {
		if !gateway.Is4() {
			return netip.Addr{}, types.Errorf(types.ErrGatewayUnavailable, "gateway %s is not an IPv4 address", gateway)
		}
		return gateway, nil
	}

	if gw, ok := snapshot.DefaultGateway(); ok && gw.Is4() {
		return gw, nil
	}

	return netip.Addr{}, types.NewError(types.ErrGatewayUnavailable, "failed to query gateway", nil)
}

// PlanAdd computes the operations routing every desired block through gateway.
//
// Blocks already pointing at the gateway are skipped. Blocks present with a
// different next hop are replaced: deleted first, then added. Adds are ordered
// broadest block first.
func PlanAdd(desired []cidr.Block, snapshot *entities.Snapshot, gateway netip.Addr, metric int) (*entities.Plan, error) {
	gw, err := ResolveGateway(gateway, snapshot)
	if err != nil {
		return nil, err
	}

	plan := &entities.Plan{}
	for _, b := range entities.NewDesiredRouteSet(desired).Blocks() {
		hop, exists := snapshot.Lookup(b.Addr())
		if exists && hop == gw {
			continue
		}
		if exists {
			plan.ToDelete = append(plan.ToDelete, b)
		}
		plan.ToAdd = append(plan.ToAdd, entities.PlannedAdd{Block: b, Gateway: gw, Metric: metric})
	}

	sort.SliceStable(plan.ToAdd, func(i, j int) bool {
		return plan.ToAdd[i].Block.PrefixLen < plan.ToAdd[j].Block.PrefixLen
	})

	return plan, nil
}

// PlanDelete computes the deletes for tracked blocks that are still present in
// the table. Destinations already gone are skipped.
func PlanDelete(tracked []cidr.Block, snapshot *entities.Snapshot) *entities.Plan {
	plan := &entities.Plan{}
	for _, b := range entities.NewDesiredRouteSet(tracked).Blocks() {
		if snapshot.Has(b.Addr()) {
			plan.ToDelete = append(plan.ToDelete, b)
		}
	}
	return plan
}
