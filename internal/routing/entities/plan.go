package entities

import (
	"net/netip"

	"github.com/wesleywu/lucky-route/internal/routing/cidr"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// PlannedAdd is one route the plan will add
type PlannedAdd struct {
	Block   cidr.Block
	Gateway netip.Addr
	Metric  int
}

// Plan is the set of operations converging a table to a desired block set.
// It is consumed once by the batch executor.
type Plan struct {
	ToAdd    []PlannedAdd
	ToDelete []cidr.Block
}

// Empty reports whether the plan has nothing to do
func (p *Plan) Empty() bool {
	return len(p.ToAdd) == 0 && len(p.ToDelete) == 0
}

// DeleteOperations returns the plan's deletes as provider operations
func (p *Plan) DeleteOperations() []types.Operation {
	ops := make([]types.Operation, 0, len(p.ToDelete))
	for _, b := range p.ToDelete {
		ops = append(ops, types.Operation{
			Action:      types.RouteActionDelete,
			Destination: b.Prefix(),
		})
	}
	return ops
}

// AddOperations returns the plan's adds as provider operations, in plan order
func (p *Plan) AddOperations() []types.Operation {
	ops := make([]types.Operation, 0, len(p.ToAdd))
	for _, a := range p.ToAdd {
		ops = append(ops, types.Operation{
			Action:      types.RouteActionAdd,
			Destination: a.Block.Prefix(),
			Gateway:     a.Gateway,
			Metric:      a.Metric,
		})
	}
	return ops
}
