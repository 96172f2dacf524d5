package types

import (
	"fmt"
	"net/netip"
)

// RouteAction represents the type of operation to be performed on a route
type RouteAction int

// Route action constants
const (
	// RouteActionAdd adds a route to the system routing table
	RouteActionAdd RouteAction = iota
	// RouteActionDelete removes a route from the system routing table
	RouteActionDelete
)

// String returns the action name used in logs and metrics
func (a RouteAction) String() string {
	switch a {
	case RouteActionAdd:
		return "add"
	case RouteActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Operation is a single route mutation handed to a provider
type Operation struct {
	Action      RouteAction
	Destination netip.Prefix
	Gateway     netip.Addr // unset for deletes
	Metric      int        // unset for deletes
}

// String renders the operation for diagnostics
func (op Operation) String() string {
	if op.Action == RouteActionAdd {
		return fmt.Sprintf("add %s via %s metric %d", op.Destination, op.Gateway, op.Metric)
	}
	return fmt.Sprintf("delete %s", op.Destination)
}
