package platform

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// BSDProvider drives the route table of darwin and freebsd through
// netstat and route(8). A group runs as one shell invocation.
type BSDProvider struct {
	runner Runner
}

// NewBSDProvider creates a BSD provider running commands through runner
func NewBSDProvider(runner Runner) *BSDProvider {
	return &BSDProvider{runner: runner}
}

func (p *BSDProvider) Name() string { return "bsd-route" }

// MaxConcurrency is unbounded; every group is an independent process
func (p *BSDProvider) MaxConcurrency() int { return 0 }

// Snapshot reads the IPv4 table with netstat
func (p *BSDProvider) Snapshot(ctx context.Context) (*entities.Snapshot, error) {
	stdout, stderr, err := p.runner.Run(ctx, nil, "netstat", "-rn", "-f", "inet")
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w: %s", err, bytes.TrimSpace(stderr))
	}

	entries, gateway := parseNetstatOutput(string(stdout))
	return entities.SnapshotFromEntries(entries, gateway), nil
}

// Mutate joins the group into a single sh -c script
func (p *BSDProvider) Mutate(ctx context.Context, ops []types.Operation) (entities.MutateOutput, error) {
	stdout, stderr, err := p.runner.Run(ctx, nil, "sh", "-c", bsdScript(ops))
	out := entities.MutateOutput{Stdout: stdout, Stderr: stderr}

	if isBSDPermissionError(stderr) {
		return out, &types.RouteError{
			Kind:    types.ErrPermission,
			Message: "route operation requires root privileges",
			Cause:   fmt.Errorf("%s", bytes.TrimSpace(stderr)),
		}
	}
	return out, err
}

func bsdScript(ops []types.Operation) string {
	commands := make([]string, 0, len(ops))
	for _, op := range ops {
		switch op.Action {
		case types.RouteActionAdd:
			commands = append(commands, fmt.Sprintf("route -n add -net %s %s", op.Destination, op.Gateway))
		case types.RouteActionDelete:
			commands = append(commands, fmt.Sprintf("route -n delete -net %s", op.Destination))
		}
	}
	return strings.Join(commands, "; ")
}

func isBSDPermissionError(stderr []byte) bool {
	s := string(stderr)
	return strings.Contains(s, "must be root") || strings.Contains(s, "Operation not permitted")
}
