package platform

import (
	"bytes"
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// WindowsProvider drives the Windows route table with route.exe. A group
// runs as one cmd /C invocation with the commands joined by " & ".
type WindowsProvider struct {
	runner Runner
}

// NewWindowsProvider creates a route.exe provider running commands through runner
func NewWindowsProvider(runner Runner) *WindowsProvider {
	return &WindowsProvider{runner: runner}
}

func (p *WindowsProvider) Name() string { return "windows-route" }

// MaxConcurrency is unbounded; every group is an independent process
func (p *WindowsProvider) MaxConcurrency() int { return 0 }

// Snapshot reads the IPv4 table from `route print`
func (p *WindowsProvider) Snapshot(ctx context.Context) (*entities.Snapshot, error) {
	stdout, stderr, err := p.runner.Run(ctx, nil, "route", "print")
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w: %s", err, bytes.TrimSpace(stderr))
	}

	entries, gateway := parseRoutePrint(string(stdout))
	return entities.SnapshotFromEntries(entries, gateway), nil
}

// Mutate applies the group through a single shell invocation
func (p *WindowsProvider) Mutate(ctx context.Context, ops []types.Operation) (entities.MutateOutput, error) {
	stdout, stderr, err := p.runner.Run(ctx, nil, "cmd", "/C", windowsScript(ops))
	return entities.MutateOutput{Stdout: stdout, Stderr: stderr}, err
}

func windowsScript(ops []types.Operation) string {
	commands := make([]string, 0, len(ops))
	for _, op := range ops {
		mask := maskOf(op.Destination)
		switch op.Action {
		case types.RouteActionAdd:
			commands = append(commands, fmt.Sprintf("route add %s mask %s %s metric %d",
				op.Destination.Addr(), mask, op.Gateway, op.Metric))
		case types.RouteActionDelete:
			commands = append(commands, fmt.Sprintf("route delete %s mask %s", op.Destination.Addr(), mask))
		}
	}
	return strings.Join(commands, " & ")
}

// parseRoutePrint reads the IPv4 rows of `route print`:
// "Network Destination  Netmask  Gateway  Interface  Metric". On-link rows
// have no next hop. The first 0.0.0.0/0.0.0.0 row gives the default gateway.
func parseRoutePrint(output string) ([]entities.Entry, netip.Addr) {
	var (
		entries []entities.Entry
		gateway netip.Addr
	)

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Persistent Routes") || strings.HasPrefix(line, "IPv6 Route Table") {
			break
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		dst, err := netip.ParseAddr(fields[0])
		if err != nil || !dst.Is4() {
			continue
		}
		mask, err := netip.ParseAddr(fields[1])
		if err != nil || !mask.Is4() {
			continue
		}

		hop, err := netip.ParseAddr(fields[2])
		if err != nil || !hop.Is4() {
			hop = netip.Addr{}
		}

		if dst == netip.IPv4Unspecified() && mask == netip.IPv4Unspecified() {
			if !gateway.IsValid() && hop.IsValid() {
				gateway = hop
			}
			continue
		}

		entries = append(entries, entities.Entry{Destination: dst, NextHop: hop})
	}

	return entries, gateway
}
