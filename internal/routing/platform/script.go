package platform

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

//go:embed scripts/nsetroute.js
var nsetroute []byte

// ScriptProvider drives the Windows route table through a WSH script run
// by cscript. The script keeps WMI state per run, so groups must not overlap.
type ScriptProvider struct {
	runner Runner
	dir    string

	once    sync.Once
	path    string
	initErr error
}

// NewScriptProvider creates a script provider. The script is written into
// dir on first use; an empty dir means the system temp directory.
func NewScriptProvider(runner Runner, dir string) *ScriptProvider {
	return &ScriptProvider{runner: runner, dir: dir}
}

func (p *ScriptProvider) Name() string { return "windows-script" }

// MaxConcurrency is 1: the script cannot run alongside itself
func (p *ScriptProvider) MaxConcurrency() int { return 1 }

func (p *ScriptProvider) scriptPath() (string, error) {
	p.once.Do(func() {
		dir := p.dir
		if dir == "" {
			dir = os.TempDir()
		}
		p.path = filepath.Join(dir, "lucky-route-nsetroute.js")
		if err := os.WriteFile(p.path, nsetroute, 0o644); err != nil {
			p.initErr = fmt.Errorf("failed to write route script: %w", err)
		}
	})
	return p.path, p.initErr
}

type printOutput struct {
	Gateway *string     `json:"gateway"`
	Routes  [][2]string `json:"routes"`
}

// Snapshot runs the script's print action and decodes its JSON
func (p *ScriptProvider) Snapshot(ctx context.Context) (*entities.Snapshot, error) {
	path, err := p.scriptPath()
	if err != nil {
		return nil, err
	}

	stdout, stderr, err := p.runner.Run(ctx, nil, "cscript", "//nologo", path, "print")
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w: %s", err, bytes.TrimSpace(stderr))
	}

	return parseScriptPrint(stdout)
}

func parseScriptPrint(data []byte) (*entities.Snapshot, error) {
	var out printOutput
	if err := json.Unmarshal(bytes.TrimSpace(data), &out); err != nil {
		return nil, fmt.Errorf("failed to decode route script output: %w", err)
	}

	entries := make([]entities.Entry, 0, len(out.Routes))
	for _, row := range out.Routes {
		dst, err := netip.ParseAddr(row[0])
		if err != nil || !dst.Is4() {
			continue
		}
		hop, err := netip.ParseAddr(row[1])
		if err != nil || !hop.Is4() {
			hop = netip.Addr{}
		}
		entries = append(entries, entities.Entry{Destination: dst, NextHop: hop})
	}

	var gateway netip.Addr
	if out.Gateway != nil {
		if gw, err := netip.ParseAddr(*out.Gateway); err == nil && gw.Is4() {
			gateway = gw
		}
	}

	return entities.SnapshotFromEntries(entries, gateway), nil
}

// Mutate feeds the group to the script on stdin. Deletes run before adds;
// adds sharing a gateway and metric share one invocation.
func (p *ScriptProvider) Mutate(ctx context.Context, ops []types.Operation) (entities.MutateOutput, error) {
	path, err := p.scriptPath()
	if err != nil {
		return entities.MutateOutput{}, err
	}

	var out entities.MutateOutput
	var firstErr error
	for _, inv := range scriptInvocations(ops) {
		args := append([]string{"//nologo", path}, inv.args...)
		stdout, stderr, err := p.runner.Run(ctx, inv.stdin, "cscript", args...)
		out.Stdout = append(out.Stdout, stdout...)
		out.Stderr = append(out.Stderr, stderr...)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return out, firstErr
}

type scriptInvocation struct {
	args  []string
	stdin []byte
}

func scriptInvocations(ops []types.Operation) []scriptInvocation {
	type addKey struct {
		gateway netip.Addr
		metric  int
	}

	var deletes strings.Builder
	adds := make(map[addKey]*strings.Builder)
	var order []addKey

	for _, op := range ops {
		switch op.Action {
		case types.RouteActionDelete:
			fmt.Fprintln(&deletes, op.Destination)
		case types.RouteActionAdd:
			key := addKey{op.Gateway, op.Metric}
			b, ok := adds[key]
			if !ok {
				b = &strings.Builder{}
				adds[key] = b
				order = append(order, key)
			}
			fmt.Fprintln(b, op.Destination)
		}
	}

	var invs []scriptInvocation
	if deletes.Len() > 0 {
		invs = append(invs, scriptInvocation{args: []string{"delete"}, stdin: []byte(deletes.String())})
	}
	for _, key := range order {
		invs = append(invs, scriptInvocation{
			args:  []string{"add", fmt.Sprintf("/m:%d", key.metric), "/g:" + key.gateway.String()},
			stdin: []byte(adds[key].String()),
		})
	}
	return invs
}
