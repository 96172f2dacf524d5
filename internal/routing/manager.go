package routing

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/wesleywu/lucky-route/internal/logger"
	"github.com/wesleywu/lucky-route/internal/routing/batch"
	"github.com/wesleywu/lucky-route/internal/routing/cidr"
	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/reconcile"
)

// Manager converges the routing table to a block set: snapshot, plan, execute.
// It does not take the operation lock; callers hold it around each call.
type Manager struct {
	provider entities.Provider
	opts     batch.Options
	logger   *logger.Logger
}

// Report describes one Add or Delete run
type Report struct {
	Plan    *entities.Plan
	Deletes *batch.Result
	Adds    *batch.Result
	State   batch.State
}

// NewManager creates a manager for the provider
func NewManager(provider entities.Provider, opts batch.Options, logger *logger.Logger) *Manager {
	return &Manager{
		provider: provider,
		opts:     opts,
		logger:   logger.WithComponent("routing"),
	}
}

// Add routes every block through gateway, or through the table's default
// gateway when gateway is the zero Addr. Conflicting entries are deleted
// before the adds run; progress reports the adds.
func (m *Manager) Add(ctx context.Context, blocks []cidr.Block, gateway netip.Addr, metric int, progress batch.ProgressFunc) (*Report, error) {
	exec := batch.NewExecutor(m.provider, m.opts, m.logger)
	report := &Report{}

	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return report, err
	}

	exec.BeginPlanning()
	plan, err := reconcile.PlanAdd(blocks, snapshot, gateway, metric)
	if err != nil {
		return report, err
	}
	report.Plan = plan
	m.logger.PlanComputed("add", len(plan.ToAdd), len(plan.ToDelete))
	m.opts.Metrics.RecordPlan(len(plan.ToAdd), len(plan.ToDelete))

	if len(plan.ToDelete) > 0 {
		m.logger.Debug("Replacing conflicting routes", "count", len(plan.ToDelete))
		report.Deletes, err = exec.Execute(ctx, plan.DeleteOperations(), nil)
		report.State = exec.State()
		if err != nil {
			return report, err
		}
	}

	report.Adds, err = exec.Execute(ctx, plan.AddOperations(), progress)
	report.State = exec.State()
	return report, err
}

// Delete removes the blocks that are still present in the table
func (m *Manager) Delete(ctx context.Context, blocks []cidr.Block, progress batch.ProgressFunc) (*Report, error) {
	exec := batch.NewExecutor(m.provider, m.opts, m.logger)
	report := &Report{}

	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return report, err
	}

	exec.BeginPlanning()
	plan := reconcile.PlanDelete(blocks, snapshot)
	report.Plan = plan
	m.logger.PlanComputed("delete", 0, len(plan.ToDelete))
	m.opts.Metrics.RecordPlan(0, len(plan.ToDelete))

	report.Deletes, err = exec.Execute(ctx, plan.DeleteOperations(), progress)
	report.State = exec.State()
	return report, err
}

func (m *Manager) snapshot(ctx context.Context) (*entities.Snapshot, error) {
	snapshot, err := m.provider.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing table: %w", err)
	}

	gw := "none"
	if addr, ok := snapshot.DefaultGateway(); ok {
		gw = addr.String()
	}
	m.logger.SnapshotTaken(m.provider.Name(), snapshot.Len(), gw)
	return snapshot, nil
}
