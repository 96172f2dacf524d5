package main

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/wesleywu/lucky-route/internal/config"
	"github.com/wesleywu/lucky-route/internal/routing"
	"github.com/wesleywu/lucky-route/internal/routing/batch"
	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/lock"
	"github.com/wesleywu/lucky-route/internal/routing/platform"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

var (
	routeMetric int
	forceLock   bool
)

// newProvider builds the routing table backend; tests replace it
var newProvider = func(backend string) (entities.Provider, error) {
	return platform.NewForHost(platform.Options{Backend: backend})
}

func newRouteCommand() *cobra.Command {
	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Add or delete the routes listed in a routes file",
	}

	addCmd := &cobra.Command{
		Use:   "add <file> [gateway]",
		Short: "Route every block in file through gateway (default: the current default gateway)",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runRouteAdd,
	}
	addCmd.Flags().IntVarP(&routeMetric, "metric", "m", 0, "Routing metric (default from config, 5)")
	addCmd.Flags().BoolVar(&forceLock, "force", false, "Ignore operation lock and continue anyway")

	deleteCmd := &cobra.Command{
		Use:   "delete <file>",
		Short: "Delete every block in file that is still in the routing table",
		Args:  cobra.ExactArgs(1),
		RunE:  runRouteDelete,
	}
	deleteCmd.Flags().BoolVar(&forceLock, "force", false, "Ignore operation lock and continue anyway")

	routeCmd.AddCommand(addCmd, deleteCmd)
	return routeCmd
}

func runRouteAdd(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	defer s.finish()

	blocks, err := config.LoadRoutes(args[0])
	if err != nil {
		return err
	}

	var gateway netip.Addr
	if len(args) == 2 {
		gateway, err = netip.ParseAddr(args[1])
		if err != nil || !gateway.Is4() {
			return types.Errorf(types.ErrMalformedInput, "invalid gateway %q", args[1])
		}
	}

	metric := s.cfg.RouteMetric
	if cmd.Flags().Changed("metric") {
		metric = routeMetric
	}

	return withRoutes(commandContext(cmd), s, func(ctx context.Context, m *routing.Manager) (*routing.Report, error) {
		return m.Add(ctx, blocks, gateway, metric, newProgressPrinter(s.out, "Added").Update)
	})
}

func runRouteDelete(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	defer s.finish()

	blocks, err := config.LoadRoutes(args[0])
	if err != nil {
		return err
	}

	return withRoutes(commandContext(cmd), s, func(ctx context.Context, m *routing.Manager) (*routing.Report, error) {
		return m.Delete(ctx, blocks, newProgressPrinter(s.out, "Deleted").Update)
	})
}

// withRoutes holds the operation lock around one manager run
func withRoutes(ctx context.Context, s *settings, run func(context.Context, *routing.Manager) (*routing.Report, error)) error {
	provider, err := newProvider(s.cfg.Backend)
	if err != nil {
		return err
	}

	l := lock.New(s.cfg.LockFile, s.cfg.LockStaleDuration())
	if err := l.Acquire(forceLock); err != nil {
		return err
	}
	s.log.LockAcquired(l.Path, forceLock)
	defer func() {
		if err := l.Release(); err != nil {
			s.log.Warn("Failed to release operation lock", "error", err)
		}
	}()

	manager := routing.NewManager(provider, batch.Options{
		Concurrency: s.cfg.ConcurrencyLimit,
		GroupSize:   s.cfg.GroupSize,
		Diagnostics: s.diagnostics(),
		Metrics:     s.metrics,
	}, s.log)

	report, err := run(ctx, manager)
	if err != nil {
		if re, ok := types.AsRouteError(err); ok && re.Cause != nil {
			s.log.Debug("Route operation failed", "kind", re.Kind.String(), "cause", re.Cause)
		}
		return err
	}

	if failed := failedGroups(report); failed > 0 {
		fmt.Fprintf(s.diagnostics(), "%d route group(s) failed, see messages above\n", failed)
	}
	return nil
}

func failedGroups(report *routing.Report) int {
	failed := 0
	for _, r := range []*batch.Result{report.Deletes, report.Adds} {
		if r != nil {
			failed += r.FailedGroups
		}
	}
	return failed
}
