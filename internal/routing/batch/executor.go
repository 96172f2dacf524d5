package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/wesleywu/lucky-route/internal/logger"
	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/metrics"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// ProgressFunc receives the number of completed operations out of total
type ProgressFunc func(done, total int)

// Options configures an Executor
type Options struct {
	Concurrency int       // parallel groups, at least 1
	GroupSize   int       // operations per provider invocation, at least 1
	Diagnostics io.Writer // receives provider stderr and group failures; defaults to os.Stderr
	Metrics     *metrics.Recorder
}

// Result summarizes one Execute call
type Result struct {
	Total        int
	Groups       int
	FailedGroups int
	Failures     []error
}

// Executor applies operations to the routing table through a provider.
// Groups run on a bounded worker pool; a failing group is recorded and the
// rest continue, except a permission failure which stops further dispatch.
type Executor struct {
	provider    entities.Provider
	concurrency int
	groupSize   int
	diagnostics io.Writer
	metrics     *metrics.Recorder
	log         *logger.Logger
	state       atomic.Int32
}

// NewExecutor creates an executor for the provider
func NewExecutor(provider entities.Provider, opts Options, log *logger.Logger) *Executor {
	concurrency := max(opts.Concurrency, 1)
	if limit := provider.MaxConcurrency(); limit > 0 && concurrency > limit {
		concurrency = limit
	}

	diagnostics := opts.Diagnostics
	if diagnostics == nil {
		diagnostics = os.Stderr
	}

	return &Executor{
		provider:    provider,
		concurrency: concurrency,
		groupSize:   max(opts.GroupSize, 1),
		diagnostics: diagnostics,
		metrics:     opts.Metrics,
		log:         log.WithComponent("batch"),
	}
}

// State returns the current lifecycle state
func (e *Executor) State() State {
	return State(e.state.Load())
}

// BeginPlanning marks that a plan is being built for the next Execute call
func (e *Executor) BeginPlanning() {
	e.state.Store(int32(StatePlanning))
}

// Execute chunks ops into groups and applies them. onProgress is called once
// with (0, total) before dispatch and then once per operation as its group
// returns, so the last call is (total, total). Calls are serialized.
//
// Per-group failures are reported on the diagnostics writer and in the
// result; they do not fail the call. A permission failure abandons the
// groups not yet started and is returned as the error.
func (e *Executor) Execute(ctx context.Context, ops []types.Operation, onProgress ProgressFunc) (*Result, error) {
	e.state.Store(int32(StateExecuting))
	if onProgress == nil {
		onProgress = func(int, int) {}
	}

	start := time.Now()
	groups := chunk(ops, e.groupSize)
	result := &Result{Total: len(ops), Groups: len(groups)}
	action := groupAction(ops)

	onProgress(0, result.Total)
	if len(groups) == 0 {
		e.state.Store(int32(StateCompleted))
		return result, nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		done    int
		fatal   error
		aborted atomic.Bool
	)

	pool, err := ants.NewPool(e.concurrency, ants.WithPanicHandler(func(p interface{}) {
		e.log.Error("route group panicked", "panic", p)
	}))
	if err != nil {
		e.state.Store(int32(StateFailed))
		return result, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	for i, group := range groups {
		if aborted.Load() {
			break
		}

		index, group := i, group
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if aborted.Load() {
				return
			}

			stderr, groupErr := e.runGroup(ctx, action, group)

			mu.Lock()
			defer mu.Unlock()

			if len(stderr) > 0 {
				fmt.Fprintf(e.diagnostics, "%s\n", stderr)
			}
			if aborted.Load() {
				return
			}
			if re, ok := types.AsRouteError(groupErr); ok && re.IsFatal() {
				fatal = groupErr
				aborted.Store(true)
				return
			}
			if groupErr != nil {
				result.FailedGroups++
				result.Failures = append(result.Failures, groupErr)
				e.log.GroupFailed(action, index, len(group), groupErr)
				fmt.Fprintf(e.diagnostics, "\nFailed to %s group %d (%d routes): %v\n", action, index, len(group), groupErr)
			}

			for range group {
				done++
				onProgress(done, result.Total)
			}
		})
		if err != nil {
			wg.Done()
			mu.Lock()
			result.FailedGroups++
			result.Failures = append(result.Failures, fmt.Errorf("failed to dispatch group %d: %w", index, err))
			for range group {
				done++
				onProgress(done, result.Total)
			}
			mu.Unlock()
		}
	}

	wg.Wait()

	e.log.BatchOperation(action, result.Total, result.Groups, result.FailedGroups, time.Since(start))

	if fatal != nil {
		e.state.Store(int32(StateFailed))
		return result, fatal
	}

	e.state.Store(int32(StateCompleted))
	return result, nil
}

// runGroup applies one group and returns the provider's trimmed stderr with the classified error.
// A panicking provider is reported as a failed group.
func (e *Executor) runGroup(ctx context.Context, action string, group []types.Operation) (stderr []byte, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = &types.RouteError{
				Kind:    types.ErrCommandExecution,
				Message: "route group panicked",
				Cause:   fmt.Errorf("%v", p),
			}
			e.metrics.RecordGroup(action, len(group), time.Since(start), false)
		}
	}()

	out, err := e.provider.Mutate(ctx, group)

	err = classify(out, err)
	e.metrics.RecordGroup(action, len(group), time.Since(start), err == nil)
	return bytes.TrimSpace(out.Stderr), err
}

// classify maps a provider failure to a route error. A failure that printed
// output but no diagnostics is how route tools report missing privileges.
func classify(out entities.MutateOutput, err error) error {
	if err == nil {
		return nil
	}

	if re, ok := types.AsRouteError(err); ok && re.IsPermissionError() {
		return re
	}

	if len(bytes.TrimSpace(out.Stdout)) > 0 && len(bytes.TrimSpace(out.Stderr)) == 0 {
		return &types.RouteError{
			Kind:    types.ErrPermission,
			Message: "route operation requires elevated privileges",
			Cause:   fmt.Errorf("%w: %s", err, bytes.TrimSpace(out.Stdout)),
		}
	}

	return &types.RouteError{
		Kind:    types.ErrCommandExecution,
		Message: "route command failed",
		Cause:   err,
	}
}

func chunk(ops []types.Operation, size int) [][]types.Operation {
	groups := make([][]types.Operation, 0, (len(ops)+size-1)/size)
	for start := 0; start < len(ops); start += size {
		end := min(start+size, len(ops))
		groups = append(groups, ops[start:end])
	}
	return groups
}

func groupAction(ops []types.Operation) string {
	if len(ops) == 0 {
		return "none"
	}
	action := ops[0].Action
	for _, op := range ops[1:] {
		if op.Action != action {
			return "mixed"
		}
	}
	return action.String()
}
