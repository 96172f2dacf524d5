package batch

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleywu/lucky-route/internal/logger"
	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/metrics"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

type fakeProvider struct {
	limit    int
	delay    time.Duration
	mutate   func(ops []types.Operation) (entities.MutateOutput, error)
	calls    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Snapshot(context.Context) (*entities.Snapshot, error) {
	return entities.NewSnapshot(nil, netip.Addr{}), nil
}

func (f *fakeProvider) Mutate(_ context.Context, ops []types.Operation) (entities.MutateOutput, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.mutate != nil {
		return f.mutate(ops)
	}
	return entities.MutateOutput{}, nil
}

func (f *fakeProvider) MaxConcurrency() int { return f.limit }

func addOps(n int) []types.Operation {
	ops := make([]types.Operation, n)
	gw := netip.MustParseAddr("192.168.1.1")
	for i := range ops {
		addr := netip.AddrFrom4([4]byte{10, byte(i >> 8), byte(i), 0})
		ops[i] = types.Operation{
			Action:      types.RouteActionAdd,
			Destination: netip.PrefixFrom(addr, 24),
			Gateway:     gw,
			Metric:      5,
		}
	}
	return ops
}

type progressLog struct {
	mu    sync.Mutex
	calls [][2]int
}

func (p *progressLog) record(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, [2]int{done, total})
}

func newTestExecutor(p entities.Provider, concurrency, groupSize int, diag *bytes.Buffer) *Executor {
	return NewExecutor(p, Options{
		Concurrency: concurrency,
		GroupSize:   groupSize,
		Diagnostics: diag,
		Metrics:     metrics.NewRecorder(),
	}, logger.Discard())
}

func TestExecuteProgress(t *testing.T) {
	for _, concurrency := range []int{1, 2, 4, 16} {
		t.Run("", func(t *testing.T) {
			provider := &fakeProvider{delay: time.Millisecond}
			exec := newTestExecutor(provider, concurrency, 100, &bytes.Buffer{})
			progress := &progressLog{}

			result, err := exec.Execute(context.Background(), addOps(250), progress.record)
			require.NoError(t, err)

			assert.Equal(t, 250, result.Total)
			assert.Equal(t, 3, result.Groups)
			assert.Zero(t, result.FailedGroups)
			assert.Equal(t, int32(3), provider.calls.Load())
			assert.Equal(t, StateCompleted, exec.State())

			require.NotEmpty(t, progress.calls)
			assert.Equal(t, [2]int{0, 250}, progress.calls[0])
			finals := 0
			for i, call := range progress.calls {
				assert.Equal(t, 250, call[1])
				if i > 0 {
					assert.GreaterOrEqual(t, call[0], progress.calls[i-1][0])
				}
				if call[0] == 250 {
					finals++
				}
			}
			assert.Equal(t, 1, finals)
			assert.Equal(t, [2]int{250, 250}, progress.calls[len(progress.calls)-1])
		})
	}
}

func TestExecuteEmpty(t *testing.T) {
	provider := &fakeProvider{}
	exec := newTestExecutor(provider, 4, 100, &bytes.Buffer{})
	progress := &progressLog{}

	result, err := exec.Execute(context.Background(), nil, progress.record)
	require.NoError(t, err)

	assert.Zero(t, result.Groups)
	assert.Zero(t, provider.calls.Load())
	assert.Equal(t, [][2]int{{0, 0}}, progress.calls)
	assert.Equal(t, StateCompleted, exec.State())
}

func TestExecuteContainsCommandFailure(t *testing.T) {
	failing := netip.MustParsePrefix("10.0.100.0/24")
	provider := &fakeProvider{
		mutate: func(ops []types.Operation) (entities.MutateOutput, error) {
			if ops[0].Destination == failing {
				return entities.MutateOutput{Stderr: []byte("route: writing to routing socket: File exists\n")}, errors.New("exit status 1")
			}
			return entities.MutateOutput{}, nil
		},
	}
	var diag bytes.Buffer
	exec := newTestExecutor(provider, 2, 100, &diag)
	progress := &progressLog{}

	result, err := exec.Execute(context.Background(), addOps(250), progress.record)
	require.NoError(t, err)

	assert.Equal(t, int32(3), provider.calls.Load())
	assert.Equal(t, 1, result.FailedGroups)
	require.Len(t, result.Failures, 1)
	assert.True(t, types.IsKind(result.Failures[0], types.ErrCommandExecution))
	assert.Equal(t, StateCompleted, exec.State())
	assert.Equal(t, [2]int{250, 250}, progress.calls[len(progress.calls)-1])
	assert.Contains(t, diag.String(), "File exists")
	assert.Contains(t, diag.String(), "Failed to add group 1")
}

func TestExecutePermissionAborts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]types.Operation) (entities.MutateOutput, error)
	}{
		{
			name: "output without diagnostics",
			mutate: func([]types.Operation) (entities.MutateOutput, error) {
				return entities.MutateOutput{Stdout: []byte("The requested operation requires elevation.")}, errors.New("exit status 1")
			},
		},
		{
			name: "route error",
			mutate: func([]types.Operation) (entities.MutateOutput, error) {
				return entities.MutateOutput{}, types.NewError(types.ErrPermission, "operation not permitted", nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{mutate: tt.mutate}
			exec := newTestExecutor(provider, 1, 100, &bytes.Buffer{})
			progress := &progressLog{}

			result, err := exec.Execute(context.Background(), addOps(250), progress.record)
			require.Error(t, err)

			assert.True(t, types.IsKind(err, types.ErrPermission))
			assert.Equal(t, int32(1), provider.calls.Load())
			assert.Zero(t, result.FailedGroups)
			assert.Equal(t, StateFailed, exec.State())
			for _, call := range progress.calls {
				assert.Less(t, call[0], 250)
			}
		})
	}
}

func TestConcurrencyBoundedByProvider(t *testing.T) {
	provider := &fakeProvider{limit: 1, delay: 2 * time.Millisecond}
	exec := newTestExecutor(provider, 8, 10, &bytes.Buffer{})
	assert.Equal(t, 1, exec.concurrency)

	_, err := exec.Execute(context.Background(), addOps(100), nil)
	require.NoError(t, err)

	assert.Equal(t, int32(10), provider.calls.Load())
	assert.Equal(t, int32(1), provider.peak.Load())
}

func TestConcurrencyBoundedByPool(t *testing.T) {
	provider := &fakeProvider{delay: 5 * time.Millisecond}
	exec := newTestExecutor(provider, 3, 10, &bytes.Buffer{})

	_, err := exec.Execute(context.Background(), addOps(200), nil)
	require.NoError(t, err)

	assert.Equal(t, int32(20), provider.calls.Load())
	assert.LessOrEqual(t, provider.peak.Load(), int32(3))
}

func TestStateTransitions(t *testing.T) {
	exec := newTestExecutor(&fakeProvider{}, 1, 10, &bytes.Buffer{})
	assert.Equal(t, StateIdle, exec.State())

	exec.BeginPlanning()
	assert.Equal(t, StatePlanning, exec.State())

	_, err := exec.Execute(context.Background(), addOps(5), nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, exec.State())
	assert.Equal(t, "Completed", exec.State().String())
}

func TestChunk(t *testing.T) {
	ops := addOps(7)

	groups := chunk(ops, 3)
	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 3)
	assert.Len(t, groups[2], 1)
	assert.Equal(t, ops[6], groups[2][0])

	assert.Empty(t, chunk(nil, 3))
	assert.Len(t, chunk(ops, 100), 1)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(entities.MutateOutput{Stdout: []byte("ok")}, nil))

	err := classify(entities.MutateOutput{Stderr: []byte("bad gateway")}, errors.New("exit status 1"))
	assert.True(t, types.IsKind(err, types.ErrCommandExecution))

	err = classify(entities.MutateOutput{Stdout: []byte("denied"), Stderr: []byte("  \n")}, errors.New("exit status 1"))
	assert.True(t, types.IsKind(err, types.ErrPermission))

	err = classify(entities.MutateOutput{}, errors.New("exit status 1"))
	assert.True(t, types.IsKind(err, types.ErrCommandExecution))
}

func TestGroupAction(t *testing.T) {
	assert.Equal(t, "none", groupAction(nil))
	assert.Equal(t, "add", groupAction(addOps(2)))

	mixed := append(addOps(1), types.Operation{Action: types.RouteActionDelete})
	assert.Equal(t, "mixed", groupAction(mixed))
}

func TestExecuteContainsProviderPanic(t *testing.T) {
	failing := netip.MustParsePrefix("10.0.100.0/24")
	provider := &fakeProvider{
		mutate: func(ops []types.Operation) (entities.MutateOutput, error) {
			if ops[0].Destination == failing {
				panic("routing socket closed")
			}
			return entities.MutateOutput{}, nil
		},
	}
	var diag bytes.Buffer
	exec := newTestExecutor(provider, 2, 100, &diag)
	progress := &progressLog{}

	result, err := exec.Execute(context.Background(), addOps(250), progress.record)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FailedGroups)
	require.Len(t, result.Failures, 1)
	assert.True(t, types.IsKind(result.Failures[0], types.ErrCommandExecution))
	assert.Contains(t, result.Failures[0].Error(), "routing socket closed")
	assert.Equal(t, StateCompleted, exec.State())
	assert.Equal(t, [2]int{250, 250}, progress.calls[len(progress.calls)-1])
	assert.Contains(t, diag.String(), "Failed to add group 1")
}
