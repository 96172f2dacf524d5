package lock

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleywu/lucky-route/internal/routing/types"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "op.lock")
	l := New(path, 0)
	assert.Equal(t, DefaultStaleAfter, l.StaleAfter)

	require.NoError(t, l.Acquire(false))
	assert.True(t, l.held)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	require.NoError(t, l.Release())
	assert.False(t, l.held)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// second release is harmless
	assert.NoError(t, l.Release())
}

func TestFreshLockBlocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "op.lock")
	first := New(path, time.Hour)
	require.NoError(t, first.Acquire(false))

	second := New(path, time.Hour)
	err := second.Acquire(false)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.ErrLockHeld))
	assert.False(t, second.held)

	// the loser must not remove the holder's marker
	require.NoError(t, second.Release())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestForceOverridesFreshLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "op.lock")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	l := New(path, time.Hour)
	require.NoError(t, l.Acquire(true))
	assert.True(t, l.held)
	require.NoError(t, l.Release())
}

func TestStaleLockCleared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "op.lock")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	old := time.Now().Add(-31 * time.Minute)
	require.NoError(t, os.Chtimes(path, old, old))

	l := New(path, 30*time.Minute)
	require.NoError(t, l.Acquire(false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), info.ModTime(), time.Minute)
	require.NoError(t, l.Release())
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join(os.TempDir(), "lucky-route-operation.lock"), DefaultPath())
	assert.Equal(t, DefaultPath(), New("", 0).Path)
}
