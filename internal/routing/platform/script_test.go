package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleywu/lucky-route/internal/routing/types"
)

func TestParseScriptPrint(t *testing.T) {
	snap, err := parseScriptPrint([]byte(`{"gateway":"192.168.1.1","routes":[["1.0.1.0","192.168.1.1"],["127.0.0.0","127.0.0.1"],["bogus","x"]]}`))
	require.NoError(t, err)

	gw, ok := snap.DefaultGateway()
	assert.True(t, ok)
	assert.Equal(t, "192.168.1.1", gw.String())
	assert.Equal(t, 2, snap.Len())

	snap, err = parseScriptPrint([]byte(`{"gateway":null,"routes":[]}`))
	require.NoError(t, err)
	_, ok = snap.DefaultGateway()
	assert.False(t, ok)

	_, err = parseScriptPrint([]byte("Input Error: Can not find script file"))
	assert.Error(t, err)
}

func TestScriptProviderWritesScript(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{stdout: `{"gateway":"10.0.0.1","routes":[]}`}
	p := NewScriptProvider(runner, dir)
	assert.Equal(t, 1, p.MaxConcurrency())

	_, err := p.Snapshot(context.Background())
	require.NoError(t, err)

	path := filepath.Join(dir, "lucky-route-nsetroute.js")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, nsetroute, data)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "cscript", runner.calls[0].name)
	assert.Equal(t, []string{"//nologo", path, "print"}, runner.calls[0].args)
}

func TestScriptProviderMutate(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{}
	p := NewScriptProvider(runner, dir)

	_, err := p.Mutate(context.Background(), []types.Operation{
		addOp("1.0.1.0/24", "192.168.1.1", 5),
		deleteOp("36.96.0.0/11"),
		addOp("1.0.2.0/23", "192.168.1.1", 5),
		addOp("1.0.8.0/21", "10.0.0.1", 7),
	})
	require.NoError(t, err)

	path := filepath.Join(dir, "lucky-route-nsetroute.js")
	require.Len(t, runner.calls, 3)
	assert.Equal(t, []string{"//nologo", path, "delete"}, runner.calls[0].args)
	assert.Equal(t, "36.96.0.0/11\n", runner.calls[0].stdin)
	assert.Equal(t, []string{"//nologo", path, "add", "/m:5", "/g:192.168.1.1"}, runner.calls[1].args)
	assert.Equal(t, "1.0.1.0/24\n1.0.2.0/23\n", runner.calls[1].stdin)
	assert.Equal(t, []string{"//nologo", path, "add", "/m:7", "/g:10.0.0.1"}, runner.calls[2].args)
}

func TestScriptInvocationsEmpty(t *testing.T) {
	assert.Empty(t, scriptInvocations(nil))
	assert.Len(t, scriptInvocations([]types.Operation{deleteOp("1.0.0.0/24")}), 1)
}
