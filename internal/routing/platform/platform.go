// Package platform selects and implements the route table backends.
package platform

import (
	"runtime"

	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// Backend names accepted by New
const (
	BackendAuto    = "auto"
	BackendCommand = "command"
	BackendScript  = "script"
	BackendNetlink = "netlink"
)

// Options configures backend selection
type Options struct {
	Backend   string // auto, command, script or netlink
	Runner    Runner // defaults to ExecRunner
	ScriptDir string // where the script backend writes its helper
}

// NewForHost selects a backend for the running platform
func NewForHost(opts Options) (entities.Provider, error) {
	return New(runtime.GOOS, opts)
}

// New selects a backend for goos
func New(goos string, opts Options) (entities.Provider, error) {
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	backend := opts.Backend
	if backend == "" {
		backend = BackendAuto
	}

	switch goos {
	case "windows":
		switch backend {
		case BackendAuto, BackendCommand:
			return NewWindowsProvider(runner), nil
		case BackendScript:
			return NewScriptProvider(runner, opts.ScriptDir), nil
		}
	case "darwin", "freebsd":
		switch backend {
		case BackendAuto, BackendCommand:
			return NewBSDProvider(runner), nil
		}
	case "linux":
		switch backend {
		case BackendAuto, BackendNetlink:
			return newNetlinkProvider()
		}
	default:
		return nil, types.Errorf(types.ErrUnsupportedPlatform, "This feature is not available on platform %q", goos)
	}

	return nil, types.Errorf(types.ErrUnsupportedPlatform, "backend %q is not available on platform %q", backend, goos)
}
