//go:build !linux

package platform

import (
	"runtime"

	"github.com/wesleywu/lucky-route/internal/routing/entities"
	"github.com/wesleywu/lucky-route/internal/routing/types"
)

func newNetlinkProvider() (entities.Provider, error) {
	return nil, types.Errorf(types.ErrUnsupportedPlatform, "netlink backend is not available on platform %q", runtime.GOOS)
}
