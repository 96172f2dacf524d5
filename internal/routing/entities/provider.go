package entities

import (
	"context"

	"github.com/wesleywu/lucky-route/internal/routing/types"
)

// MutateOutput is what the external primitive printed while applying a group
type MutateOutput struct {
	Stdout []byte
	Stderr []byte
}

// Provider reads and mutates the OS routing table
type Provider interface {
	// Name identifies the backend in logs
	Name() string

	// Snapshot reads the current table and default gateway
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Mutate applies a group of operations in a single invocation of the
	// underlying primitive. A non-nil error means the group failed.
	Mutate(ctx context.Context, ops []types.Operation) (MutateOutput, error)

	// MaxConcurrency bounds parallel Mutate calls; 0 means no limit
	MaxConcurrency() int
}
