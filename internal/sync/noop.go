package sync

import (
	"context"

	"github.com/memmcp/memmcp/internal/store"
)

// Noop satisfies Syncer for file-only mode: no index exists, so every
// operation is a successful no-op and Enabled reports false.
type Noop struct{}

var _ Syncer = Noop{}

func (Noop) Enabled() bool { return false }

func (Noop) Enqueue(string) {}

func (Noop) Delete(context.Context, string) error { return nil }

func (Noop) SyncFile(context.Context, string) error { return nil }

func (Noop) SyncAll(context.Context) error { return nil }

// Status reports no records; the status surface renders this as sync
// disabled.
func (Noop) Status(context.Context) ([]store.SyncRecord, error) { return nil, nil }
