// Package engine implements the Engine Adapter: the component that actually
// produces inference responses for a batch, in either mock or real mode.
package engine

import (
	"context"

	"github.com/remiges-tech/batchsched/taskstore"
)

// Outcome is the Engine Adapter's per-task result, before the dispatcher
// attaches batch_id and batch_size.
type Outcome struct {
	TaskID          string
	Response        string
	TokensGenerated int
	Source          string // "real", "mock", or "mock-fallback"
	Err             error  // non-nil: this task failed; Response/TokensGenerated are unset
}

// Adapter processes one batch of tasks and returns one Outcome per task, in
// the same order as tasks. A non-nil returned error indicates an
// adapter-level failure (not a per-task one): the dispatcher fails every
// task in the batch.
type Adapter interface {
	ProcessBatch(ctx context.Context, tasks []*taskstore.Task) ([]Outcome, error)
}
