package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/remiges-tech/batchsched/logger"
	"github.com/remiges-tech/batchsched/queue"
	"github.com/remiges-tech/batchsched/taskstore"
)

// Batcher implements the cooperative batch-formation loop: wait for work,
// drain what's available, optionally wait a little longer for more to
// arrive, then hand the batch to the Dispatcher.
type Batcher struct {
	queue      *queue.Queue
	store      *taskstore.Store
	dispatcher *Dispatcher
	log        logger.Logger

	maxBatchSize int
	waitTimeout  time.Duration
}

// NewBatcher builds a Batcher. maxBatchSize is the most tasks a single batch
// may hold; waitTimeout bounds how long a partially-filled batch lingers for
// more arrivals before being dispatched anyway.
func NewBatcher(q *queue.Queue, store *taskstore.Store, dispatcher *Dispatcher, log logger.Logger, maxBatchSize int, waitTimeout time.Duration) *Batcher {
	return &Batcher{
		queue:        q,
		store:        store,
		dispatcher:   dispatcher,
		log:          log,
		maxBatchSize: maxBatchSize,
		waitTimeout:  waitTimeout,
	}
}

// Run drives the formation loop until ctx is cancelled. Each iteration forms
// at most one batch and hands it to the Dispatcher before looping.
func (b *Batcher) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		b.runOnce(ctx)
	}
}

func (b *Batcher) runOnce(ctx context.Context) {
	if !b.queue.AwaitNonEmpty(200 * time.Millisecond) {
		return
	}

	t0 := time.Now()
	drained := b.queue.DrainUpTo(b.maxBatchSize)

	for len(drained) < b.maxBatchSize {
		remaining := b.waitTimeout - time.Since(t0)
		if remaining <= 0 {
			break
		}
		if !b.queue.AwaitNonEmpty(remaining) {
			break
		}
		drained = append(drained, b.queue.DrainUpTo(b.maxBatchSize-len(drained))...)
	}

	if len(drained) == 0 {
		return
	}

	claimed := b.claim(drained)
	if len(claimed) == 0 {
		return
	}

	batch := &Batch{
		ID:       uuid.NewString(),
		Tasks:    claimed,
		FormedAt: t0,
	}

	if err := b.dispatcher.Acquire(ctx); err != nil {
		// Shutting down: the caller is responsible for settling any tasks
		// left claimed but undispatched.
		return
	}
	b.dispatcher.Dispatch(batch)
}

// claim transitions each drained task from queued to processing, recording
// started_at. A task whose transition fails (by construction this should
// never happen — each task is drained by exactly one batcher iteration) is
// logged and dropped from the batch rather than silently carried forward.
func (b *Batcher) claim(tasks []*taskstore.Task) []*taskstore.Task {
	claimed := make([]*taskstore.Task, 0, len(tasks))
	now := time.Now()
	for _, t := range tasks {
		err := b.store.Transition(t.TaskID, taskstore.StatusQueued, taskstore.StatusProcessing, func(task *taskstore.Task) {
			task.StartedAt = now
		})
		if err != nil {
			if b.log != nil {
				b.log.Log(fmt.Sprintf("skipping task %s: claim failed: %v", t.TaskID, err))
			}
			continue
		}
		claimed = append(claimed, t)
	}
	return claimed
}
