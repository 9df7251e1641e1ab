package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/remiges-tech/batchsched/engine"
	"github.com/remiges-tech/batchsched/logger"
	"github.com/remiges-tech/batchsched/stats"
	"github.com/remiges-tech/batchsched/taskstore"
)

// Dispatcher runs up to a fixed number of batches concurrently, each
// invoking the Engine Adapter and writing the batch's outcome back through
// the Task Store.
type Dispatcher struct {
	adapter engine.Adapter
	store   *taskstore.Store
	stats   *stats.Collector
	log     logger.Logger
	sem     chan struct{}
}

// NewDispatcher builds a Dispatcher bounded to maxConcurrent batches
// in flight at once.
func NewDispatcher(adapter engine.Adapter, store *taskstore.Store, collector *stats.Collector, log logger.Logger, maxConcurrent int) *Dispatcher {
	return &Dispatcher{
		adapter: adapter,
		store:   store,
		stats:   collector,
		log:     log,
		sem:     make(chan struct{}, maxConcurrent),
	}
}

// Acquire blocks until a dispatcher slot is free or ctx is done. The
// Batcher calls this before handing off a formed batch.
func (d *Dispatcher) Acquire(ctx context.Context) error {
	select {
	case d.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight reports how many dispatcher slots are currently occupied by a
// batch still being processed, for GET /health's batching.in_flight_batches.
func (d *Dispatcher) InFlight() int {
	return len(d.sem)
}

// Dispatch processes batch in its own goroutine, releasing the slot
// acquired by a prior Acquire call once the batch settles. The caller must
// not reuse the slot; Dispatch owns releasing it.
func (d *Dispatcher) Dispatch(batch *Batch) {
	go func() {
		defer func() { <-d.sem }()
		d.process(batch)
	}()
}

func (d *Dispatcher) process(batch *Batch) {
	ctx := context.Background()
	outcomes, err := d.adapter.ProcessBatch(ctx, batch.Tasks)
	completedAt := time.Now()

	if err != nil {
		d.logf("batch %s: adapter error, failing all %d tasks: %v", batch.ID, len(batch.Tasks), err)
		for _, t := range batch.Tasks {
			d.failTask(t.TaskID, completedAt, err.Error())
			d.stats.RecordOutcome(false, "")
		}
		d.stats.RecordBatch(len(batch.Tasks))
		return
	}

	for i, t := range batch.Tasks {
		outcome := outcomes[i]
		if outcome.Err != nil {
			d.failTask(t.TaskID, completedAt, outcome.Err.Error())
			d.stats.RecordOutcome(false, outcome.Source)
			continue
		}
		d.completeTask(t.TaskID, completedAt, batch.ID, len(batch.Tasks), outcome)
		d.stats.RecordOutcome(true, outcome.Source)
	}
	d.stats.RecordBatch(len(batch.Tasks))
}

func (d *Dispatcher) failTask(taskID string, completedAt time.Time, reason string) {
	err := d.store.Transition(taskID, taskstore.StatusProcessing, taskstore.StatusFailed, func(t *taskstore.Task) {
		t.CompletedAt = completedAt
		t.Error = reason
	})
	if err != nil {
		d.logf("failed to transition task %s to failed: %v", taskID, err)
	}
}

func (d *Dispatcher) completeTask(taskID string, completedAt time.Time, batchID string, batchSize int, outcome engine.Outcome) {
	err := d.store.Transition(taskID, taskstore.StatusProcessing, taskstore.StatusCompleted, func(t *taskstore.Task) {
		t.CompletedAt = completedAt
		t.Result = &taskstore.Result{
			Response:        outcome.Response,
			TokensGenerated: outcome.TokensGenerated,
			BatchID:         batchID,
			BatchSize:       batchSize,
			Source:          outcome.Source,
		}
	})
	if err != nil {
		d.logf("failed to transition task %s to completed: %v", taskID, err)
	}
}

func (d *Dispatcher) logf(format string, args ...any) {
	if d.log != nil {
		d.log.Log(fmt.Sprintf(format, args...))
	}
}
