package batch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/remiges-tech/batchsched/batch"
	"github.com/remiges-tech/batchsched/engine"
	"github.com/remiges-tech/batchsched/queue"
	"github.com/remiges-tech/batchsched/stats"
	"github.com/remiges-tech/batchsched/taskstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchPriorityMix(t *testing.T) {
	b := &batch.Batch{Tasks: []*taskstore.Task{
		{Priority: taskstore.PriorityHigh},
		{Priority: taskstore.PriorityHigh},
		{Priority: taskstore.PriorityLow},
	}}
	mix := b.PriorityMix()
	assert.Equal(t, 2, mix[taskstore.PriorityHigh])
	assert.Equal(t, 1, mix[taskstore.PriorityLow])
	assert.Equal(t, 0, mix[taskstore.PriorityNormal])
}

// stubLogger collects logged lines for assertions instead of writing
// anywhere real.
type stubLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *stubLogger) Log(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, message)
}

func (l *stubLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// countingAdapter implements engine.Adapter, completing every task with a
// fixed response after an optional artificial delay.
type countingAdapter struct {
	mu     sync.Mutex
	delay  time.Duration
	seen   int
	fail   bool
	failAt map[string]bool
}

func (a *countingAdapter) seenCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seen
}

func (a *countingAdapter) ProcessBatch(ctx context.Context, tasks []*taskstore.Task) ([]engine.Outcome, error) {
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	a.mu.Lock()
	a.seen += len(tasks)
	a.mu.Unlock()

	if a.fail {
		return nil, errors.New("adapter exploded")
	}

	out := make([]engine.Outcome, len(tasks))
	for i, task := range tasks {
		if a.failAt != nil && a.failAt[task.TaskID] {
			out[i] = engine.Outcome{TaskID: task.TaskID, Err: errors.New("task failed")}
			continue
		}
		out[i] = engine.Outcome{TaskID: task.TaskID, Response: "ok", TokensGenerated: 1, Source: "mock"}
	}
	return out, nil
}

func TestBatcherFormsAndDispatchesBatch(t *testing.T) {
	q := queue.New(0)
	store := taskstore.NewStore(0, 0)
	adapter := &countingAdapter{}
	collector := stats.New(nil)
	dispatcher := batch.NewDispatcher(adapter, store, collector, nil, 2)
	batcher := batch.NewBatcher(q, store, dispatcher, nil, 4, 50*time.Millisecond)

	task := store.Create("alice", taskstore.PriorityNormal, "hello", taskstore.Parameters{})
	require.NoError(t, q.Enqueue(task))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go batcher.Run(ctx)

	require.Eventually(t, func() bool {
		got, err := store.Get(task.TaskID)
		return err == nil && got.Status == taskstore.StatusCompleted
	}, 400*time.Millisecond, 10*time.Millisecond)

	got, err := store.Get(task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Result.Response)
}

func TestBatcherSkipsStaleTransition(t *testing.T) {
	q := queue.New(0)
	store := taskstore.NewStore(0, 0)
	adapter := &countingAdapter{}
	collector := stats.New(nil)
	log := &stubLogger{}
	dispatcher := batch.NewDispatcher(adapter, store, collector, log, 2)
	batcher := batch.NewBatcher(q, store, dispatcher, log, 4, 20*time.Millisecond)

	task := store.Create("alice", taskstore.PriorityNormal, "hello", taskstore.Parameters{})
	require.NoError(t, q.Enqueue(task))
	// Force the task out of `queued` before the batcher claims it, so its
	// transition attempt is stale by construction.
	require.NoError(t, store.Transition(task.TaskID, taskstore.StatusQueued, taskstore.StatusProcessing, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	batcher.Run(ctx)

	assert.Equal(t, 0, adapter.seen)
	assert.Greater(t, log.count(), 0)
}

func TestDispatcherFailsAllTasksOnAdapterError(t *testing.T) {
	store := taskstore.NewStore(0, 0)
	adapter := &countingAdapter{fail: true}
	collector := stats.New(nil)
	dispatcher := batch.NewDispatcher(adapter, store, collector, nil, 1)

	t1 := store.Create("alice", taskstore.PriorityHigh, "a", taskstore.Parameters{})
	t2 := store.Create("alice", taskstore.PriorityHigh, "b", taskstore.Parameters{})
	require.NoError(t, store.Transition(t1.TaskID, taskstore.StatusQueued, taskstore.StatusProcessing, nil))
	require.NoError(t, store.Transition(t2.TaskID, taskstore.StatusQueued, taskstore.StatusProcessing, nil))

	ctx := context.Background()
	require.NoError(t, dispatcher.Acquire(ctx))
	dispatcher.Dispatch(&batch.Batch{ID: "b1", Tasks: []*taskstore.Task{t1, t2}})

	require.Eventually(t, func() bool {
		got, err := store.Get(t1.TaskID)
		return err == nil && got.Status == taskstore.StatusFailed
	}, 200*time.Millisecond, 5*time.Millisecond)

	got2, err := store.Get(t2.TaskID)
	require.NoError(t, err)
	assert.Equal(t, taskstore.StatusFailed, got2.Status)
	assert.Equal(t, "adapter exploded", got2.Error)
}

// TestBatcherFormsSingleBatchOfEight grounds scenario S2: 8 normal-priority
// tasks queued before the batcher starts, under default-sized limits, land
// in one batch of size 8 sharing a batch_id.
func TestBatcherFormsSingleBatchOfEight(t *testing.T) {
	q := queue.New(0)
	store := taskstore.NewStore(0, 0)
	adapter := &countingAdapter{}
	collector := stats.New(nil)
	dispatcher := batch.NewDispatcher(adapter, store, collector, nil, 4)
	batcher := batch.NewBatcher(q, store, dispatcher, nil, 32, 100*time.Millisecond)

	tasks := make([]*taskstore.Task, 8)
	for i := range tasks {
		tasks[i] = store.Create("alice", taskstore.PriorityNormal, "hello", taskstore.Parameters{})
		require.NoError(t, q.Enqueue(tasks[i]))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go batcher.Run(ctx)

	require.Eventually(t, func() bool {
		for _, tsk := range tasks {
			got, err := store.Get(tsk.TaskID)
			if err != nil || got.Status != taskstore.StatusCompleted {
				return false
			}
		}
		return true
	}, 1500*time.Millisecond, 10*time.Millisecond)

	first, err := store.Get(tasks[0].TaskID)
	require.NoError(t, err)
	require.NotEmpty(t, first.Result.BatchID)
	assert.Equal(t, 8, first.Result.BatchSize)
	for _, tsk := range tasks[1:] {
		got, err := store.Get(tsk.TaskID)
		require.NoError(t, err)
		assert.Equal(t, first.Result.BatchID, got.Result.BatchID)
	}
}

// TestBatcherDrainsHighBeforeNormalOrLow grounds scenario S3: tasks enqueued
// low, then high, then normal within one wait window must form a first
// batch containing only the high-priority tasks.
func TestBatcherDrainsHighBeforeNormalOrLow(t *testing.T) {
	q := queue.New(0)
	store := taskstore.NewStore(0, 0)
	adapter := &countingAdapter{delay: 50 * time.Millisecond}
	collector := stats.New(nil)
	dispatcher := batch.NewDispatcher(adapter, store, collector, nil, 1)
	batcher := batch.NewBatcher(q, store, dispatcher, nil, 5, 300*time.Millisecond)

	enqueueN := func(n int, p taskstore.Priority) []*taskstore.Task {
		out := make([]*taskstore.Task, n)
		for i := range out {
			out[i] = store.Create("alice", p, "hello", taskstore.Parameters{})
			require.NoError(t, q.Enqueue(out[i]))
		}
		return out
	}

	_ = enqueueN(10, taskstore.PriorityLow)
	high := enqueueN(5, taskstore.PriorityHigh)
	_ = enqueueN(5, taskstore.PriorityNormal)

	// A tight deadline lets the first batch (the 5 high-priority tasks,
	// which fill maxBatchSize exactly) form and dispatch, but keeps the
	// single dispatcher slot held by adapter.delay so a second batch's
	// Acquire never completes before ctx expires.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	batcher.Run(ctx)

	for _, tsk := range high {
		got, err := store.Get(tsk.TaskID)
		require.NoError(t, err)
		assert.NotEqual(t, taskstore.StatusQueued, got.Status, "high-priority task should have been claimed first")
	}

	require.Eventually(t, func() bool { return adapter.seenCount() > 0 }, 200*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 5, adapter.seenCount(), "first batch should contain exactly the 5 high-priority tasks")
}

func TestDispatcherPerTaskFailureDoesNotFailBatch(t *testing.T) {
	store := taskstore.NewStore(0, 0)
	t1 := store.Create("alice", taskstore.PriorityHigh, "a", taskstore.Parameters{})
	t2 := store.Create("alice", taskstore.PriorityHigh, "b", taskstore.Parameters{})
	adapter := &countingAdapter{failAt: map[string]bool{t1.TaskID: true}}
	collector := stats.New(nil)
	dispatcher := batch.NewDispatcher(adapter, store, collector, nil, 1)

	require.NoError(t, store.Transition(t1.TaskID, taskstore.StatusQueued, taskstore.StatusProcessing, nil))
	require.NoError(t, store.Transition(t2.TaskID, taskstore.StatusQueued, taskstore.StatusProcessing, nil))

	ctx := context.Background()
	require.NoError(t, dispatcher.Acquire(ctx))
	dispatcher.Dispatch(&batch.Batch{ID: "b1", Tasks: []*taskstore.Task{t1, t2}})

	require.Eventually(t, func() bool {
		got, err := store.Get(t2.TaskID)
		return err == nil && got.Status == taskstore.StatusCompleted
	}, 200*time.Millisecond, 5*time.Millisecond)

	gotFailed, err := store.Get(t1.TaskID)
	require.NoError(t, err)
	assert.Equal(t, taskstore.StatusFailed, gotFailed.Status)
}
