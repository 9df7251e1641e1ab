// Package queue implements the Priority Queue: a three-lane FIFO that the
// Batcher drains strictly in high, normal, low order.
package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/remiges-tech/batchsched/taskstore"
)

// ErrQueueFull is returned by Enqueue once the total queued task count
// reaches the configured cap.
var ErrQueueFull = errors.New("queue: full")

// Queue is a mutex-guarded, three-lane priority FIFO with a
// condition-variable-based await for the batcher's wait loop.
type Queue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond

	high   []*taskstore.Task
	normal []*taskstore.Task
	low    []*taskstore.Task

	maxDepth int
}

// New builds a Queue with the given capacity. A maxDepth of zero disables
// the cap.
func New(maxDepth int) *Queue {
	q := &Queue{maxDepth: maxDepth}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends task to the lane for its priority. It fails with
// ErrQueueFull once the total queued count would exceed maxDepth.
func (q *Queue) Enqueue(task *taskstore.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxDepth > 0 && q.depthLocked() >= q.maxDepth {
		return ErrQueueFull
	}

	switch task.Priority {
	case taskstore.PriorityHigh:
		q.high = append(q.high, task)
	case taskstore.PriorityLow:
		q.low = append(q.low, task)
	default:
		q.normal = append(q.normal, task)
	}

	q.nonEmpty.Signal()
	return nil
}

// DrainUpTo removes up to n tasks, consuming strictly in the order
// high -> normal -> low, FIFO within a lane.
func (q *Queue) DrainUpTo(n int) []*taskstore.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drainUpToLocked(n)
}

func (q *Queue) drainUpToLocked(n int) []*taskstore.Task {
	drained := make([]*taskstore.Task, 0, n)
	drained, q.high = takeFront(drained, q.high, n)
	drained, q.normal = takeFront(drained, q.normal, n)
	drained, q.low = takeFront(drained, q.low, n)
	return drained
}

func takeFront(drained, lane []*taskstore.Task, n int) ([]*taskstore.Task, []*taskstore.Task) {
	need := n - len(drained)
	if need <= 0 || len(lane) == 0 {
		return drained, lane
	}
	if need > len(lane) {
		need = len(lane)
	}
	drained = append(drained, lane[:need]...)
	return drained, lane[need:]
}

// Depth returns the total number of queued tasks across all lanes.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depthLocked()
}

func (q *Queue) depthLocked() int {
	return len(q.high) + len(q.normal) + len(q.low)
}

// AwaitNonEmpty blocks until the queue has at least one task or timeout
// elapses, returning true if the queue is non-empty on return.
func (q *Queue) AwaitNonEmpty(timeout time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.depthLocked() > 0 {
		return true
	}

	timedOut := false
	timer := time.AfterFunc(timeout, func() {
		q.mu.Lock()
		timedOut = true
		q.mu.Unlock()
		q.nonEmpty.Broadcast()
	})
	defer timer.Stop()

	for q.depthLocked() == 0 && !timedOut {
		q.nonEmpty.Wait()
	}
	return q.depthLocked() > 0
}
