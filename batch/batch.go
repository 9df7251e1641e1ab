// Package batch implements the Batcher and Dispatcher: the cooperative
// batch-formation loop and the bounded-concurrency worker pool that invokes
// the Engine Adapter for each formed batch.
package batch

import (
	"time"

	"github.com/remiges-tech/batchsched/taskstore"
)

// Batch is the transient unit handed from the Batcher to the Dispatcher.
type Batch struct {
	ID       string
	Tasks    []*taskstore.Task
	FormedAt time.Time
}

// PriorityMix summarizes a batch's composition, derived for diagnostics.
func (b *Batch) PriorityMix() map[taskstore.Priority]int {
	mix := make(map[taskstore.Priority]int, 3)
	for _, t := range b.Tasks {
		mix[t.Priority]++
	}
	return mix
}
