package stats_test

import (
	"testing"

	"github.com/remiges-tech/batchsched/stats"
	"github.com/stretchr/testify/assert"
)

func TestSnapshotAggregatesCounters(t *testing.T) {
	c := stats.New(nil)

	c.RecordRequest()
	c.RecordRequest()
	c.RecordBatch(4)
	c.RecordBatch(2)
	c.RecordOutcome(true, "mock")
	c.RecordOutcome(true, "real")
	c.RecordOutcome(false, "mock-fallback")

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.TotalRequests)
	assert.EqualValues(t, 2, snap.TotalBatches)
	assert.EqualValues(t, 2, snap.TotalCompleted)
	assert.EqualValues(t, 1, snap.TotalFailed)
	assert.EqualValues(t, 4, snap.LargestBatch)
	assert.Equal(t, 3.0, snap.AverageBatchSize)
	assert.EqualValues(t, 2, snap.MockResponses)
	assert.EqualValues(t, 1, snap.RealResponses)
}

func TestSnapshotZeroBatchesHasZeroAverage(t *testing.T) {
	c := stats.New(nil)
	snap := c.Snapshot()
	assert.Zero(t, snap.AverageBatchSize)
}

func TestBatchSizeHistogramBucketsObservations(t *testing.T) {
	c := stats.New(nil)
	c.RecordBatch(1)
	c.RecordBatch(3)
	c.RecordBatch(100)

	hist := c.BatchSizeHistogram()
	var total int64
	for _, b := range hist {
		total += b.Count
	}
	assert.EqualValues(t, 3, total)

	last := hist[len(hist)-1]
	assert.True(t, last.Unbounded)
	assert.EqualValues(t, 1, last.Count)
}
