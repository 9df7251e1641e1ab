// Package stats implements the Stats Collector: monotonic atomic counters
// over the scheduler's lifetime, with an optional Prometheus exposition via
// the metrics.Metrics interface.
package stats

import (
	"sync/atomic"

	"github.com/remiges-tech/batchsched/metrics"
)

const (
	metricTotalRequests  = "batchsched_total_requests"
	metricTotalBatches   = "batchsched_total_batches"
	metricTotalCompleted = "batchsched_total_completed"
	metricTotalFailed    = "batchsched_total_failed"
	metricBatchSize      = "batchsched_batch_size"
	metricMockResponses  = "batchsched_mock_responses"
	metricRealResponses  = "batchsched_real_responses"
)

// Collector maintains the counters required by the Stats Collector. Every
// field is updated with atomic operations so the dispatcher's concurrent
// workers never contend on a mutex for bookkeeping.
type Collector struct {
	totalRequests  atomic.Int64
	totalBatches   atomic.Int64
	totalCompleted atomic.Int64
	totalFailed    atomic.Int64
	mockResponses  atomic.Int64
	realResponses  atomic.Int64

	batchSizeSum atomic.Int64
	largestBatch atomic.Int64
	buckets      [len(batchSizeBucketBounds) + 1]atomic.Int64

	metrics metrics.Metrics
}

// batchSizeBucketBounds are the upper bounds (inclusive) of the batch-size
// histogram exposed by GET /stats/batches; a batch larger than the last
// bound falls into the final, unbounded bucket.
var batchSizeBucketBounds = []int{1, 2, 4, 8, 16, 32, 64}

// New builds a Collector. metrics may be nil, in which case only the
// in-process counters are maintained.
func New(m metrics.Metrics) *Collector {
	c := &Collector{metrics: m}
	if m != nil {
		m.Register(metricTotalRequests, "Counter", "total inference requests accepted")
		m.Register(metricTotalBatches, "Counter", "total batches dispatched")
		m.Register(metricTotalCompleted, "Counter", "total tasks completed")
		m.Register(metricTotalFailed, "Counter", "total tasks failed")
		m.Register(metricBatchSize, "Histogram", "distribution of dispatched batch sizes")
		m.Register(metricMockResponses, "Counter", "total responses served from the mock adapter")
		m.Register(metricRealResponses, "Counter", "total responses served from the real adapter")
	}
	return c
}

// RecordRequest increments total_requests; called once per accepted
// submission (async or each item of a batch submission).
func (c *Collector) RecordRequest() {
	c.totalRequests.Add(1)
	c.record(metricTotalRequests, 1)
}

// RecordBatch increments total_batches and folds size into the running mean
// and largest-batch counters.
func (c *Collector) RecordBatch(size int) {
	c.totalBatches.Add(1)
	c.batchSizeSum.Add(int64(size))
	for {
		cur := c.largestBatch.Load()
		if int64(size) <= cur || c.largestBatch.CompareAndSwap(cur, int64(size)) {
			break
		}
	}
	c.record(metricBatchSize, float64(size))

	idx := len(batchSizeBucketBounds)
	for i, bound := range batchSizeBucketBounds {
		if size <= bound {
			idx = i
			break
		}
	}
	c.buckets[idx].Add(1)
}

// BatchSizeBucket pairs a bucket's inclusive upper bound (0 for the final,
// unbounded bucket) with its observed count.
type BatchSizeBucket struct {
	UpperBound int   `json:"upper_bound,omitempty"`
	Unbounded  bool  `json:"unbounded,omitempty"`
	Count      int64 `json:"count"`
}

// BatchSizeHistogram returns the batch-size distribution, exposed by
// GET /stats/batches.
func (c *Collector) BatchSizeHistogram() []BatchSizeBucket {
	hist := make([]BatchSizeBucket, 0, len(batchSizeBucketBounds)+1)
	for i, bound := range batchSizeBucketBounds {
		hist = append(hist, BatchSizeBucket{UpperBound: bound, Count: c.buckets[i].Load()})
	}
	hist = append(hist, BatchSizeBucket{Unbounded: true, Count: c.buckets[len(batchSizeBucketBounds)].Load()})
	return hist
}

// RecordOutcome folds a single task's terminal outcome into total_completed
// or total_failed, and mock_responses or real_responses.
func (c *Collector) RecordOutcome(completed bool, source string) {
	if completed {
		c.totalCompleted.Add(1)
		c.record(metricTotalCompleted, 1)
	} else {
		c.totalFailed.Add(1)
		c.record(metricTotalFailed, 1)
	}

	switch source {
	case "real":
		c.realResponses.Add(1)
		c.record(metricRealResponses, 1)
	case "mock", "mock-fallback":
		c.mockResponses.Add(1)
		c.record(metricMockResponses, 1)
	}
}

func (c *Collector) record(name string, value float64) {
	if c.metrics != nil {
		c.metrics.Record(name, value)
	}
}

// Snapshot is a read-only view of the Stats Collector's state, exposed via
// GET /stats.
type Snapshot struct {
	TotalRequests    int64   `json:"total_requests"`
	TotalBatches     int64   `json:"total_batches"`
	TotalCompleted   int64   `json:"total_completed"`
	TotalFailed      int64   `json:"total_failed"`
	AverageBatchSize float64 `json:"average_batch_size"`
	LargestBatch     int64   `json:"largest_batch"`
	MockResponses    int64   `json:"mock_responses"`
	RealResponses    int64   `json:"real_responses"`
}

// Snapshot returns the current counter values. AverageBatchSize is derived
// from batch_size_sum / total_batches and is zero until the first batch.
func (c *Collector) Snapshot() Snapshot {
	totalBatches := c.totalBatches.Load()
	var avg float64
	if totalBatches > 0 {
		avg = float64(c.batchSizeSum.Load()) / float64(totalBatches)
	}
	return Snapshot{
		TotalRequests:    c.totalRequests.Load(),
		TotalBatches:     totalBatches,
		TotalCompleted:   c.totalCompleted.Load(),
		TotalFailed:      c.totalFailed.Load(),
		AverageBatchSize: avg,
		LargestBatch:     c.largestBatch.Load(),
		MockResponses:    c.mockResponses.Load(),
		RealResponses:    c.realResponses.Load(),
	}
}
