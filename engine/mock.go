package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/remiges-tech/batchsched/taskstore"
)

// MockAdapter produces deterministic responses without any upstream
// dependency, simulating batch-level latency cooperatively so it never
// blocks other in-flight batches.
type MockAdapter struct {
	BaseLatency    time.Duration
	PerItemLatency time.Duration
}

// NewMockAdapter builds a MockAdapter with the spec's default latencies:
// 500ms base plus 50ms per item in the batch.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		BaseLatency:    500 * time.Millisecond,
		PerItemLatency: 50 * time.Millisecond,
	}
}

// ProcessBatch implements Adapter.
func (m *MockAdapter) ProcessBatch(ctx context.Context, tasks []*taskstore.Task) ([]Outcome, error) {
	latency := m.BaseLatency + m.PerItemLatency*time.Duration(len(tasks))
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	outcomes := make([]Outcome, len(tasks))
	for i, t := range tasks {
		outcomes[i] = mockOutcome(t)
	}
	return outcomes, nil
}

// mockOutcome produces a single task's deterministic mock response,
// shared with the real adapter's per-task fallback path.
func mockOutcome(t *taskstore.Task) Outcome {
	shortID := uuid.NewString()[:8]
	tokens := len(strings.Fields(t.Prompt)) * 2
	if t.Parameters.MaxTokens > 0 && tokens > t.Parameters.MaxTokens {
		tokens = t.Parameters.MaxTokens
	}
	return Outcome{
		TaskID:          t.TaskID,
		Response:        fmt.Sprintf("[Batched mock response %s] Mock response to: %s", shortID, t.Prompt),
		TokensGenerated: tokens,
		Source:          "mock",
	}
}
