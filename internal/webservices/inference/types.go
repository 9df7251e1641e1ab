// Package inference implements the scheduler's HTTP surface: token issuance,
// task submission (single and batch), task lookup, health, stats, and the
// OpenAI-compatible passthrough endpoints, all sitting on top of the
// Priority Queue / Task Store / Batcher / Dispatcher pipeline in service.Service.
package inference

import (
	"time"

	"github.com/remiges-tech/batchsched/taskstore"
	"github.com/remiges-tech/batchsched/wscutils"
)

// SubmitRequest is the body of POST /inference/async and one element of the
// POST /inference/batch array. Priority/MaxTokens/Temperature/Model use
// Optional so "field omitted" (apply the scheduler's default) can be told
// apart from "field explicitly present" (including a valid zero value, such
// as temperature: 0).
type SubmitRequest struct {
	Prompt      string                     `json:"prompt"`
	Priority    wscutils.Optional[string]  `json:"priority,omitzero"`
	MaxTokens   wscutils.Optional[int]     `json:"max_tokens,omitzero"`
	Temperature wscutils.Optional[float64] `json:"temperature,omitzero"`
	Model       wscutils.Optional[string]  `json:"model,omitzero"`
}

// SubmitResponse is returned by POST /inference/async.
type SubmitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// SubmitBatchResponse is returned by POST /inference/batch.
type SubmitBatchResponse struct {
	TaskIDs []string `json:"task_ids"`
	Count   int      `json:"count"`
}

// TokenResponse is returned by POST /token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// TaskResultView mirrors taskstore.Result for the wire format.
type TaskResultView struct {
	Response        string `json:"response"`
	TokensGenerated int    `json:"tokens_generated"`
	BatchID         string `json:"batch_id"`
	BatchSize       int    `json:"batch_size"`
	Source          string `json:"source"`
}

// TaskView is the wire representation of a Task Store record, per spec §6.
type TaskView struct {
	TaskID         string          `json:"task_id"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	ProcessingTime *float64        `json:"processing_time,omitempty"`
	Result         *TaskResultView `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// newTaskView converts a Task Store record to its wire shape.
func newTaskView(t taskstore.Task) TaskView {
	view := TaskView{
		TaskID:    t.TaskID,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		Error:     t.Error,
	}
	if !t.StartedAt.IsZero() {
		started := t.StartedAt
		view.StartedAt = &started
	}
	if !t.CompletedAt.IsZero() {
		completed := t.CompletedAt
		view.CompletedAt = &completed
		if pt := t.ProcessingTime(); pt > 0 {
			secs := pt.Seconds()
			view.ProcessingTime = &secs
		}
	}
	if t.Result != nil {
		view.Result = &TaskResultView{
			Response:        t.Result.Response,
			TokensGenerated: t.Result.TokensGenerated,
			BatchID:         t.Result.BatchID,
			BatchSize:       t.Result.BatchSize,
			Source:          t.Result.Source,
		}
	}
	return view
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string          `json:"status"`
	Mode     string          `json:"mode"`
	Batching BatchingDetails `json:"batching"`
}

// BatchingDetails reports the Batcher's live configuration and state.
type BatchingDetails struct {
	Config          BatchingConfigView `json:"config"`
	Depth           int                `json:"depth"`
	InFlightBatches int                `json:"in_flight_batches"`
}

// BatchingConfigView surfaces the batch-formation knobs in effect.
type BatchingConfigView struct {
	MaxBatchSize         int     `json:"max_batch_size"`
	BatchWaitTimeout     float64 `json:"batch_wait_timeout"`
	MaxConcurrentBatches int     `json:"max_concurrent_batches"`
}
