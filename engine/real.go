package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/remiges-tech/batchsched/taskstore"
	"golang.org/x/sync/errgroup"
)

// chatCompletionRequest is the OpenAI-compatible request body forwarded to
// the upstream engine.
type chatCompletionRequest struct {
	Model       string               `json:"model"`
	Messages    []chatMessage        `json:"messages"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Temperature float64              `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// RealAdapter forwards each task to an upstream OpenAI-compatible
// chat-completions endpoint, in parallel within a batch.
type RealAdapter struct {
	client          *resty.Client
	baseURL         string
	defaultModel    string
	requestTimeout  time.Duration
	disableFallback bool
}

// NewRealAdapter builds a RealAdapter bound to baseURL. requestTimeout
// bounds each individual task's upstream call (default 60s per the
// scheduler's external-interface contract). When disableFallback is true, a
// per-task upstream failure settles the task as failed instead of emitting
// a mock response.
func NewRealAdapter(baseURL, defaultModel string, requestTimeout time.Duration, disableFallback bool) *RealAdapter {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &RealAdapter{
		client:          resty.New(),
		baseURL:         baseURL,
		defaultModel:    defaultModel,
		requestTimeout:  requestTimeout,
		disableFallback: disableFallback,
	}
}

// Probe performs a best-effort startup health check against the upstream.
// Its failure never prevents serving: the real adapter still runs, falling
// back per-task as calls come in.
func (r *RealAdapter) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := r.client.R().SetContext(ctx).Get(r.baseURL + "/v1/models")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("upstream health probe failed: %s", resp.Status())
	}
	return nil
}

// ProcessBatch implements Adapter, fanning each task out to its own
// upstream call in parallel.
func (r *RealAdapter) ProcessBatch(ctx context.Context, tasks []*taskstore.Task) ([]Outcome, error) {
	outcomes := make([]Outcome, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			outcomes[i] = r.processTask(gctx, t)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

func (r *RealAdapter) processTask(ctx context.Context, t *taskstore.Task) Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	model := t.Parameters.Model
	if model == "" {
		model = r.defaultModel
	}

	reqBody := chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "user", Content: t.Prompt},
		},
		MaxTokens:   t.Parameters.MaxTokens,
		Temperature: t.Parameters.Temperature,
	}

	var result chatCompletionResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&result).
		Post(r.baseURL + "/v1/chat/completions")

	outcomeErr := upstreamError(ctx, resp, err, &result)
	if outcomeErr == nil {
		return Outcome{
			TaskID:          t.TaskID,
			Response:        result.Choices[0].Message.Content,
			TokensGenerated: result.Usage.CompletionTokens,
			Source:          "real",
		}
	}

	if r.disableFallback {
		return Outcome{TaskID: t.TaskID, Err: outcomeErr}
	}

	fallback := mockOutcome(t)
	fallback.Source = "mock-fallback"
	return fallback
}

// upstreamError classifies a resty round trip into nil (success) or a
// descriptive error covering connection failure, non-2xx status, timeout,
// and a malformed/empty response body.
func upstreamError(ctx context.Context, resp *resty.Response, err error, result *chatCompletionResponse) error {
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("timeout: %w", ctx.Err())
		}
		return fmt.Errorf("upstream request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("upstream returned %s", resp.Status())
	}
	if len(result.Choices) == 0 {
		return fmt.Errorf("upstream response missing choices")
	}
	return nil
}
