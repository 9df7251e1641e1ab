package inference

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/batchsched/taskstore"
	"github.com/remiges-tech/batchsched/wscutils"
)

// openAIPollInterval bounds how often the passthrough handlers re-check a
// submitted task's status while waiting for it to settle.
const openAIPollInterval = 10 * time.Millisecond

// chatMessage mirrors the OpenAI chat message shape.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionRequest is the OpenAI-compatible POST /v1/chat/completions body.
type chatCompletionRequest struct {
	Model       string                     `json:"model"`
	Messages    []chatMessage              `json:"messages"`
	MaxTokens   wscutils.Optional[int]     `json:"max_tokens,omitzero"`
	Temperature wscutils.Optional[float64] `json:"temperature,omitzero"`
}

type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
	Usage   usage                  `json:"usage"`
}

// completionRequest is the OpenAI-compatible POST /v1/completions body.
type completionRequest struct {
	Model       string                     `json:"model"`
	Prompt      string                     `json:"prompt"`
	MaxTokens   wscutils.Optional[int]     `json:"max_tokens,omitzero"`
	Temperature wscutils.Optional[float64] `json:"temperature,omitzero"`
}

type completionChoice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
	Usage   usage              `json:"usage"`
}

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type modelsResponse struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// runThroughPipeline submits prompt/params as a single normal-priority task
// and blocks the request (bounded by ctx) until it settles, so the
// OpenAI-compatible endpoints are still subject to batching discipline
// rather than bypassing the Batcher/Dispatcher.
func (h *Handlers) runThroughPipeline(ctx context.Context, c *gin.Context, prompt string, maxTokens int, temperature float64, model string) (taskstore.Task, bool) {
	if model == "" {
		model = defaultModel
	}
	v := validSubmit{priority: taskstore.PriorityNormal, maxTokens: maxTokens, temperature: temperature, model: model}
	task, ok := h.enqueue(c, "", v, prompt)
	if !ok {
		return taskstore.Task{}, false
	}

	ticker := time.NewTicker(openAIPollInterval)
	defer ticker.Stop()
	for {
		t, err := h.store.Get(task.TaskID)
		if err == nil && (t.Status == taskstore.StatusCompleted || t.Status == taskstore.StatusFailed) {
			return t, true
		}
		select {
		case <-ctx.Done():
			c.JSON(http.StatusGatewayTimeout, wscutils.NewErrorResponse(wscutils.MsgIDUpstreamError, wscutils.ErrcodeUpstreamError))
			return taskstore.Task{}, false
		case <-ticker.C:
		}
	}
}

func lastUserMessage(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}

// chatCompletionsHandler handles POST /v1/chat/completions.
func (h *Handlers) chatCompletionsHandler(c *gin.Context) {
	var req chatCompletionRequest
	if !bindJSON(c, &req) {
		return
	}

	prompt := lastUserMessage(req.Messages)

	v, errs := validateSubmit(SubmitRequest{Prompt: prompt, MaxTokens: req.MaxTokens, Temperature: req.Temperature}, h.promptMaxLength)
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, wscutils.NewResponse(wscutils.ErrorStatus, nil, errs))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	t, ok := h.runThroughPipeline(ctx, c, prompt, v.maxTokens, v.temperature, req.Model)
	if !ok {
		return
	}
	if t.Status == taskstore.StatusFailed {
		c.JSON(http.StatusBadGateway, wscutils.NewErrorResponse(wscutils.MsgIDUpstreamError, wscutils.ErrcodeUpstreamError))
		return
	}

	c.JSON(http.StatusOK, chatCompletionResponse{
		ID:      t.TaskID,
		Object:  "chat.completion",
		Created: t.CompletedAt.Unix(),
		Model:   req.Model,
		Choices: []chatCompletionChoice{{
			Index:        0,
			Message:      chatMessage{Role: "assistant", Content: t.Result.Response},
			FinishReason: "stop",
		}},
		Usage: usage{CompletionTokens: t.Result.TokensGenerated, TotalTokens: t.Result.TokensGenerated},
	})
}

// completionsHandler handles POST /v1/completions.
func (h *Handlers) completionsHandler(c *gin.Context) {
	var req completionRequest
	if !bindJSON(c, &req) {
		return
	}

	v, errs := validateSubmit(SubmitRequest{Prompt: req.Prompt, MaxTokens: req.MaxTokens, Temperature: req.Temperature}, h.promptMaxLength)
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, wscutils.NewResponse(wscutils.ErrorStatus, nil, errs))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	t, ok := h.runThroughPipeline(ctx, c, req.Prompt, v.maxTokens, v.temperature, req.Model)
	if !ok {
		return
	}
	if t.Status == taskstore.StatusFailed {
		c.JSON(http.StatusBadGateway, wscutils.NewErrorResponse(wscutils.MsgIDUpstreamError, wscutils.ErrcodeUpstreamError))
		return
	}

	c.JSON(http.StatusOK, completionResponse{
		ID:      t.TaskID,
		Object:  "text_completion",
		Created: t.CompletedAt.Unix(),
		Model:   req.Model,
		Choices: []completionChoice{{Text: t.Result.Response, Index: 0, FinishReason: "stop"}},
		Usage:   usage{CompletionTokens: t.Result.TokensGenerated, TotalTokens: t.Result.TokensGenerated},
	})
}

// modelsHandler handles GET /v1/models.
func (h *Handlers) modelsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, modelsResponse{
		Object: "list",
		Data: []modelEntry{
			{ID: h.modelID(), Object: "model", OwnedBy: "batchsched"},
		},
	})
}

func (h *Handlers) modelID() string {
	if h.useRealVLLM {
		return h.engineModelName
	}
	return "mock-model"
}
