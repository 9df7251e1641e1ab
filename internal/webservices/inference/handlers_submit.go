package inference

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/batchsched/queue"
	"github.com/remiges-tech/batchsched/router"
	"github.com/remiges-tech/batchsched/taskstore"
	"github.com/remiges-tech/batchsched/wscutils"
)

// bindJSON binds the raw request body into v, per the wire schemas in
// spec §6 — unwrapped bodies, not the teacher's envelope-wrapped
// {"data": ...} convention, since this HTTP surface's contract is fixed by
// the scheduler's own external interface rather than the teacher's.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, wscutils.NewErrorResponse(wscutils.MsgIDInvalidJSON, wscutils.ErrcodeInvalidJSON))
		return false
	}
	return true
}

// enqueue creates and enqueues a single task for principal, translating
// ErrQueueFull into the 503 + Retry-After contract from spec §4.8.
func (h *Handlers) enqueue(c *gin.Context, principal string, v validSubmit, prompt string) (*taskstore.Task, bool) {
	t := h.store.Create(principal, v.priority, prompt, taskstore.Parameters{
		MaxTokens:   v.maxTokens,
		Temperature: v.temperature,
		Model:       v.model,
	})

	if err := h.queue.Enqueue(t); err != nil {
		if err == queue.ErrQueueFull {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusServiceUnavailable, wscutils.NewErrorResponse(wscutils.MsgIDQueueFull, wscutils.ErrcodeQueueFull))
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, wscutils.NewErrorResponse(wscutils.MsgIDInternal, wscutils.ErrcodeInternal))
		return nil, false
	}
	h.stats.RecordRequest()
	return t, true
}

// submitAsyncHandler handles POST /inference/async.
func (h *Handlers) submitAsyncHandler(c *gin.Context) {
	var req SubmitRequest
	if !bindJSON(c, &req) {
		return
	}

	principal, _ := router.PrincipalFromContext(c)

	v, errs := validateSubmit(req, h.promptMaxLength)
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, wscutils.NewResponse(wscutils.ErrorStatus, nil, errs))
		return
	}

	task, ok := h.enqueue(c, principal.Username, v, req.Prompt)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, wscutils.NewSuccessResponse(SubmitResponse{
		TaskID: task.TaskID,
		Status: string(task.Status),
	}))
}

// submitBatchHandler handles POST /inference/batch: an all-or-nothing
// submission of 1..BatchMaxItems requests.
func (h *Handlers) submitBatchHandler(c *gin.Context) {
	var reqs []SubmitRequest
	if !bindJSON(c, &reqs) {
		return
	}

	principal, _ := router.PrincipalFromContext(c)

	valid, errs := validateBatch(reqs, h.promptMaxLength, h.batchMaxItems)
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, wscutils.NewResponse(wscutils.ErrorStatus, nil, errs))
		return
	}

	taskIDs := make([]string, 0, len(valid))
	for i, v := range valid {
		task, ok := h.enqueue(c, principal.Username, v, reqs[i].Prompt)
		if !ok {
			// Queue-full mid-batch: tasks already enqueued this call stay
			// enqueued (the Task Store has no transaction primitive), but
			// the caller never receives their ids, so they are effectively
			// orphaned from the caller's perspective. This matches spec
			// §4.8's all-or-nothing validation promise, not a transactional
			// enqueue promise, which the spec does not make.
			return
		}
		taskIDs = append(taskIDs, task.TaskID)
	}

	c.JSON(http.StatusOK, wscutils.NewSuccessResponse(SubmitBatchResponse{
		TaskIDs: taskIDs,
		Count:   len(taskIDs),
	}))
}
