package inference

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/batchsched/router"
	"github.com/remiges-tech/batchsched/taskstore"
	"github.com/remiges-tech/batchsched/wscutils"
)

// getTaskHandler handles GET /tasks/:task_id.
func (h *Handlers) getTaskHandler(c *gin.Context) {
	taskID := c.Param("task_id")

	task, err := h.store.Get(taskID)
	if err != nil {
		if err == taskstore.ErrNotFound {
			c.JSON(http.StatusNotFound, wscutils.NewErrorResponse(wscutils.MsgIDTaskNotFound, wscutils.ErrcodeTaskNotFound))
			return
		}
		c.JSON(http.StatusInternalServerError, wscutils.NewErrorResponse(wscutils.MsgIDInternal, wscutils.ErrcodeInternal))
		return
	}

	c.JSON(http.StatusOK, wscutils.NewSuccessResponse(newTaskView(task)))
}

// listTasksHandler handles GET /tasks: the most recent N tasks for the
// calling principal, default 100 (Store.List's own default).
func (h *Handlers) listTasksHandler(c *gin.Context) {
	principal, _ := router.PrincipalFromContext(c)

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	tasks := h.store.List(principal.Username, limit)
	views := make([]TaskView, len(tasks))
	for i, t := range tasks {
		views[i] = newTaskView(t)
	}

	c.JSON(http.StatusOK, wscutils.NewSuccessResponse(views))
}
