package inference

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/batchsched/wscutils"
)

// healthHandler handles GET /health: always 200 while the process is alive,
// per spec §4.8.
func (h *Handlers) healthHandler(c *gin.Context) {
	mode := "mock"
	if h.useRealVLLM {
		mode = "real"
	}

	c.JSON(http.StatusOK, wscutils.NewSuccessResponse(HealthResponse{
		Status: "ok",
		Mode:   mode,
		Batching: BatchingDetails{
			Config: BatchingConfigView{
				MaxBatchSize:         h.batchConfig.MaxBatchSize,
				BatchWaitTimeout:     h.batchConfig.BatchWaitTimeout.Seconds(),
				MaxConcurrentBatches: h.batchConfig.MaxConcurrentBatches,
			},
			Depth:           h.queue.Depth(),
			InFlightBatches: h.dispatcher.InFlight(),
		},
	}))
}
