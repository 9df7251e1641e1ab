package inference

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/remiges-tech/batchsched/wscutils"
)

// statsHandler handles GET /stats: the Stats Collector snapshot.
func (h *Handlers) statsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, wscutils.NewSuccessResponse(h.stats.Snapshot()))
}

// statsBatchesHandler handles GET /stats/batches: the batch-size
// histogram, supplementing /stats with the distribution the Stats
// Collector already maintains.
func (h *Handlers) statsBatchesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, wscutils.NewSuccessResponse(h.stats.BatchSizeHistogram()))
}
