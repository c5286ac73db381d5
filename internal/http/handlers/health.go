package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/browserjobs-backend/internal/health"
	"github.com/yungbote/browserjobs-backend/internal/http/response"
)

// HealthHandler surfaces the Health Aggregator's point-in-time snapshot
// at GET /health (§6).
type HealthHandler struct {
	aggregator *health.Aggregator
}

func NewHealthHandler(aggregator *health.Aggregator) *HealthHandler {
	return &HealthHandler{aggregator: aggregator}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	snap := h.aggregator.Snapshot(c.Request.Context())
	response.RespondOK(c, snap)
}
