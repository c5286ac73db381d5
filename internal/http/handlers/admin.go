package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/browserjobs-backend/internal/cleanup"
	"github.com/yungbote/browserjobs-backend/internal/http/response"
)

// AdminHandler exposes the Cleanup Scheduler's daily sweep as a manual
// trigger at DELETE /admin/videos/cleanup (§6), for operators who don't
// want to wait for the next scheduled run.
type AdminHandler struct {
	cleanup *cleanup.Scheduler
}

func NewAdminHandler(cleanup *cleanup.Scheduler) *AdminHandler {
	return &AdminHandler{cleanup: cleanup}
}

// DELETE /admin/videos/cleanup
func (h *AdminHandler) ForceCleanup(c *gin.Context) {
	h.cleanup.Run(c.Request.Context())
	response.RespondOK(c, gin.H{"status": "cleanup run complete"})
}
