package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/browserjobs-backend/internal/data/repos/jobstore"
	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
	"github.com/yungbote/browserjobs-backend/internal/http/response"
	"github.com/yungbote/browserjobs-backend/internal/platform/apierr"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/queue"
)

const queueStatusSnapshotLimit = 20

type QueueStatusResponse struct {
	QueuedCount  int             `json:"queued_count"`
	RunningCount int64           `json:"running_count"`
	Items        []QueueItemView `json:"items"`
}

type QueueItemView struct {
	RequestID string  `json:"request_id"`
	Priority  int     `json:"priority"`
	WaitSecs  float64 `json:"wait_seconds"`
}

// QueueHandler services GET /queue/status (§6): an advisory top-N view
// of the in-memory Priority Queue plus a Job Store count of RUNNING rows.
type QueueHandler struct {
	q     *queue.Queue
	store jobstore.JobStore
}

func NewQueueHandler(q *queue.Queue, store jobstore.JobStore) *QueueHandler {
	return &QueueHandler{q: q, store: store}
}

// GET /queue/status
func (h *QueueHandler) Status(c *gin.Context) {
	dbc := dbctx.New(c.Request.Context(), nil)
	running, err := h.store.CountByStatus(dbc, execjob.StatusRunning)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, apierr.CodeInternal, err)
		return
	}

	now := time.Now()
	snap := h.q.Snapshot(queueStatusSnapshotLimit)
	items := make([]QueueItemView, 0, len(snap))
	for _, item := range snap {
		items = append(items, QueueItemView{
			RequestID: item.RequestID,
			Priority:  item.Priority,
			WaitSecs:  now.Sub(item.CreatedAt).Seconds(),
		})
	}

	response.RespondOK(c, QueueStatusResponse{
		QueuedCount:  h.q.Len(),
		RunningCount: running,
		Items:        items,
	})
}
