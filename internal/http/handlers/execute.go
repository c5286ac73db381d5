package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/browserjobs-backend/internal/data/repos/jobstore"
	"github.com/yungbote/browserjobs-backend/internal/domain/execjob"
	"github.com/yungbote/browserjobs-backend/internal/executor"
	"github.com/yungbote/browserjobs-backend/internal/http/response"
	"github.com/yungbote/browserjobs-backend/internal/platform/apierr"
	"github.com/yungbote/browserjobs-backend/internal/platform/ctxutil"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/platform/logger"
	"github.com/yungbote/browserjobs-backend/internal/queue"
	"github.com/yungbote/browserjobs-backend/internal/validator"
)

const defaultPriority = 5
const defaultTimeoutSeconds = 60

const (
	minPriority = 1
	maxPriority = 5
	minTimeoutSeconds = 10
	maxTimeoutSeconds = 600
)

// ExecuteRequest is the POST /execute body of §6.
type ExecuteRequest struct {
	Script         string   `json:"script" binding:"required"`
	Priority       *int     `json:"priority"`
	TimeoutSeconds *int     `json:"timeout_seconds"`
	WebhookURL     string   `json:"webhook_url"`
	UserAgent      string   `json:"user_agent"`
	Tags           []string `json:"tags"`
}

type ExecuteResponse struct {
	RequestID      string  `json:"request_id"`
	Status         string  `json:"status"`
	QueuePosition  int     `json:"queue_position"`
	EstimatedWait  float64 `json:"estimated_wait"`
}

// ExecuteHandler is the Submission entry point of §4.1/§4.2: validate,
// check the circuit breaker, insert the Job Store row, then enqueue.
type ExecuteHandler struct {
	log           *logger.Logger
	store         jobstore.JobStore
	q             *queue.Queue
	breaker       *executor.Breaker
	maxScriptSize int
}

func NewExecuteHandler(log *logger.Logger, store jobstore.JobStore, q *queue.Queue, breaker *executor.Breaker, maxScriptSize int) *ExecuteHandler {
	return &ExecuteHandler{
		log:           log.With("handler", "ExecuteHandler"),
		store:         store,
		q:             q,
		breaker:       breaker,
		maxScriptSize: maxScriptSize,
	}
}

// POST /execute
func (h *ExecuteHandler) Execute(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
		return
	}

	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidationError, err)
		return
	}

	analysis := validator.Validate(req.Script, h.maxScriptSize)
	if !analysis.Valid {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidationError, scriptInvalidErr(analysis))
		return
	}

	if req.Priority != nil && (*req.Priority < minPriority || *req.Priority > maxPriority) {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidationError, errPriorityOutOfRange)
		return
	}
	if req.TimeoutSeconds != nil && (*req.TimeoutSeconds < minTimeoutSeconds || *req.TimeoutSeconds > maxTimeoutSeconds) {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidationError, errTimeoutOutOfRange)
		return
	}

	fingerprint := execjob.Fingerprint(req.Script)
	if h.breaker != nil && h.breaker.IsOpen(fingerprint) {
		response.RespondError(c, http.StatusTooManyRequests, apierr.CodeScriptTemporarilyBlocked, errScriptBlocked)
		return
	}

	priority := defaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}
	timeoutSeconds := defaultTimeoutSeconds
	if req.TimeoutSeconds != nil {
		timeoutSeconds = *req.TimeoutSeconds
	}

	var tagsJSON datatypes.JSON
	if len(req.Tags) > 0 {
		if b, err := json.Marshal(req.Tags); err == nil {
			tagsJSON = b
		}
	}

	requestID := uuid.New().String()
	createdAt := time.Now()

	job := &execjob.Job{
		RequestID:      requestID,
		APIKeyID:       rd.APIKeyID,
		Script:         req.Script,
		ScriptHash:     fingerprint,
		ScriptSize:     len(req.Script),
		Priority:       priority,
		TimeoutSeconds: timeoutSeconds,
		WebhookURL:     req.WebhookURL,
		UserAgent:      req.UserAgent,
		Tags:           tagsJSON,
		Status:         execjob.StatusQueued,
		CreatedAt:      createdAt,
	}

	dbc := dbctx.New(c.Request.Context(), nil)
	if err := h.store.Insert(dbc, job); err != nil {
		response.RespondError(c, http.StatusInternalServerError, apierr.CodeInternal, err)
		return
	}

	if err := h.q.Enqueue(requestID, priority, createdAt); err != nil {
		// The row was inserted as QUEUED but never made it into the heap;
		// per §3's QUEUED→FAILED transition for the queue-full/rejected
		// case, close it out here so no row is left observable forever as
		// QUEUED with no way for the client to query or retry it.
		if _, markErr := h.store.MarkTerminal(dbc, requestID, execjob.StatusFailed, map[string]interface{}{
			"error_message": "queue is full",
		}); markErr != nil {
			h.log.Error("mark terminal after queue-full failed", "request_id", requestID, "error", markErr)
		}
		if apiErr, ok := err.(*apierr.Error); ok {
			response.RespondError(c, apiErr.Status, apiErr.Code, apiErr.Err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, apierr.CodeInternal, err)
		return
	}

	// Advisory only, per §6: queue_position/estimated_wait are a snapshot
	// at enqueue time, not a guarantee — other submissions can still race
	// ahead by priority.
	position := h.q.Len()
	estimatedWait := analysis.EstimatedDurationSeconds * float64(position)

	c.JSON(http.StatusAccepted, ExecuteResponse{
		RequestID:     requestID,
		Status:        string(execjob.StatusQueued),
		QueuePosition: position,
		EstimatedWait: estimatedWait,
	})
}

type validationErr struct{ msg string }

func (e validationErr) Error() string { return e.msg }

func scriptInvalidErr(a *validator.Analysis) error {
	if len(a.Errors) > 0 {
		return validationErr{msg: a.Errors[0]}
	}
	return validationErr{msg: "script failed validation"}
}

var errScriptBlocked = validationErr{msg: "script temporarily blocked after repeated failures"}
var errPriorityOutOfRange = validationErr{msg: "priority must be in [1,5]"}
var errTimeoutOutOfRange = validationErr{msg: "timeout_seconds must be in [10,600]"}
