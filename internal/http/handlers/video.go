package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/browserjobs-backend/internal/data/repos/jobstore"
	"github.com/yungbote/browserjobs-backend/internal/http/response"
	"github.com/yungbote/browserjobs-backend/internal/platform/apierr"
	"github.com/yungbote/browserjobs-backend/internal/platform/ctxutil"
	"github.com/yungbote/browserjobs-backend/internal/platform/dbctx"
	"github.com/yungbote/browserjobs-backend/internal/videostore"
)

// VideoHandler services GET /video/{request_id}/{token} and
// GET /video/{request_id}/info (§6). The Job Store remains the sole
// authority on who owns a recording; this handler only resolves that
// ownership and defers the actual open/stat + enforcement to
// internal/videostore.
type VideoHandler struct {
	store  jobstore.JobStore
	videos *videostore.Store
}

func NewVideoHandler(store jobstore.JobStore, videos *videostore.Store) *VideoHandler {
	return &VideoHandler{store: store, videos: videos}
}

// GET /video/:request_id/:token
//
// The token itself is not interpreted by this core — per §6 it is part
// of the external collaborator's URL-signing scheme. Ownership is
// enforced by the resolved API identity against the Job Store's
// recorded api_key_id, independent of whatever the token encodes.
func (h *VideoHandler) Stream(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
		return
	}

	requestID := c.Param("request_id")
	dbc := dbctx.New(c.Request.Context(), nil)
	job, err := h.store.GetByRequestID(dbc, requestID)
	if err != nil {
		response.RespondError(c, http.StatusNotFound, apierr.CodeNotFound, err)
		return
	}
	if job.VideoPath == nil || *job.VideoPath == "" {
		response.RespondError(c, http.StatusNotFound, apierr.CodeNotFound, errNoRecording)
		return
	}

	f, err := h.videos.Open(*job.VideoPath, rd.APIKeyID, job.APIKeyID)
	if err != nil {
		respondVideoErr(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "video/webm")
	if _, err := io.Copy(c.Writer, f); err != nil {
		// Streaming started; the response is already partially written so
		// there's nothing useful left to send the client.
		return
	}
}

type videoInfoView struct {
	RequestID string  `json:"request_id"`
	SizeMB    float64 `json:"size_mb"`
	ModTime   string  `json:"mod_time"`
}

// GET /video/:request_id/info
func (h *VideoHandler) Info(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
		return
	}

	requestID := c.Param("request_id")
	dbc := dbctx.New(c.Request.Context(), nil)
	job, err := h.store.GetByRequestID(dbc, requestID)
	if err != nil {
		response.RespondError(c, http.StatusNotFound, apierr.CodeNotFound, err)
		return
	}
	if job.VideoPath == nil || *job.VideoPath == "" {
		response.RespondError(c, http.StatusNotFound, apierr.CodeNotFound, errNoRecording)
		return
	}
	if rd.APIKeyID != job.APIKeyID {
		response.RespondError(c, http.StatusForbidden, apierr.CodeForbidden, errNotOwner)
		return
	}

	info, err := h.videos.Stat(*job.VideoPath)
	if err != nil {
		respondVideoErr(c, err)
		return
	}

	response.RespondOK(c, videoInfoView{
		RequestID: requestID,
		SizeMB:    info.SizeMB,
		ModTime:   info.ModTime.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func respondVideoErr(c *gin.Context, err error) {
	if apiErr, ok := err.(*apierr.Error); ok {
		response.RespondError(c, apiErr.Status, apiErr.Code, apiErr.Err)
		return
	}
	response.RespondError(c, http.StatusInternalServerError, apierr.CodeInternal, err)
}

type videoViewErr string

func (e videoViewErr) Error() string { return string(e) }

const (
	errNoRecording = videoViewErr("job has no recording")
	errNotOwner    = videoViewErr("requester does not own this video")
)
