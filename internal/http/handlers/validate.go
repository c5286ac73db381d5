package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/browserjobs-backend/internal/http/response"
	"github.com/yungbote/browserjobs-backend/internal/platform/apierr"
	"github.com/yungbote/browserjobs-backend/internal/validator"
)

type ValidateRequest struct {
	Script string `json:"script" binding:"required"`
}

// ValidateHandler exposes the Validator standalone per §6's POST /validate
// endpoint: it never touches the queue or Job Store, only §4.1's static
// analysis.
type ValidateHandler struct {
	maxScriptSize int
}

func NewValidateHandler(maxScriptSize int) *ValidateHandler {
	return &ValidateHandler{maxScriptSize: maxScriptSize}
}

// POST /validate
func (h *ValidateHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, apierr.CodeValidationError, err)
		return
	}
	analysis := validator.Validate(req.Script, h.maxScriptSize)
	response.RespondOK(c, analysis)
}
