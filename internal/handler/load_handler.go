package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/block-scheduler-api/internal/dto"
	"github.com/noah-isme/block-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
	"github.com/noah-isme/block-scheduler-api/pkg/response"
)

type loadReporter interface {
	Report(ctx context.Context, teacherID string, query dto.TeacherLoadQuery) (*dto.TeacherLoadReport, error)
}

// LoadHandler exposes teacher weekly load reports.
type LoadHandler struct {
	loads loadReporter
}

// NewLoadHandler constructs the handler.
func NewLoadHandler(loads *service.LoadTracker) *LoadHandler {
	return &LoadHandler{loads: loads}
}

// TeacherLoads godoc
// @Summary Weekly teaching minutes for a teacher
// @Description Defaults to four weeks from the current Monday. Weeks without events report zero.
// @Tags Loads
// @Produce json
// @Param id path string true "Teacher ID"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id}/loads [get]
func (h *LoadHandler) TeacherLoads(c *gin.Context) {
	var query dto.TeacherLoadQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	report, err := h.loads.Report(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
