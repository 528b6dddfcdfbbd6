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

type schedulerRunner interface {
	Run(ctx context.Context, req dto.RunSchedulerRequest) (*dto.RunSchedulerResponse, error)
	RunAsync(ctx context.Context, req dto.RunSchedulerRequest) (*dto.RunAccepted, error)
	GetRun(ctx context.Context, runID string) (*dto.RunRecord, error)
}

// SchedulerHandler exposes scheduler run endpoints.
type SchedulerHandler struct {
	service schedulerRunner
}

// NewSchedulerHandler constructs the handler.
func NewSchedulerHandler(svc *service.SchedulerService) *SchedulerHandler {
	return &SchedulerHandler{service: svc}
}

// Run godoc
// @Summary Run the block scheduler for a program
// @Description Places pending module blocks into events. A storage failure mid-run still returns the blocks committed so far in the error meta.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.RunSchedulerRequest true "Scheduler run payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /scheduler/runs [post]
func (h *SchedulerHandler) Run(c *gin.Context) {
	req, ok := bindRunRequest(c)
	if !ok {
		return
	}
	result, err := h.service.Run(c.Request.Context(), req)
	if err != nil {
		if result != nil {
			response.ErrorWithMeta(c, err, map[string]interface{}{"partialResult": result})
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RunAsync godoc
// @Summary Queue a scheduler run
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.RunSchedulerRequest true "Scheduler run payload"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /scheduler/runs/async [post]
func (h *SchedulerHandler) RunAsync(c *gin.Context) {
	req, ok := bindRunRequest(c)
	if !ok {
		return
	}
	accepted, err := h.service.RunAsync(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, accepted)
}

// GetRun godoc
// @Summary Get scheduler run status and result
// @Tags Scheduler
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scheduler/runs/{id} [get]
func (h *SchedulerHandler) GetRun(c *gin.Context) {
	record, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

func bindRunRequest(c *gin.Context) (dto.RunSchedulerRequest, bool) {
	var req dto.RunSchedulerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scheduler run payload"))
		return req, false
	}
	return req, true
}
