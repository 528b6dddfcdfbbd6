package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/block-scheduler-api/internal/dto"
	"github.com/noah-isme/block-scheduler-api/internal/models"
	"github.com/noah-isme/block-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
	"github.com/noah-isme/block-scheduler-api/pkg/response"
)

type eventManager interface {
	Upsert(ctx context.Context, req dto.UpsertEventRequest) (models.UpsertResult, error)
	Update(ctx context.Context, id string, req dto.UpsertEventRequest) (*models.Event, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, query dto.EventQuery) ([]models.Event, *models.Pagination, error)
}

type timetableExporter interface {
	Timetable(ctx context.Context, query dto.EventQuery) (*service.ExportResult, error)
}

// EventHandler exposes event listing, manual edits and timetable export.
type EventHandler struct {
	events   eventManager
	exporter timetableExporter
}

// NewEventHandler constructs the handler.
func NewEventHandler(events *service.EventService, exporter *service.ExportService) *EventHandler {
	return &EventHandler{events: events, exporter: exporter}
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param roomId query string false "Room ID"
// @Param programId query string false "Program ID"
// @Param moduleId query string false "Module ID"
// @Param from query string false "Start bound (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "End bound (RFC3339 or YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	var query dto.EventQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	events, pagination, err := h.events.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination)
}

// Get godoc
// @Summary Get event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	evt, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evt, nil)
}

// Upsert godoc
// @Summary Create an event or match an existing one by title and interval
// @Description Returns 201 when a row was written and 200 with dedup=true when an identical event already exists.
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.UpsertEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Upsert(c *gin.Context) {
	var req dto.UpsertEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	result, err := h.events.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Dedup {
		response.JSON(c, http.StatusOK, result, nil)
		return
	}
	response.Created(c, result)
}

// Update godoc
// @Summary Update event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.UpsertEventRequest true "Event payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id} [put]
func (h *EventHandler) Update(c *gin.Context) {
	var req dto.UpsertEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	evt, err := h.events.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evt, nil)
}

// Delete godoc
// @Summary Delete event
// @Tags Events
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.events.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DeleteEventResponse{ID: id, Deleted: true}, nil)
}

// Export godoc
// @Summary Export a timetable
// @Tags Events
// @Produce text/csv
// @Produce application/pdf
// @Param from query string true "Start bound"
// @Param to query string true "End bound"
// @Param teacherId query string false "Teacher ID"
// @Param roomId query string false "Room ID"
// @Param programId query string false "Program ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /events/export [get]
func (h *EventHandler) Export(c *gin.Context) {
	var query dto.EventQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	result, err := h.exporter.Timetable(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Rows, result.Payload)
}
