package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/block-scheduler-api/internal/dto"
	"github.com/noah-isme/block-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
)

type eventStore interface {
	Upsert(ctx context.Context, evt *models.Event) (models.UpsertResult, models.EventChange, error)
	Update(ctx context.Context, evt *models.Event) (models.EventChange, error)
	Delete(ctx context.Context, id string) (models.EventChange, error)
	FindByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
}

type loadRecomputer interface {
	RecomputeChange(ctx context.Context, change models.EventChange) error
}

// EventService is the single write path for events. Every mutation is
// followed by a weekly load recomputation for the rows it touched.
type EventService struct {
	store     eventStore
	loads     loadRecomputer
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewEventService wires the event service.
func NewEventService(store eventStore, loads loadRecomputer, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{store: store, loads: loads, validator: validate, metrics: metrics, logger: logger}
}

// Commit writes evt through the store. A natural-key duplicate is reported
// with Dedup set and no write; an overlap rejected by storage surfaces as
// ErrSlotConflict.
func (s *EventService) Commit(ctx context.Context, evt *models.Event) (models.UpsertResult, error) {
	if !evt.EndAt.After(evt.StartAt) {
		return models.UpsertResult{}, appErrors.Clone(appErrors.ErrValidation, "event end must be after start")
	}
	start := time.Now()
	result, change, err := s.store.Upsert(ctx, evt)
	s.metrics.ObserveDBQuery("event_upsert", time.Since(start))
	if err != nil {
		return models.UpsertResult{}, storageFailure(err, "failed to store event")
	}
	if result.Dedup {
		s.metrics.IncEventMutation("dedup")
		return result, nil
	}
	if change.Previous != nil {
		s.metrics.IncEventMutation("update")
	} else {
		s.metrics.IncEventMutation("insert")
	}
	if err := s.loads.RecomputeChange(ctx, change); err != nil {
		return result, err
	}
	return result, nil
}

// Upsert validates a manual request and commits it.
func (s *EventService) Upsert(ctx context.Context, req dto.UpsertEventRequest) (models.UpsertResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.UpsertResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	evt := eventFromRequest(req)
	return s.Commit(ctx, evt)
}

// Update rewrites an existing event by id.
func (s *EventService) Update(ctx context.Context, id string, req dto.UpsertEventRequest) (*models.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event id is required")
	}
	req.ID = id
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}

	evt := eventFromRequest(req)
	change, err := s.store.Update(ctx, evt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, storageFailure(err, "failed to update event")
	}
	s.metrics.IncEventMutation("update")
	if err := s.loads.RecomputeChange(ctx, change); err != nil {
		return nil, err
	}
	return change.Current, nil
}

// Delete removes an event by id.
func (s *EventService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return appErrors.Clone(appErrors.ErrValidation, "event id is required")
	}
	change, err := s.store.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return storageFailure(err, "failed to delete event")
	}
	s.metrics.IncEventMutation("delete")
	return s.loads.RecomputeChange(ctx, change)
}

// Get fetches one event.
func (s *EventService) Get(ctx context.Context, id string) (*models.Event, error) {
	evt, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return nil, storageFailure(err, "failed to load event")
	}
	return evt, nil
}

// List returns a page of events matching the query.
func (s *EventService) List(ctx context.Context, query dto.EventQuery) ([]models.Event, *models.Pagination, error) {
	filter, err := eventFilterFromQuery(query)
	if err != nil {
		return nil, nil, err
	}
	start := time.Now()
	events, total, err := s.store.List(ctx, filter)
	s.metrics.ObserveDBQuery("event_list", time.Since(start))
	if err != nil {
		return nil, nil, storageFailure(err, "failed to list events")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	return events, &models.Pagination{Page: page, PageSize: len(events), TotalCount: total}, nil
}

func eventFromRequest(req dto.UpsertEventRequest) *models.Event {
	return &models.Event{
		ID:        strings.TrimSpace(req.ID),
		Title:     strings.TrimSpace(req.Title),
		ProgramID: nonEmpty(req.ProgramID),
		ModuleID:  nonEmpty(req.ModuleID),
		TeacherID: nonEmpty(req.TeacherID),
		RoomID:    nonEmpty(req.RoomID),
		StartAt:   req.Start.UTC(),
		EndAt:     req.End.UTC(),
	}
}

func eventFilterFromQuery(query dto.EventQuery) (models.EventFilter, error) {
	filter := models.EventFilter{
		TeacherID: strings.TrimSpace(query.TeacherID),
		RoomID:    strings.TrimSpace(query.RoomID),
		ProgramID: strings.TrimSpace(query.ProgramID),
		ModuleID:  strings.TrimSpace(query.ModuleID),
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	var err error
	if filter.From, err = parseQueryTime(query.From, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseQueryTime(query.To, "to"); err != nil {
		return filter, err
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return filter, nil
}

// parseQueryTime accepts RFC3339 timestamps or YYYY-MM-DD dates (UTC midnight).
func parseQueryTime(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts, nil
	}
	if day, err := time.Parse("2006-01-02", raw); err == nil {
		return &day, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, field+" must be an RFC3339 timestamp or YYYY-MM-DD date")
}

func nonEmpty(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
