package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/block-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
)

const eventColumns = `id, title, program_id, module_id, teacher_id, room_id, start_at, end_at, created_at, updated_at`

const (
	pqExclusionViolation = "23P01"
	pqUniqueViolation    = "23505"
)

// EventRepository persists scheduled events. Overlap exclusion is enforced by
// the events table constraints; this type maps those rejections to typed
// errors.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// FindByID fetches an event by id.
func (r *EventRepository) FindByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	var evt models.Event
	if err := r.db.GetContext(ctx, &evt, query, id); err != nil {
		return nil, err
	}
	return &evt, nil
}

// FindByNaturalKey fetches the event identified by (title, start, end).
func (r *EventRepository) FindByNaturalKey(ctx context.Context, title string, start, end time.Time) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE title = $1 AND start_at = $2 AND end_at = $3`
	var evt models.Event
	if err := r.db.GetContext(ctx, &evt, query, title, start, end); err != nil {
		return nil, err
	}
	return &evt, nil
}

// Upsert stores evt unless an event with the same natural key already exists,
// in which case that id is returned with Dedup set and nothing is written.
// An explicit id that matches a stored row turns the call into an update.
func (r *EventRepository) Upsert(ctx context.Context, evt *models.Event) (models.UpsertResult, models.EventChange, error) {
	existing, err := r.FindByNaturalKey(ctx, evt.Title, evt.StartAt, evt.EndAt)
	switch {
	case err == nil:
		return models.UpsertResult{ID: existing.ID, Dedup: true}, models.EventChange{}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return models.UpsertResult{}, models.EventChange{}, fmt.Errorf("lookup event natural key: %w", err)
	}

	if evt.ID != "" {
		change, err := r.Update(ctx, evt)
		switch {
		case err == nil:
			return models.UpsertResult{ID: evt.ID}, change, nil
		case errors.Is(err, appErrors.ErrConflict):
			return r.resolveDedup(ctx, evt, err)
		case !errors.Is(err, sql.ErrNoRows):
			return models.UpsertResult{}, models.EventChange{}, err
		}
	}

	return r.insert(ctx, evt)
}

func (r *EventRepository) insert(ctx context.Context, evt *models.Event) (models.UpsertResult, models.EventChange, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = now
	}
	evt.UpdatedAt = now

	const query = `INSERT INTO events (id, title, program_id, module_id, teacher_id, room_id, start_at, end_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (title, start_at, end_at) DO NOTHING
		RETURNING id`
	var id string
	err := r.db.QueryRowxContext(ctx, query,
		evt.ID, evt.Title, evt.ProgramID, evt.ModuleID, evt.TeacherID, evt.RoomID,
		evt.StartAt, evt.EndAt, evt.CreatedAt, evt.UpdatedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// Another writer committed the same natural key between lookup and insert.
		return r.resolveDedup(ctx, evt, err)
	}
	if err != nil {
		err = translateEventError("insert event", err)
		if errors.Is(err, appErrors.ErrConflict) {
			return r.resolveDedup(ctx, evt, err)
		}
		return models.UpsertResult{}, models.EventChange{}, err
	}

	current := *evt
	return models.UpsertResult{ID: id}, models.EventChange{Current: &current}, nil
}

func (r *EventRepository) resolveDedup(ctx context.Context, evt *models.Event, cause error) (models.UpsertResult, models.EventChange, error) {
	existing, err := r.FindByNaturalKey(ctx, evt.Title, evt.StartAt, evt.EndAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UpsertResult{}, models.EventChange{}, cause
		}
		return models.UpsertResult{}, models.EventChange{}, fmt.Errorf("lookup event natural key: %w", err)
	}
	return models.UpsertResult{ID: existing.ID, Dedup: true}, models.EventChange{}, nil
}

// Update rewrites an existing event and returns the rows before and after.
func (r *EventRepository) Update(ctx context.Context, evt *models.Event) (change models.EventChange, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.EventChange{}, fmt.Errorf("begin event update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var previous models.Event
	if err = tx.GetContext(ctx, &previous, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, evt.ID); err != nil {
		return models.EventChange{}, err
	}

	evt.CreatedAt = previous.CreatedAt
	evt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE events SET title = $2, program_id = $3, module_id = $4, teacher_id = $5, room_id = $6,
		start_at = $7, end_at = $8, updated_at = $9 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, query,
		evt.ID, evt.Title, evt.ProgramID, evt.ModuleID, evt.TeacherID, evt.RoomID,
		evt.StartAt, evt.EndAt, evt.UpdatedAt,
	); err != nil {
		err = translateEventError("update event", err)
		return models.EventChange{}, err
	}
	if err = tx.Commit(); err != nil {
		err = translateEventError("commit event update", err)
		return models.EventChange{}, err
	}

	current := *evt
	return models.EventChange{Previous: &previous, Current: &current}, nil
}

// Delete removes an event and returns the removed row.
func (r *EventRepository) Delete(ctx context.Context, id string) (models.EventChange, error) {
	query := `DELETE FROM events WHERE id = $1 RETURNING ` + eventColumns
	var previous models.Event
	if err := r.db.GetContext(ctx, &previous, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EventChange{}, err
		}
		return models.EventChange{}, fmt.Errorf("delete event: %w", err)
	}
	return models.EventChange{Previous: &previous}, nil
}

// List returns events matching the filter along with the total count.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	base := "FROM events WHERE 1=1"
	var conditions []string
	var args []interface{}

	addEq := func(column, value string) {
		if value == "" {
			return
		}
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)+1))
		args = append(args, value)
	}
	addEq("teacher_id", filter.TeacherID)
	addEq("room_id", filter.RoomID)
	addEq("program_id", filter.ProgramID)
	addEq("module_id", filter.ModuleID)
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("end_at > $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("start_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_at ASC, id ASC LIMIT %d OFFSET %d", eventColumns, base, size, offset)
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}
	return events, total, nil
}

// HasTeacherOverlap reports whether the teacher has an event intersecting [start, end).
func (r *EventRepository) HasTeacherOverlap(ctx context.Context, teacherID string, start, end time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM events WHERE teacher_id = $1 AND start_at < $3 AND end_at > $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, teacherID, start, end); err != nil {
		return false, fmt.Errorf("check teacher overlap: %w", err)
	}
	return exists, nil
}

// HasRoomOverlap reports whether the room has an event intersecting [start, end).
func (r *EventRepository) HasRoomOverlap(ctx context.Context, roomID string, start, end time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM events WHERE room_id = $1 AND start_at < $3 AND end_at > $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, roomID, start, end); err != nil {
		return false, fmt.Errorf("check room overlap: %w", err)
	}
	return exists, nil
}

// CountModuleBlocks returns how many blocks of the module start inside [from, to).
func (r *EventRepository) CountModuleBlocks(ctx context.Context, moduleID string, from, to time.Time) (int, error) {
	const query = `SELECT COALESCE(SUM(ROUND(EXTRACT(EPOCH FROM (end_at - start_at)) / 60 / $4)), 0)::int
		FROM events WHERE module_id = $1 AND start_at >= $2 AND start_at < $3`
	var blocks int
	if err := r.db.GetContext(ctx, &blocks, query, moduleID, from, to, models.BlockMinutes); err != nil {
		return 0, fmt.Errorf("count module blocks: %w", err)
	}
	return blocks, nil
}

func translateEventError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqExclusionViolation:
			return appErrors.Wrap(err, appErrors.ErrSlotConflict.Code, appErrors.ErrSlotConflict.Status, "event overlaps an existing teacher or room commitment")
		case pqUniqueViolation:
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "an event with the same title and interval already exists")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
