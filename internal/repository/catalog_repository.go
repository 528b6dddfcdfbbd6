package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/block-scheduler-api/internal/models"
)

// CatalogRepository reads programs, modules, teachers and rooms. The catalog
// is owned by another system; this service never writes it.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs a CatalogRepository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindProgram fetches a program by id.
func (r *CatalogRepository) FindProgram(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, name, created_at, updated_at FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// FindTeacher fetches a teacher outside of any program context.
func (r *CatalogRepository) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, full_name, weekly_hour_cap, active, 0 AS priority FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// ListPendingModules returns the program's modules whose committed blocks
// starting in [from, to) are fewer than their required blocks, heaviest first.
func (r *CatalogRepository) ListPendingModules(ctx context.Context, programID string, from, to time.Time) ([]models.PendingModule, error) {
	const query = `SELECT m.id, m.program_id, m.name, m.subject_code, m.weekly_minutes,
			COALESCE(c.blocks, 0) AS satisfied_blocks
		FROM modules m
		LEFT JOIN LATERAL (
			SELECT SUM(ROUND(EXTRACT(EPOCH FROM (e.end_at - e.start_at)) / 60 / $4))::int AS blocks
			FROM events e
			WHERE e.module_id = m.id AND e.start_at >= $2 AND e.start_at < $3
		) c ON TRUE
		WHERE m.program_id = $1
			AND m.weekly_minutes > 0
			AND COALESCE(c.blocks, 0) < CEIL(m.weekly_minutes::numeric / $4)
		ORDER BY m.weekly_minutes DESC, m.id ASC`
	var modules []models.PendingModule
	if err := r.db.SelectContext(ctx, &modules, query, programID, from, to, models.BlockMinutes); err != nil {
		return nil, fmt.Errorf("list pending modules: %w", err)
	}
	return modules, nil
}

// ListEligibleTeachers returns active teachers linked to the program ordered
// by priority then name. Links without a priority rank last.
func (r *CatalogRepository) ListEligibleTeachers(ctx context.Context, programID string) ([]models.Teacher, error) {
	const query = `SELECT t.id, t.full_name, t.weekly_hour_cap, t.active,
			COALESCE(tp.priority, $2) AS priority
		FROM teacher_programs tp
		JOIN teachers t ON t.id = tp.teacher_id
		WHERE tp.program_id = $1 AND t.active AND COALESCE(tp.active, TRUE)
		ORDER BY priority ASC, t.full_name ASC, t.id ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, programID, models.DefaultPriority); err != nil {
		return nil, fmt.Errorf("list eligible teachers: %w", err)
	}
	return teachers, nil
}

// ListUsableRooms returns rooms without program restrictions plus rooms
// restricted to the program.
func (r *CatalogRepository) ListUsableRooms(ctx context.Context, programID string) ([]models.Room, error) {
	const query = `SELECT r.id, r.name, r.capacity FROM rooms r
		WHERE NOT EXISTS (SELECT 1 FROM room_programs rp WHERE rp.room_id = r.id)
			OR EXISTS (SELECT 1 FROM room_programs rp WHERE rp.room_id = r.id AND rp.program_id = $1)
		ORDER BY r.capacity DESC, r.name ASC, r.id ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, programID); err != nil {
		return nil, fmt.Errorf("list usable rooms: %w", err)
	}
	return rooms, nil
}

// ListAvailabilityRules returns the explicit rules of the given teachers.
func (r *CatalogRepository) ListAvailabilityRules(ctx context.Context, teacherIDs []string) ([]models.AvailabilityRule, error) {
	if len(teacherIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, teacher_id, weekday, block_from, block_to, effect, valid_from, valid_until
		FROM teacher_availability_rules
		WHERE teacher_id = ANY($1)
		ORDER BY teacher_id ASC, weekday ASC, block_from ASC`
	var rules []models.AvailabilityRule
	if err := r.db.SelectContext(ctx, &rules, query, pq.Array(teacherIDs)); err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	return rules, nil
}

// ListPreferredRooms returns program-level and module-level room preferences.
func (r *CatalogRepository) ListPreferredRooms(ctx context.Context, programID string) ([]models.PreferredRoom, error) {
	const query = `SELECT program_id, module_id, room_id FROM preferred_rooms WHERE program_id = $1`
	var prefs []models.PreferredRoom
	if err := r.db.SelectContext(ctx, &prefs, query, programID); err != nil {
		return nil, fmt.Errorf("list preferred rooms: %w", err)
	}
	return prefs, nil
}
