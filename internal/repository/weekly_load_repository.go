package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/block-scheduler-api/internal/models"
)

// WeeklyLoadRepository maintains the teacher_weekly_loads aggregate.
type WeeklyLoadRepository struct {
	db *sqlx.DB
}

// NewWeeklyLoadRepository constructs a WeeklyLoadRepository.
func NewWeeklyLoadRepository(db *sqlx.DB) *WeeklyLoadRepository {
	return &WeeklyLoadRepository{db: db}
}

// Recompute derives the teacher's minutes for the ISO week from committed
// events and stores the row, or deletes it when the sum is zero. Concurrent
// recomputes of the same row are serialised with a transaction-scoped
// advisory lock so the last writer always reads the latest commits.
func (r *WeeklyLoadRepository) Recompute(ctx context.Context, teacherID string, week models.WeekKey) (minutes int, err error) {
	start, end := week.Bounds()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin weekly load recompute: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, teacherID+"|"+week.String()); err != nil {
		err = fmt.Errorf("lock weekly load: %w", err)
		return 0, err
	}

	const sumQuery = `SELECT COALESCE(SUM(EXTRACT(EPOCH FROM (end_at - start_at)) / 60), 0)::int
		FROM events WHERE teacher_id = $1 AND start_at >= $2 AND start_at < $3`
	if err = tx.GetContext(ctx, &minutes, sumQuery, teacherID, start, end); err != nil {
		err = fmt.Errorf("sum weekly minutes: %w", err)
		return 0, err
	}

	if minutes > 0 {
		const upsert = `INSERT INTO teacher_weekly_loads (teacher_id, iso_year, iso_week, minutes_used, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (teacher_id, iso_year, iso_week) DO UPDATE
			SET minutes_used = EXCLUDED.minutes_used, updated_at = EXCLUDED.updated_at`
		if _, err = tx.ExecContext(ctx, upsert, teacherID, week.Year, week.Week, minutes); err != nil {
			err = fmt.Errorf("upsert weekly load: %w", err)
			return 0, err
		}
	} else {
		const del = `DELETE FROM teacher_weekly_loads WHERE teacher_id = $1 AND iso_year = $2 AND iso_week = $3`
		if _, err = tx.ExecContext(ctx, del, teacherID, week.Year, week.Week); err != nil {
			err = fmt.Errorf("delete weekly load: %w", err)
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit weekly load: %w", err)
		return 0, err
	}
	return minutes, nil
}

// WeekMinutes returns minutes used in the week for each requested teacher.
// Teachers without a row are reported as zero.
func (r *WeeklyLoadRepository) WeekMinutes(ctx context.Context, teacherIDs []string, week models.WeekKey) (map[string]int, error) {
	result := make(map[string]int, len(teacherIDs))
	if len(teacherIDs) == 0 {
		return result, nil
	}
	for _, id := range teacherIDs {
		result[id] = 0
	}

	const query = `SELECT teacher_id, minutes_used FROM teacher_weekly_loads
		WHERE teacher_id = ANY($1) AND iso_year = $2 AND iso_week = $3`
	var rows []models.WeeklyLoad
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(teacherIDs), week.Year, week.Week); err != nil {
		return nil, fmt.Errorf("load week minutes: %w", err)
	}
	for _, row := range rows {
		result[row.TeacherID] = row.MinutesUsed
	}
	return result, nil
}

// ListByTeacher returns the stored weekly rows between two ISO weeks inclusive.
func (r *WeeklyLoadRepository) ListByTeacher(ctx context.Context, teacherID string, from, to models.WeekKey) ([]models.WeeklyLoad, error) {
	const query = `SELECT teacher_id, iso_year, iso_week, minutes_used, updated_at FROM teacher_weekly_loads
		WHERE teacher_id = $1 AND (iso_year, iso_week) >= ($2, $3) AND (iso_year, iso_week) <= ($4, $5)
		ORDER BY iso_year ASC, iso_week ASC`
	var rows []models.WeeklyLoad
	if err := r.db.SelectContext(ctx, &rows, query, teacherID, from.Year, from.Week, to.Year, to.Week); err != nil {
		return nil, fmt.Errorf("list weekly loads: %w", err)
	}
	return rows, nil
}
