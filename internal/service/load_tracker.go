package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/block-scheduler-api/internal/dto"
	"github.com/noah-isme/block-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
)

const (
	loadReportDateLayout  = "2006-01-02"
	loadReportMaxDays     = 366
	loadReportDefaultDays = 28
)

type weeklyLoadStore interface {
	Recompute(ctx context.Context, teacherID string, week models.WeekKey) (int, error)
	WeekMinutes(ctx context.Context, teacherIDs []string, week models.WeekKey) (map[string]int, error)
	ListByTeacher(ctx context.Context, teacherID string, from, to models.WeekKey) ([]models.WeeklyLoad, error)
}

type loadTeacherReader interface {
	FindTeacher(ctx context.Context, id string) (*models.Teacher, error)
}

// LoadTrackerConfig tunes report caching.
type LoadTrackerConfig struct {
	CacheTTL time.Duration
}

// LoadTracker keeps teacher_weekly_loads equal to the committed events. Rows
// are only ever recomputed from events, never adjusted incrementally.
type LoadTracker struct {
	store    weeklyLoadStore
	teachers loadTeacherReader
	cache    *CacheService
	metrics  *MetricsService
	clock    Clock
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewLoadTracker wires the tracker. cache, metrics and teachers may be nil.
func NewLoadTracker(store weeklyLoadStore, teachers loadTeacherReader, cache *CacheService, metrics *MetricsService, clock Clock, logger *zap.Logger, cfg LoadTrackerConfig) *LoadTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = &SystemClock{}
	}
	return &LoadTracker{
		store:    store,
		teachers: teachers,
		cache:    cache,
		metrics:  metrics,
		clock:    clock,
		logger:   logger,
		cacheTTL: cfg.CacheTTL,
	}
}

// Recompute rebuilds one (teacher, ISO week) row.
func (t *LoadTracker) Recompute(ctx context.Context, teacherID string, isoYear, isoWeek int) error {
	if strings.TrimSpace(teacherID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	if isoWeek < 1 || isoWeek > 53 {
		return appErrors.Clone(appErrors.ErrValidation, "iso week must be between 1 and 53")
	}
	week := models.WeekKey{Year: isoYear, Week: isoWeek}
	start := time.Now()
	minutes, err := t.store.Recompute(ctx, teacherID, week)
	t.metrics.ObserveDBQuery("weekly_load_recompute", time.Since(start))
	if err != nil {
		return storageFailure(err, "failed to recompute weekly load")
	}
	t.metrics.IncLoadRecompute(1)
	t.logger.Debug("weekly load recomputed",
		zap.String("teacher_id", teacherID),
		zap.String("week", week.String()),
		zap.Int("minutes", minutes),
	)
	return nil
}

// RecomputeChange rebuilds every distinct (teacher, week) pair touched by an
// event mutation, covering both the old and the new row.
func (t *LoadTracker) RecomputeChange(ctx context.Context, change models.EventChange) error {
	keys := change.WeekKeys()
	teachers := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if err := t.Recompute(ctx, key.TeacherID, key.Week.Year, key.Week.Week); err != nil {
			return err
		}
		teachers[key.TeacherID] = struct{}{}
	}
	for teacherID := range teachers {
		t.cache.Invalidate(ctx, loadReportCachePattern(teacherID))
	}
	return nil
}

// WeekMinutes returns minutes used by each teacher in the ISO week.
func (t *LoadTracker) WeekMinutes(ctx context.Context, teacherIDs []string, week models.WeekKey) (map[string]int, error) {
	minutes, err := t.store.WeekMinutes(ctx, teacherIDs, week)
	if err != nil {
		return nil, err
	}
	return minutes, nil
}

// Report lists weekly loads for a teacher between two dates, filling weeks
// without events with zero. Results are cached until the teacher's events change.
func (t *LoadTracker) Report(ctx context.Context, teacherID string, query dto.TeacherLoadQuery) (*dto.TeacherLoadReport, error) {
	teacherID = strings.TrimSpace(teacherID)
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	from, to, err := t.reportRange(query)
	if err != nil {
		return nil, err
	}

	cacheKey := loadReportCacheKey(teacherID, from, to)
	var cached dto.TeacherLoadReport
	if t.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	capMinutes := 0
	if t.teachers != nil {
		teacher, err := t.teachers.FindTeacher(ctx, teacherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
			}
			return nil, storageFailure(err, "failed to load teacher")
		}
		capMinutes = teacher.CapMinutes()
	}

	fromWeek, toWeek := models.ISOWeekOf(from), models.ISOWeekOf(to)
	rows, err := t.store.ListByTeacher(ctx, teacherID, fromWeek, toWeek)
	if err != nil {
		return nil, storageFailure(err, "failed to list weekly loads")
	}
	byWeek := make(map[models.WeekKey]int, len(rows))
	for _, row := range rows {
		byWeek[row.Key()] = row.MinutesUsed
	}

	report := &dto.TeacherLoadReport{
		TeacherID: teacherID,
		From:      from.Format(loadReportDateLayout),
		To:        to.Format(loadReportDateLayout),
		Weeks:     make([]dto.WeeklyLoadItem, 0),
	}
	for weekStart := fromWeek.Start(); !weekStart.After(toWeek.Start()); weekStart = weekStart.AddDate(0, 0, 7) {
		key := models.ISOWeekOf(weekStart)
		minutes := byWeek[key]
		item := dto.WeeklyLoadItem{
			ISOYear:     key.Year,
			ISOWeek:     key.Week,
			WeekStart:   weekStart.Format(loadReportDateLayout),
			MinutesUsed: minutes,
			Blocks:      minutes / models.BlockMinutes,
			CapMinutes:  capMinutes,
		}
		if capMinutes > 0 {
			item.Utilization = float64(minutes) / float64(capMinutes)
		}
		report.TotalMinutes += minutes
		report.Weeks = append(report.Weeks, item)
	}

	t.cache.Set(ctx, cacheKey, report, t.cacheTTL)
	return report, nil
}

func (t *LoadTracker) reportRange(query dto.TeacherLoadQuery) (time.Time, time.Time, error) {
	now := t.clock.Now().UTC()
	from := models.MondayOf(now, time.UTC)
	if query.From != "" {
		parsed, err := time.Parse(loadReportDateLayout, query.From)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "from must be a YYYY-MM-DD date")
		}
		from = parsed
	}
	to := from.AddDate(0, 0, loadReportDefaultDays-1)
	if query.To != "" {
		parsed, err := time.Parse(loadReportDateLayout, query.To)
		if err != nil {
			return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must be a YYYY-MM-DD date")
		}
		to = parsed
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if to.Sub(from) > loadReportMaxDays*24*time.Hour {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("range must not exceed %d days", loadReportMaxDays))
	}
	return from, to, nil
}

func loadReportCacheKey(teacherID string, from, to time.Time) string {
	return fmt.Sprintf("loads:%s:%s:%s", teacherID, from.Format(loadReportDateLayout), to.Format(loadReportDateLayout))
}

func loadReportCachePattern(teacherID string) string {
	return fmt.Sprintf("loads:%s:*", teacherID)
}
