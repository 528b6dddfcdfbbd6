package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/block-scheduler-api/internal/dto"
	"github.com/noah-isme/block-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
)

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.items, key)
		}
	}
	return nil
}

func newLoadTrackerForTest(t *testing.T) (*LoadTracker, *EventService, *memStore, *memCache) {
	t.Helper()
	store := newMemStore()
	store.teachers = []models.Teacher{teacher("t1", "Ana", 1, 2)}
	cacheRepo := newMemCache()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	tracker := NewLoadTracker(store, store, cache, nil, fixedClock{now: monday.Add(10 * time.Hour)}, nil, LoadTrackerConfig{CacheTTL: time.Minute})
	events := NewEventService(store, tracker, nil, nil, nil)
	return tracker, events, store, cacheRepo
}

func TestLoadTrackerRecomputeMatchesEvents(t *testing.T) {
	tracker, _, store, _ := newLoadTrackerForTest(t)
	week := models.ISOWeekOf(monday)
	store.seed(blockEvent("a", "t1", "r1", "", monday, 1))
	store.seed(blockEvent("b", "t1", "r1", "", monday.AddDate(0, 0, 4), 2))
	// Sunday 23:00 UTC belongs to the previous ISO week.
	sunday := monday.Add(-time.Hour)
	store.seed(models.Event{Title: "c", TeacherID: ref("t1"), StartAt: sunday, EndAt: sunday.Add(30 * time.Minute)})

	require.NoError(t, tracker.Recompute(context.Background(), "t1", week.Year, week.Week))
	assert.Equal(t, 70, store.loads[models.TeacherWeek{TeacherID: "t1", Week: week}])

	minutes, err := tracker.WeekMinutes(context.Background(), []string{"t1", "t2"}, week)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"t1": 70, "t2": 0}, minutes)
}

func TestLoadTrackerRecomputeValidation(t *testing.T) {
	tracker, _, store, _ := newLoadTrackerForTest(t)

	assert.True(t, errors.Is(tracker.Recompute(context.Background(), "", 2025, 2), appErrors.ErrValidation))
	assert.True(t, errors.Is(tracker.Recompute(context.Background(), "t1", 2025, 54), appErrors.ErrValidation))

	store.failWith("Recompute", errors.New("deadlock detected"))
	assert.True(t, errors.Is(tracker.Recompute(context.Background(), "t1", 2025, 2), appErrors.ErrStorageUnavailable))
}

func TestLoadTrackerReportFillsEmptyWeeks(t *testing.T) {
	tracker, events, _, _ := newLoadTrackerForTest(t)
	_, err := events.Upsert(context.Background(), lessonRequest("MAT101", "t1", "r1", models.BlockStart(monday, 1, time.UTC), 2))
	require.NoError(t, err)

	report, err := tracker.Report(context.Background(), "t1", dto.TeacherLoadQuery{})
	require.NoError(t, err)

	assert.Equal(t, "2025-01-06", report.From)
	assert.Equal(t, "2025-02-02", report.To)
	require.Len(t, report.Weeks, 4)
	assert.Equal(t, 70, report.TotalMinutes)
	first := report.Weeks[0]
	assert.Equal(t, 2, first.ISOWeek)
	assert.Equal(t, 70, first.MinutesUsed)
	assert.Equal(t, 2, first.Blocks)
	assert.Equal(t, 120, first.CapMinutes)
	assert.InDelta(t, 70.0/120.0, first.Utilization, 1e-9)
	assert.Equal(t, 0, report.Weeks[3].MinutesUsed)
}

func TestLoadTrackerReportCacheInvalidatedByMutation(t *testing.T) {
	tracker, events, _, cacheRepo := newLoadTrackerForTest(t)
	query := dto.TeacherLoadQuery{From: "2025-01-06", To: "2025-01-12"}

	report, err := tracker.Report(context.Background(), "t1", query)
	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalMinutes)
	assert.Len(t, cacheRepo.items, 1)

	_, err = events.Upsert(context.Background(), lessonRequest("MAT101", "t1", "r1", models.BlockStart(monday, 1, time.UTC), 1))
	require.NoError(t, err)
	assert.Empty(t, cacheRepo.items, "mutation drops cached reports")

	report, err = tracker.Report(context.Background(), "t1", query)
	require.NoError(t, err)
	assert.Equal(t, 35, report.TotalMinutes)
}

func TestLoadTrackerReportErrors(t *testing.T) {
	tracker, _, _, _ := newLoadTrackerForTest(t)

	_, err := tracker.Report(context.Background(), "ghost", dto.TeacherLoadQuery{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = tracker.Report(context.Background(), "t1", dto.TeacherLoadQuery{From: "06/01/2025"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = tracker.Report(context.Background(), "t1", dto.TeacherLoadQuery{From: "2025-02-01", To: "2025-01-01"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = tracker.Report(context.Background(), "t1", dto.TeacherLoadQuery{From: "2024-01-01", To: "2025-06-01"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
