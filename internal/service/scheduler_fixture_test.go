package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/block-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
)

// memStore is an in-memory stand-in for the postgres repositories. Inserts
// and updates enforce the teacher and room exclusion constraints and the
// natural-key uniqueness the schema declares.
type memStore struct {
	mu        sync.Mutex
	seq       int
	events    map[string]models.Event
	loads     map[models.TeacherWeek]int
	programs  map[string]models.Program
	modules   []models.Module
	teachers  []models.Teacher
	rooms     []models.Room
	rules     []models.AvailabilityRule
	preferred []models.PreferredRoom
	failures  map[string]error
	// beforeInsert runs without the lock right before an insert is applied.
	beforeInsert func(evt models.Event)
}

func newMemStore() *memStore {
	return &memStore{
		events:   make(map[string]models.Event),
		loads:    make(map[models.TeacherWeek]int),
		programs: map[string]models.Program{"prog-1": {ID: "prog-1", Name: "Bachelor"}},
		failures: make(map[string]error),
	}
}

func (s *memStore) failWith(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *memStore) failure(method string) error {
	return s.failures[method]
}

// seed stores an event directly, bypassing constraints and load upkeep.
func (s *memStore) seed(evt models.Event) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if evt.ID == "" {
		s.seq++
		evt.ID = fmt.Sprintf("evt-%d", s.seq)
	}
	s.events[evt.ID] = evt
	return evt
}

func (s *memStore) Upsert(ctx context.Context, evt *models.Event) (models.UpsertResult, models.EventChange, error) {
	if err := ctx.Err(); err != nil {
		return models.UpsertResult{}, models.EventChange{}, err
	}
	if hook := s.beforeInsert; hook != nil {
		hook(*evt)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Upsert"); err != nil {
		return models.UpsertResult{}, models.EventChange{}, err
	}
	for _, existing := range s.events {
		if existing.Title == evt.Title && existing.StartAt.Equal(evt.StartAt) && existing.EndAt.Equal(evt.EndAt) {
			return models.UpsertResult{ID: existing.ID, Dedup: true}, models.EventChange{}, nil
		}
	}
	if evt.ID != "" {
		if _, ok := s.events[evt.ID]; ok {
			change, err := s.updateLocked(*evt)
			if err != nil {
				return models.UpsertResult{}, models.EventChange{}, err
			}
			return models.UpsertResult{ID: evt.ID}, change, nil
		}
	}
	if err := s.checkExclusionLocked(*evt, ""); err != nil {
		return models.UpsertResult{}, models.EventChange{}, err
	}
	stored := *evt
	if stored.ID == "" {
		s.seq++
		stored.ID = fmt.Sprintf("evt-%d", s.seq)
	}
	s.events[stored.ID] = stored
	current := stored
	return models.UpsertResult{ID: stored.ID}, models.EventChange{Current: &current}, nil
}

func (s *memStore) Update(_ context.Context, evt *models.Event) (models.EventChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[evt.ID]; !ok {
		return models.EventChange{}, sql.ErrNoRows
	}
	return s.updateLocked(*evt)
}

func (s *memStore) updateLocked(evt models.Event) (models.EventChange, error) {
	if err := s.checkExclusionLocked(evt, evt.ID); err != nil {
		return models.EventChange{}, err
	}
	previous := s.events[evt.ID]
	s.events[evt.ID] = evt
	current := evt
	return models.EventChange{Previous: &previous, Current: &current}, nil
}

func (s *memStore) checkExclusionLocked(evt models.Event, skipID string) error {
	for id, existing := range s.events {
		if id == skipID || !existing.Overlaps(evt.StartAt, evt.EndAt) {
			continue
		}
		if sameRef(existing.TeacherID, evt.TeacherID) || sameRef(existing.RoomID, evt.RoomID) {
			return appErrors.Clone(appErrors.ErrSlotConflict, "event overlaps an existing teacher or room commitment")
		}
	}
	return nil
}

func sameRef(a, b *string) bool {
	return a != nil && b != nil && *a != "" && *a == *b
}

func (s *memStore) Delete(_ context.Context, id string) (models.EventChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, ok := s.events[id]
	if !ok {
		return models.EventChange{}, sql.ErrNoRows
	}
	delete(s.events, id)
	return models.EventChange{Previous: &previous}, nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evt, ok := s.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &evt, nil
}

func (s *memStore) List(_ context.Context, filter models.EventFilter) ([]models.Event, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("List"); err != nil {
		return nil, 0, err
	}
	var out []models.Event
	for _, evt := range s.sortedLocked() {
		if filter.TeacherID != "" && !sameRef(evt.TeacherID, &filter.TeacherID) {
			continue
		}
		if filter.RoomID != "" && !sameRef(evt.RoomID, &filter.RoomID) {
			continue
		}
		if filter.From != nil && !evt.EndAt.After(*filter.From) {
			continue
		}
		if filter.To != nil && !evt.StartAt.Before(*filter.To) {
			continue
		}
		out = append(out, evt)
	}
	return out, len(out), nil
}

func (s *memStore) HasTeacherOverlap(_ context.Context, teacherID string, start, end time.Time) (bool, error) {
	return s.hasOverlap(func(e models.Event) bool { return sameRef(e.TeacherID, &teacherID) }, start, end)
}

func (s *memStore) HasRoomOverlap(_ context.Context, roomID string, start, end time.Time) (bool, error) {
	return s.hasOverlap(func(e models.Event) bool { return sameRef(e.RoomID, &roomID) }, start, end)
}

func (s *memStore) hasOverlap(match func(models.Event) bool, start, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Overlap"); err != nil {
		return false, err
	}
	for _, evt := range s.events {
		if match(evt) && evt.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CountModuleBlocks(_ context.Context, moduleID string, from, to time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countBlocksLocked(moduleID, from, to), nil
}

func (s *memStore) countBlocksLocked(moduleID string, from, to time.Time) int {
	blocks := 0
	for _, evt := range s.events {
		if !sameRef(evt.ModuleID, &moduleID) || evt.StartAt.Before(from) || !evt.StartAt.Before(to) {
			continue
		}
		blocks += int(math.Round(float64(evt.Minutes()) / models.BlockMinutes))
	}
	return blocks
}

func (s *memStore) Recompute(_ context.Context, teacherID string, week models.WeekKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("Recompute"); err != nil {
		return 0, err
	}
	minutes := s.sumMinutesLocked(teacherID, week)
	key := models.TeacherWeek{TeacherID: teacherID, Week: week}
	if minutes == 0 {
		delete(s.loads, key)
	} else {
		s.loads[key] = minutes
	}
	return minutes, nil
}

func (s *memStore) sumMinutesLocked(teacherID string, week models.WeekKey) int {
	minutes := 0
	for _, evt := range s.events {
		if sameRef(evt.TeacherID, &teacherID) && models.ISOWeekOf(evt.StartAt) == week {
			minutes += evt.Minutes()
		}
	}
	return minutes
}

func (s *memStore) WeekMinutes(_ context.Context, teacherIDs []string, week models.WeekKey) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("WeekMinutes"); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(teacherIDs))
	for _, id := range teacherIDs {
		out[id] = s.loads[models.TeacherWeek{TeacherID: id, Week: week}]
	}
	return out, nil
}

func (s *memStore) ListByTeacher(_ context.Context, teacherID string, from, to models.WeekKey) ([]models.WeeklyLoad, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WeeklyLoad
	for key, minutes := range s.loads {
		if key.TeacherID != teacherID || key.Week.Start().Before(from.Start()) || key.Week.Start().After(to.Start()) {
			continue
		}
		out = append(out, models.WeeklyLoad{TeacherID: teacherID, ISOYear: key.Week.Year, ISOWeek: key.Week.Week, MinutesUsed: minutes})
	}
	return out, nil
}

func (s *memStore) FindProgram(_ context.Context, id string) (*models.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("FindProgram"); err != nil {
		return nil, err
	}
	program, ok := s.programs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &program, nil
}

func (s *memStore) FindTeacher(_ context.Context, id string) (*models.Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, teacher := range s.teachers {
		if teacher.ID == id {
			t := teacher
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) ListPendingModules(_ context.Context, programID string, from, to time.Time) ([]models.PendingModule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PendingModule
	for _, module := range s.modules {
		if module.ProgramID != programID {
			continue
		}
		satisfied := s.countBlocksLocked(module.ID, from, to)
		if satisfied < module.RequiredBlocks() {
			out = append(out, models.PendingModule{Module: module, SatisfiedBlocks: satisfied})
		}
	}
	return out, nil
}

func (s *memStore) ListEligibleTeachers(_ context.Context, _ string) ([]models.Teacher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Teacher
	for _, teacher := range s.teachers {
		if teacher.Active {
			out = append(out, teacher)
		}
	}
	return out, nil
}

func (s *memStore) ListUsableRooms(_ context.Context, _ string) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Room(nil), s.rooms...), nil
}

func (s *memStore) ListPreferredRooms(_ context.Context, programID string) ([]models.PreferredRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PreferredRoom
	for _, pref := range s.preferred {
		if pref.ProgramID == programID {
			out = append(out, pref)
		}
	}
	return out, nil
}

func (s *memStore) ListAvailabilityRules(_ context.Context, teacherIDs []string) ([]models.AvailabilityRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		wanted[id] = true
	}
	var out []models.AvailabilityRule
	for _, rule := range s.rules {
		if wanted[rule.TeacherID] {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *memStore) sortedLocked() []models.Event {
	out := make([]models.Event, 0, len(s.events))
	for _, evt := range s.events {
		out = append(out, evt)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].StartAt.Before(out[j].StartAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memStore) snapshot() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// assertStoreInvariants checks non-overlap and load consistency.
func (s *memStore) assertStoreInvariants(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.sortedLocked()
	for i := range events {
		for j := i + 1; j < len(events); j++ {
			a, b := events[i], events[j]
			if !a.Overlaps(b.StartAt, b.EndAt) {
				continue
			}
			require.False(t, sameRef(a.TeacherID, b.TeacherID), "teacher double booked: %s %s", a.ID, b.ID)
			require.False(t, sameRef(a.RoomID, b.RoomID), "room double booked: %s %s", a.ID, b.ID)
		}
	}
	expected := make(map[models.TeacherWeek]int)
	for _, evt := range events {
		if evt.TeacherID == nil {
			continue
		}
		expected[models.TeacherWeek{TeacherID: *evt.TeacherID, Week: models.ISOWeekOf(evt.StartAt)}] += evt.Minutes()
	}
	require.Equal(t, expected, s.loads, "weekly loads diverge from events")
}

type fixedClock struct {
	now time.Time
	loc *time.Location
}

func (c fixedClock) Now() time.Time { return c.now }

func (c fixedClock) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// monday is 2025-01-06, the first day of ISO week 2025-W02.
var monday = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)

type schedulerHarness struct {
	store     *memStore
	loads     *LoadTracker
	events    *EventService
	checker   *AvailabilityChecker
	scheduler *SchedulerService
	metrics   *MetricsService
}

func newSchedulerHarness(t *testing.T, store *memStore, cfg SchedulerConfig) *schedulerHarness {
	t.Helper()
	return newSchedulerHarnessWithClock(t, store, cfg, fixedClock{now: monday})
}

func newSchedulerHarnessWithClock(t *testing.T, store *memStore, cfg SchedulerConfig, clock fixedClock) *schedulerHarness {
	t.Helper()
	metrics := NewMetricsService()
	loads := NewLoadTracker(store, store, nil, metrics, clock, nil, LoadTrackerConfig{})
	events := NewEventService(store, loads, nil, metrics, nil)
	checker := NewAvailabilityChecker(store, store)
	scheduler := NewSchedulerService(store, checker, loads, events, store, NewSlotScorer(), clock, nil, metrics, nil, cfg)
	return &schedulerHarness{store: store, loads: loads, events: events, checker: checker, scheduler: scheduler, metrics: metrics}
}

func teacher(id, name string, priority int, capHours float64) models.Teacher {
	return models.Teacher{ID: id, FullName: name, Priority: priority, WeeklyHourCap: capHours, Active: true}
}

func module(id string, minutes int) models.Module {
	return models.Module{ID: id, ProgramID: "prog-1", Name: "Module " + id, SubjectCode: id, WeeklyMinutes: minutes}
}

func ref(value string) *string {
	return &value
}

func blockEvent(title, teacherID, roomID, moduleID string, day time.Time, block int) models.Event {
	start := models.BlockStart(day, block, time.UTC)
	evt := models.Event{
		Title:     title,
		TeacherID: ref(teacherID),
		RoomID:    ref(roomID),
		StartAt:   start,
		EndAt:     start.Add(models.BlockDuration),
	}
	if moduleID != "" {
		evt.ModuleID = ref(moduleID)
		evt.ProgramID = ref("prog-1")
	}
	return evt
}
