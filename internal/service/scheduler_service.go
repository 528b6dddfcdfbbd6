package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/block-scheduler-api/internal/dto"
	"github.com/noah-isme/block-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
	"github.com/noah-isme/block-scheduler-api/pkg/jobs"
)

const schedulerJobType = "scheduler.run"

type schedulerCatalog interface {
	FindProgram(ctx context.Context, id string) (*models.Program, error)
	ListPendingModules(ctx context.Context, programID string, from, to time.Time) ([]models.PendingModule, error)
	ListEligibleTeachers(ctx context.Context, programID string) ([]models.Teacher, error)
	ListUsableRooms(ctx context.Context, programID string) ([]models.Room, error)
	ListPreferredRooms(ctx context.Context, programID string) ([]models.PreferredRoom, error)
}

type slotChecker interface {
	IsTeacherFree(ctx context.Context, teacherID string, start, end time.Time) (bool, error)
	IsRoomFree(ctx context.Context, roomID string, start, end time.Time) (bool, error)
	LoadPolicy(ctx context.Context, teacherIDs []string) (AvailabilityPolicy, error)
}

type weekLoadReader interface {
	WeekMinutes(ctx context.Context, teacherIDs []string, week models.WeekKey) (map[string]int, error)
}

type eventCommitter interface {
	Commit(ctx context.Context, evt *models.Event) (models.UpsertResult, error)
}

type moduleBlockCounter interface {
	CountModuleBlocks(ctx context.Context, moduleID string, from, to time.Time) (int, error)
}

type candidateScorer interface {
	Score(c SlotCandidate) int64
}

type runEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// SchedulerConfig governs scheduler behaviour.
type SchedulerConfig struct {
	DefaultShift models.Shift
	MaxWeeks     int
	RunTTL       time.Duration
	RunTimeout   time.Duration
}

// SchedulerService places pending module blocks into concrete events. A run
// is strictly sequential: modules, then weeks, weekdays and blocks in order.
// Each block is committed on its own, so blocks placed before a failure stay.
type SchedulerService struct {
	catalog   schedulerCatalog
	checker   slotChecker
	loads     weekLoadReader
	events    eventCommitter
	counter   moduleBlockCounter
	scorer    candidateScorer
	clock     Clock
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       SchedulerConfig
	runs      *runStore
	queue     runEnqueuer
}

// NewSchedulerService wires scheduler dependencies.
func NewSchedulerService(
	catalog schedulerCatalog,
	checker slotChecker,
	loads weekLoadReader,
	events eventCommitter,
	counter moduleBlockCounter,
	scorer candidateScorer,
	clock Clock,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg SchedulerConfig,
) *SchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if scorer == nil {
		scorer = NewSlotScorer()
	}
	if clock == nil {
		clock = &SystemClock{}
	}
	if cfg.DefaultShift == "" {
		cfg.DefaultShift = models.ShiftDay
	}
	if cfg.MaxWeeks <= 0 {
		cfg.MaxWeeks = 26
	}
	if cfg.RunTTL <= 0 {
		cfg.RunTTL = time.Hour
	}
	return &SchedulerService{
		catalog:   catalog,
		checker:   checker,
		loads:     loads,
		events:    events,
		counter:   counter,
		scorer:    scorer,
		clock:     clock,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		runs:      newRunStore(cfg.RunTTL),
	}
}

// AttachQueue enables asynchronous runs on q. HandleJob must be q's handler.
func (s *SchedulerService) AttachQueue(q runEnqueuer) {
	s.queue = q
}

// Run executes a scheduler run synchronously. On cancellation the partial
// result is returned with Partial set and a nil error. On storage failure the
// partial result is returned together with ErrStorageUnavailable.
func (s *SchedulerService) Run(ctx context.Context, req dto.RunSchedulerRequest) (*dto.RunSchedulerResponse, error) {
	runReq, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	s.runs.Save(dto.RunRecord{RunID: runID, Status: dto.RunStatusRunning, Request: runReq.request, RequestedAt: s.clock.Now().UTC()})

	result, err := s.execute(ctx, runID, runReq)
	s.finishRecord(runID, result, err)
	return result, err
}

// RunAsync validates the request and queues it for a background worker.
func (s *SchedulerService) RunAsync(ctx context.Context, req dto.RunSchedulerRequest) (*dto.RunAccepted, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "asynchronous runs are disabled")
	}
	runReq, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	s.runs.Save(dto.RunRecord{RunID: runID, Status: dto.RunStatusQueued, Request: runReq.request, RequestedAt: s.clock.Now().UTC()})

	if err := s.queue.TryEnqueue(jobs.Job{ID: runID, Type: schedulerJobType, Payload: runReq.request}); err != nil {
		s.runs.Delete(runID)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Clone(appErrors.ErrSchedulerBusy, "scheduler queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue scheduler run")
	}
	s.logger.Info("scheduler run queued", zap.String("run_id", runID), zap.String("program_id", runReq.programID))
	return &dto.RunAccepted{RunID: runID, Status: dto.RunStatusQueued}, nil
}

// HandleJob is the queue handler for asynchronous runs. Failures are stored
// on the run record rather than retried.
func (s *SchedulerService) HandleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.RunSchedulerRequest)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	if !s.runs.Update(job.ID, func(r *dto.RunRecord) { r.Status = dto.RunStatusRunning }) {
		s.logger.Warn("scheduler run record expired before execution", zap.String("run_id", job.ID))
	}
	runReq, err := s.normalize(req)
	if err != nil {
		s.finishRecord(job.ID, nil, err)
		return nil
	}
	result, err := s.execute(ctx, job.ID, runReq)
	s.finishRecord(job.ID, result, err)
	return nil
}

// GetRun returns a stored run record.
func (s *SchedulerService) GetRun(_ context.Context, runID string) (*dto.RunRecord, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "run id is required")
	}
	record, ok := s.runs.Get(runID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "run not found or expired")
	}
	return &record, nil
}

func (s *SchedulerService) finishRecord(runID string, result *dto.RunSchedulerResponse, err error) {
	s.runs.Update(runID, func(r *dto.RunRecord) {
		r.Result = result
		if err != nil {
			r.Status = dto.RunStatusFailed
			r.Error = appErrors.FromError(err).Message
			return
		}
		r.Status = dto.RunStatusSucceeded
	})
}

type runRequest struct {
	request   dto.RunSchedulerRequest
	programID string
	numWeeks  int
	shift     models.Shift
	startDate time.Time
}

func (s *SchedulerService) normalize(req dto.RunSchedulerRequest) (runRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return runRequest{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduler run payload")
	}
	programID := strings.TrimSpace(req.ProgramID)
	if programID == "" {
		return runRequest{}, appErrors.Clone(appErrors.ErrValidation, "programId is required")
	}
	numWeeks := req.NumWeeks
	if numWeeks == 0 {
		numWeeks = 1
	}
	if numWeeks > s.cfg.MaxWeeks {
		return runRequest{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("numWeeks must not exceed %d", s.cfg.MaxWeeks))
	}
	shift := s.cfg.DefaultShift
	if req.Shift != "" {
		parsed, err := models.ParseShift(req.Shift)
		if err != nil {
			return runRequest{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "shift must be day or evening")
		}
		shift = parsed
	}
	start := s.clock.Now()
	switch {
	case req.StartDate != nil:
		if req.StartDate.IsZero() {
			return runRequest{}, appErrors.Clone(appErrors.ErrValidation, "startDate is invalid")
		}
		start = *req.StartDate
	case req.StartDay != "":
		day, err := time.ParseInLocation(dto.DateLayout, req.StartDay, s.clock.Location())
		if err != nil {
			return runRequest{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "startDate is invalid")
		}
		start = day
	}

	req.ProgramID = programID
	req.NumWeeks = numWeeks
	req.Shift = string(shift)
	startCopy := start
	req.StartDate = &startCopy
	req.StartDay = ""
	return runRequest{request: req, programID: programID, numWeeks: numWeeks, shift: shift, startDate: start}, nil
}

// runPlan is the immutable input of a run, resolved before the search starts.
type runPlan struct {
	runID        string
	programID    string
	loc          *time.Location
	shift        models.Shift
	blocks       models.BlockRange
	numWeeks     int
	notBefore    time.Time
	horizonStart time.Time
	horizonEnd   time.Time
	modules      []models.PendingModule
	teachers     []models.Teacher
	teacherIDs   []string
	rooms        []models.Room
	policy       AvailabilityPolicy
	preferred    map[string]map[string]bool
}

func (p *runPlan) isPreferred(moduleID, roomID string) bool {
	if p.preferred[moduleID][roomID] {
		return true
	}
	return p.preferred[""][roomID]
}

func (s *SchedulerService) plan(ctx context.Context, runID string, req runRequest) (*runPlan, error) {
	if _, err := s.catalog.FindProgram(ctx, req.programID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown programId")
		}
		return nil, storageFailure(err, "failed to load program")
	}

	teachers, err := s.catalog.ListEligibleTeachers(ctx, req.programID)
	if err != nil {
		return nil, storageFailure(err, "failed to list eligible teachers")
	}
	if len(teachers) == 0 {
		return nil, appErrors.ErrNoEligibleTeachers
	}

	rooms, err := s.catalog.ListUsableRooms(ctx, req.programID)
	if err != nil {
		return nil, storageFailure(err, "failed to list usable rooms")
	}
	if len(rooms) == 0 {
		return nil, appErrors.ErrNoUsableRooms
	}
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Capacity != rooms[j].Capacity {
			return rooms[i].Capacity > rooms[j].Capacity
		}
		if rooms[i].Name != rooms[j].Name {
			return rooms[i].Name < rooms[j].Name
		}
		return rooms[i].ID < rooms[j].ID
	})

	loc := s.clock.Location()
	horizonStart := models.MondayOf(req.startDate, loc)
	horizonEnd := horizonStart.AddDate(0, 0, req.numWeeks*7)

	modules, err := s.catalog.ListPendingModules(ctx, req.programID, horizonStart, horizonEnd)
	if err != nil {
		return nil, storageFailure(err, "failed to list pending modules")
	}
	sort.SliceStable(modules, func(i, j int) bool {
		if modules[i].WeeklyMinutes != modules[j].WeeklyMinutes {
			return modules[i].WeeklyMinutes > modules[j].WeeklyMinutes
		}
		return modules[i].ID < modules[j].ID
	})

	teacherIDs := make([]string, 0, len(teachers))
	for _, t := range teachers {
		teacherIDs = append(teacherIDs, t.ID)
	}

	p := &runPlan{
		runID:        runID,
		programID:    req.programID,
		loc:          loc,
		shift:        req.shift,
		blocks:       req.shift.Range(),
		numWeeks:     req.numWeeks,
		notBefore:    req.startDate,
		horizonStart: horizonStart,
		horizonEnd:   horizonEnd,
		modules:      modules,
		teachers:     teachers,
		teacherIDs:   teacherIDs,
		rooms:        rooms,
		preferred:    make(map[string]map[string]bool),
	}
	if len(modules) == 0 {
		return p, nil
	}

	if p.policy, err = s.checker.LoadPolicy(ctx, teacherIDs); err != nil {
		return nil, storageFailure(err, "failed to load availability rules")
	}
	prefs, err := s.catalog.ListPreferredRooms(ctx, req.programID)
	if err != nil {
		return nil, storageFailure(err, "failed to list preferred rooms")
	}
	for _, pref := range prefs {
		moduleID := ""
		if pref.ModuleID != nil {
			moduleID = *pref.ModuleID
		}
		if p.preferred[moduleID] == nil {
			p.preferred[moduleID] = make(map[string]bool)
		}
		p.preferred[moduleID][pref.RoomID] = true
	}
	return p, nil
}

// runState is the mutable bookkeeping of one run. It is owned by the run's
// goroutine and never shared.
type runState struct {
	assignments []dto.Assignment
	unmet       []dto.UnmetModule
	placed      map[placedKey]struct{}
	lostRaces   int
}

type placedKey struct {
	moduleID  string
	teacherID string
	day       string
	block     int
}

func (st *runState) record(moduleID, dayKey string, a dto.Assignment) {
	st.placed[placedKey{moduleID, a.TeacherID, dayKey, a.Block}] = struct{}{}
	st.assignments = append(st.assignments, a)
}

func (st *runState) adjacent(moduleID, teacherID, day string, block int) bool {
	if _, ok := st.placed[placedKey{moduleID, teacherID, day, block - 1}]; ok {
		return true
	}
	_, ok := st.placed[placedKey{moduleID, teacherID, day, block + 1}]
	return ok
}

func (s *SchedulerService) execute(ctx context.Context, runID string, req runRequest) (*dto.RunSchedulerResponse, error) {
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}
	started := s.clock.Now().UTC()

	plan, err := s.plan(ctx, runID, req)
	if err != nil {
		outcome := "rejected"
		if errors.Is(err, appErrors.ErrStorageUnavailable) {
			outcome = "failed"
		}
		s.metrics.ObserveSchedulerRun(outcome, time.Since(started), 0, 0, 0)
		return nil, err
	}

	result := &dto.RunSchedulerResponse{
		RunID:        runID,
		ProgramID:    plan.programID,
		Shift:        string(plan.shift),
		HorizonStart: plan.horizonStart,
		HorizonEnd:   plan.horizonEnd,
		Assignments:  make([]dto.Assignment, 0),
		UnmetModules: make([]dto.UnmetModule, 0),
		Summary: dto.RunSummary{
			ModulesConsidered: len(plan.modules),
			Teachers:          len(plan.teachers),
			Rooms:             len(plan.rooms),
		},
		StartedAt: started,
	}
	s.logger.Info("scheduler run started",
		zap.String("run_id", runID),
		zap.String("program_id", plan.programID),
		zap.String("shift", string(plan.shift)),
		zap.Int("weeks", plan.numWeeks),
		zap.Int("pending_modules", len(plan.modules)),
	)

	state := &runState{placed: make(map[placedKey]struct{})}
	var runErr error
	for _, module := range plan.modules {
		if ctx.Err() != nil {
			result.Partial = true
			break
		}
		satisfied, err := s.placeModule(ctx, plan, state, module)
		if required := module.RequiredBlocks(); satisfied < required {
			state.unmet = append(state.unmet, dto.UnmetModule{ModuleID: module.ID, Required: required, Satisfied: satisfied})
			if err == nil {
				s.logger.Warn("module requirement not met",
					zap.String("run_id", runID),
					zap.String("module_id", module.ID),
					zap.Int("required", required),
					zap.Int("satisfied", satisfied),
				)
			}
		}
		if err != nil {
			if isContextError(err) || ctx.Err() != nil {
				result.Partial = true
			} else {
				runErr = storageFailure(err, "scheduler run aborted")
			}
			break
		}
	}

	result.Assignments = append(result.Assignments, state.assignments...)
	result.UnmetModules = append(result.UnmetModules, state.unmet...)
	result.AssignedCount = len(result.Assignments)
	result.Summary.LostRaces = state.lostRaces
	result.FinishedAt = s.clock.Now().UTC()

	outcome := "success"
	switch {
	case runErr != nil:
		outcome = "failed"
	case result.Partial:
		outcome = "partial"
	}
	s.metrics.ObserveSchedulerRun(outcome, time.Since(started), result.AssignedCount, len(result.UnmetModules), state.lostRaces)

	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.String("outcome", outcome),
		zap.Int("assigned", result.AssignedCount),
		zap.Int("unmet_modules", len(result.UnmetModules)),
		zap.Int("lost_races", state.lostRaces),
	}
	if runErr != nil {
		s.logger.Error("scheduler run failed", append(fields, zap.Error(runErr))...)
		return result, runErr
	}
	s.logger.Info("scheduler run finished", fields...)
	return result, nil
}

// placeModule scans the slot space for one module and returns the number of
// blocks satisfied in the horizon when it stops.
func (s *SchedulerService) placeModule(ctx context.Context, plan *runPlan, state *runState, module models.PendingModule) (int, error) {
	required := module.RequiredBlocks()
	satisfied := module.SatisfiedBlocks
	title := module.EventTitle()

	for week := 0; week < plan.numWeeks && satisfied < required; week++ {
		for weekday := 1; weekday <= 5 && satisfied < required; weekday++ {
			day := plan.horizonStart.AddDate(0, 0, week*7+weekday-1)
			dayKey := day.Format("2006-01-02")
			for block := plan.blocks.From; block <= plan.blocks.To && satisfied < required; block++ {
				start := models.BlockStart(day, block, plan.loc)
				end := start.Add(models.BlockDuration)
				if start.Before(plan.notBefore) {
					continue
				}

				// A lost slot conflict re-evaluates the same position without
				// the rejected pair, so a free alternative is not skipped.
				var rejected map[pairKey]struct{}
				for satisfied < required {
					if err := ctx.Err(); err != nil {
						return satisfied, err
					}
					pick, err := s.bestCandidate(ctx, plan, state, module, weekday, block, dayKey, day, start, end, rejected)
					if err != nil {
						return satisfied, err
					}
					if pick == nil {
						break
					}

					// Another writer may have satisfied the module since the last check.
					counted, err := s.counter.CountModuleBlocks(ctx, module.ID, plan.horizonStart, plan.horizonEnd)
					if err != nil {
						return satisfied, err
					}
					if counted > satisfied {
						satisfied = counted
					}
					if satisfied >= required {
						break
					}

					evt := &models.Event{
						Title:     title,
						ProgramID: stringRef(plan.programID),
						ModuleID:  stringRef(module.ID),
						TeacherID: stringRef(pick.teacher.ID),
						RoomID:    stringRef(pick.room.ID),
						StartAt:   start.UTC(),
						EndAt:     end.UTC(),
					}
					res, err := s.events.Commit(ctx, evt)
					if err != nil {
						if errors.Is(err, appErrors.ErrSlotConflict) {
							state.lostRaces++
							s.logger.Debug("slot claimed by another writer",
								zap.String("run_id", plan.runID),
								zap.String("module_id", module.ID),
								zap.String("teacher_id", pick.teacher.ID),
								zap.String("room_id", pick.room.ID),
								zap.Time("start", start),
							)
							if rejected == nil {
								rejected = make(map[pairKey]struct{})
							}
							rejected[pairKey{pick.teacher.ID, pick.room.ID}] = struct{}{}
							continue
						}
						// The event row may be stored even though a later step failed.
						if res.ID != "" && !res.Dedup {
							satisfied++
							state.record(module.ID, dayKey, newAssignment(res.ID, module.ID, pick, evt, weekday, block))
						}
						return satisfied, err
					}
					if res.Dedup {
						state.lostRaces++
						s.logger.Debug("block already committed by another writer",
							zap.String("run_id", plan.runID),
							zap.String("module_id", module.ID),
							zap.String("event_id", res.ID),
						)
						break
					}

					satisfied++
					state.record(module.ID, dayKey, newAssignment(res.ID, module.ID, pick, evt, weekday, block))
					s.logger.Debug("block committed",
						zap.String("run_id", plan.runID),
						zap.String("module_id", module.ID),
						zap.String("teacher_id", pick.teacher.ID),
						zap.String("room_id", pick.room.ID),
						zap.Time("start", start),
						zap.Int64("score", pick.score),
					)
					break
				}
			}
		}
	}
	return satisfied, nil
}

type slotPick struct {
	teacher models.Teacher
	room    models.Room
	score   int64
}

type pairKey struct {
	teacherID string
	roomID    string
}

func newAssignment(eventID, moduleID string, pick *slotPick, evt *models.Event, weekday, block int) dto.Assignment {
	return dto.Assignment{
		EventID:   eventID,
		ModuleID:  moduleID,
		TeacherID: pick.teacher.ID,
		RoomID:    pick.room.ID,
		Start:     evt.StartAt,
		End:       evt.EndAt,
		Weekday:   weekday,
		Block:     block,
		Score:     pick.score,
	}
}

// bestCandidate evaluates every (teacher, room) pair for one position and
// returns the highest scoring valid pair, or nil when none is valid. Ties keep
// the first pair in enumeration order. Pairs in rejected are skipped.
func (s *SchedulerService) bestCandidate(
	ctx context.Context,
	plan *runPlan,
	state *runState,
	module models.PendingModule,
	weekday, block int,
	dayKey string,
	day, start, end time.Time,
	rejected map[pairKey]struct{},
) (*slotPick, error) {
	used, err := s.loads.WeekMinutes(ctx, plan.teacherIDs, models.ISOWeekOf(start))
	if err != nil {
		return nil, err
	}
	teachers := orderTeachers(plan.teachers, used)

	roomFree := make(map[string]bool, len(plan.rooms))
	var best *slotPick
	for _, teacher := range teachers {
		if !plan.policy.Allows(teacher.ID, weekday, block, day) {
			continue
		}
		capMinutes := teacher.CapMinutes()
		if used[teacher.ID]+models.BlockMinutes > capMinutes {
			continue
		}
		free, err := s.checker.IsTeacherFree(ctx, teacher.ID, start, end)
		if err != nil {
			return nil, err
		}
		if !free {
			continue
		}
		for _, room := range plan.rooms {
			rf, checked := roomFree[room.ID]
			if !checked {
				if rf, err = s.checker.IsRoomFree(ctx, room.ID, start, end); err != nil {
					return nil, err
				}
				roomFree[room.ID] = rf
			}
			if !rf {
				continue
			}
			if _, skip := rejected[pairKey{teacher.ID, room.ID}]; skip {
				continue
			}
			score := s.scorer.Score(SlotCandidate{
				Priority:      teacher.Priority,
				CapMinutes:    capMinutes,
				UsedMinutes:   used[teacher.ID],
				PreferredRoom: plan.isPreferred(module.ID, room.ID),
				Adjacent:      state.adjacent(module.ID, teacher.ID, dayKey, block),
			})
			if score <= 0 {
				continue
			}
			if best == nil || score > best.score {
				best = &slotPick{teacher: teacher, room: room, score: score}
			}
		}
	}
	return best, nil
}

// orderTeachers returns a copy sorted by priority, minutes used this week and name.
func orderTeachers(teachers []models.Teacher, used map[string]int) []models.Teacher {
	ordered := make([]models.Teacher, len(teachers))
	copy(ordered, teachers)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if used[a.ID] != used[b.ID] {
			return used[a.ID] < used[b.ID]
		}
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.ID < b.ID
	})
	return ordered
}

func stringRef(value string) *string {
	return &value
}
