package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RunSchedulerRequest asks the scheduler to place pending blocks for a program.
type RunSchedulerRequest struct {
	ProgramID string     `json:"programId" validate:"required,max=64"`
	NumWeeks  int        `json:"numWeeks" validate:"omitempty,min=1"`
	StartDate *time.Time `json:"startDate,omitempty"`
	Shift     string     `json:"shift" validate:"omitempty,oneof=day evening"`

	// StartDay holds a date-only startDate. It is resolved to midnight in
	// the scheduler's timezone, not UTC.
	StartDay string `json:"-"`
}

// DateLayout is the accepted date-only form of startDate.
const DateLayout = "2006-01-02"

// UnmarshalJSON accepts startDate as an RFC3339 timestamp or a YYYY-MM-DD
// date. Date-only values are kept in StartDay.
func (r *RunSchedulerRequest) UnmarshalJSON(data []byte) error {
	type plain RunSchedulerRequest
	aux := struct {
		*plain
		StartDate *string `json:"startDate"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.StartDate = nil
	r.StartDay = ""
	if aux.StartDate == nil || strings.TrimSpace(*aux.StartDate) == "" {
		return nil
	}
	raw := strings.TrimSpace(*aux.StartDate)
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		r.StartDate = &ts
		return nil
	}
	if _, err := time.Parse(DateLayout, raw); err == nil {
		r.StartDay = raw
		return nil
	}
	return fmt.Errorf("startDate %q is neither RFC3339 nor YYYY-MM-DD", raw)
}

// Assignment describes one committed block.
type Assignment struct {
	EventID   string    `json:"eventId"`
	ModuleID  string    `json:"moduleId"`
	TeacherID string    `json:"teacherId"`
	RoomID    string    `json:"roomId"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Weekday   int       `json:"weekday"`
	Block     int       `json:"block"`
	Score     int64     `json:"score"`
}

// UnmetModule records a module whose requirement could not be met.
type UnmetModule struct {
	ModuleID  string `json:"moduleId"`
	Required  int    `json:"required"`
	Satisfied int    `json:"satisfied"`
}

// RunSummary counts the inputs a run considered.
type RunSummary struct {
	ModulesConsidered int `json:"modulesConsidered"`
	Teachers          int `json:"teachers"`
	Rooms             int `json:"rooms"`
	LostRaces         int `json:"lostRaces"`
}

// RunSchedulerResponse is the structured outcome of a run.
type RunSchedulerResponse struct {
	RunID         string        `json:"runId"`
	ProgramID     string        `json:"programId"`
	Shift         string        `json:"shift"`
	HorizonStart  time.Time     `json:"horizonStart"`
	HorizonEnd    time.Time     `json:"horizonEnd"`
	AssignedCount int           `json:"assignedCount"`
	Assignments   []Assignment  `json:"assignments"`
	UnmetModules  []UnmetModule `json:"unmetModules"`
	Partial       bool          `json:"partial"`
	Summary       RunSummary    `json:"summary"`
	StartedAt     time.Time     `json:"startedAt"`
	FinishedAt    time.Time     `json:"finishedAt"`
}

// RunStatus tracks an asynchronous run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "QUEUED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
)

// RunAccepted acknowledges an asynchronous run request.
type RunAccepted struct {
	RunID  string    `json:"runId"`
	Status RunStatus `json:"status"`
}

// RunRecord is the stored view of a run for status polling.
type RunRecord struct {
	RunID       string                `json:"runId"`
	Status      RunStatus             `json:"status"`
	Request     RunSchedulerRequest   `json:"request"`
	Result      *RunSchedulerResponse `json:"result,omitempty"`
	Error       string                `json:"error,omitempty"`
	RequestedAt time.Time             `json:"requestedAt"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}
