package models

import (
	"math"
	"strings"
	"time"
)

// Program groups modules, teachers and rooms.
type Program struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Module is a course unit with a weekly minute requirement.
type Module struct {
	ID            string `db:"id" json:"id"`
	ProgramID     string `db:"program_id" json:"programId"`
	Name          string `db:"name" json:"name"`
	SubjectCode   string `db:"subject_code" json:"subjectCode"`
	WeeklyMinutes int    `db:"weekly_minutes" json:"weeklyMinutes"`
}

// RequiredBlocks returns ceil(WeeklyMinutes / BlockMinutes).
func (m Module) RequiredBlocks() int {
	return BlockCount(m.WeeklyMinutes)
}

// EventTitle is the title used for events generated for the module.
func (m Module) EventTitle() string {
	code := strings.TrimSpace(m.SubjectCode)
	if code == "" {
		return m.Name
	}
	return code + " " + m.Name
}

// PendingModule is a module together with the blocks already committed for it
// inside a horizon.
type PendingModule struct {
	Module
	SatisfiedBlocks int `db:"satisfied_blocks" json:"satisfiedBlocks"`
}

// Teacher is an instructor linked to a program.
type Teacher struct {
	ID            string  `db:"id" json:"id"`
	FullName      string  `db:"full_name" json:"fullName"`
	WeeklyHourCap float64 `db:"weekly_hour_cap" json:"weeklyHourCap"`
	Priority      int     `db:"priority" json:"priority"`
	Active        bool    `db:"active" json:"active"`
}

// DefaultPriority applies to program links without an explicit priority.
const DefaultPriority = 999

// CapMinutes converts the contracted weekly hours into minutes.
func (t Teacher) CapMinutes() int {
	if t.WeeklyHourCap <= 0 {
		return 0
	}
	return int(math.Round(t.WeeklyHourCap * 60))
}

// Room is a physical teaching space.
type Room struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Capacity int    `db:"capacity" json:"capacity"`
}

// PreferredRoom marks a room as preferred for a program or a single module.
type PreferredRoom struct {
	ProgramID string  `db:"program_id" json:"programId"`
	ModuleID  *string `db:"module_id" json:"moduleId,omitempty"`
	RoomID    string  `db:"room_id" json:"roomId"`
}
