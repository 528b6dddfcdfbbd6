package models

import "time"

// Event is a concrete scheduled teaching block.
type Event struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	ProgramID *string   `db:"program_id" json:"programId,omitempty"`
	ModuleID  *string   `db:"module_id" json:"moduleId,omitempty"`
	TeacherID *string   `db:"teacher_id" json:"teacherId,omitempty"`
	RoomID    *string   `db:"room_id" json:"roomId,omitempty"`
	StartAt   time.Time `db:"start_at" json:"start"`
	EndAt     time.Time `db:"end_at" json:"end"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Minutes returns the event duration in whole minutes.
func (e Event) Minutes() int {
	return int(e.EndAt.Sub(e.StartAt) / time.Minute)
}

// Teacher returns the teacher id or "" when unassigned.
func (e Event) Teacher() string {
	if e.TeacherID == nil {
		return ""
	}
	return *e.TeacherID
}

// Overlaps reports whether [StartAt, EndAt) intersects [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.StartAt.Before(end) && e.EndAt.After(start)
}

// EventFilter narrows event listings. Zero values are ignored.
type EventFilter struct {
	TeacherID string
	RoomID    string
	ProgramID string
	ModuleID  string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// UpsertResult reports the id written or matched by an upsert.
type UpsertResult struct {
	ID    string `json:"id"`
	Dedup bool   `json:"dedup"`
}

// EventChange carries the rows before and after a mutation. Previous is nil
// for inserts and Current is nil for deletes.
type EventChange struct {
	Previous *Event
	Current  *Event
}

// WeekKeys returns the distinct (teacher, ISO week) pairs touched by the change.
func (c EventChange) WeekKeys() []TeacherWeek {
	seen := make(map[TeacherWeek]struct{}, 2)
	keys := make([]TeacherWeek, 0, 2)
	for _, evt := range []*Event{c.Previous, c.Current} {
		if evt == nil || evt.TeacherID == nil || *evt.TeacherID == "" {
			continue
		}
		key := TeacherWeek{TeacherID: *evt.TeacherID, Week: ISOWeekOf(evt.StartAt)}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
