package dto

import "time"

// UpsertEventRequest creates or updates an event through the event store.
type UpsertEventRequest struct {
	ID        string    `json:"id" validate:"omitempty,max=64"`
	Title     string    `json:"title" validate:"required,max=255"`
	ProgramID *string   `json:"programId" validate:"omitempty,max=64"`
	ModuleID  *string   `json:"moduleId" validate:"omitempty,max=64"`
	TeacherID *string   `json:"teacherId" validate:"omitempty,max=64"`
	RoomID    *string   `json:"roomId" validate:"omitempty,max=64"`
	Start     time.Time `json:"start" validate:"required"`
	End       time.Time `json:"end" validate:"required,gtfield=Start"`
}

// EventQuery filters event listings.
type EventQuery struct {
	TeacherID string `form:"teacherId"`
	RoomID    string `form:"roomId"`
	ProgramID string `form:"programId"`
	ModuleID  string `form:"moduleId"`
	From      string `form:"from"`
	To        string `form:"to"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
	Format    string `form:"format"`
}

// DeleteEventResponse echoes the deleted event identity.
type DeleteEventResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
