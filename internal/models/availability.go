package models

import "time"

// RuleEffect decides whether an availability rule permits or forbids a slot.
type RuleEffect string

const (
	RuleAllow RuleEffect = "ALLOW"
	RuleDeny  RuleEffect = "DENY"
)

// AvailabilityRule is an explicit allow or deny window for a teacher.
type AvailabilityRule struct {
	ID         string     `db:"id" json:"id"`
	TeacherID  string     `db:"teacher_id" json:"teacherId"`
	Weekday    int        `db:"weekday" json:"weekday"`
	BlockFrom  int        `db:"block_from" json:"blockFrom"`
	BlockTo    int        `db:"block_to" json:"blockTo"`
	Effect     RuleEffect `db:"effect" json:"effect"`
	ValidFrom  *time.Time `db:"valid_from" json:"validFrom,omitempty"`
	ValidUntil *time.Time `db:"valid_until" json:"validUntil,omitempty"`
}

// ActiveOn reports whether the rule's validity window includes the calendar
// date of day. Bounds are inclusive and compared by date only.
func (r AvailabilityRule) ActiveOn(day time.Time) bool {
	date := dateOnly(day)
	if r.ValidFrom != nil && date.Before(dateOnly(*r.ValidFrom)) {
		return false
	}
	if r.ValidUntil != nil && date.After(dateOnly(*r.ValidUntil)) {
		return false
	}
	return true
}

// Matches reports whether the rule covers weekday and block index.
func (r AvailabilityRule) Matches(weekday, block int) bool {
	return r.Weekday == weekday && block >= r.BlockFrom && block <= r.BlockTo
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
