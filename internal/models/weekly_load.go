package models

import "time"

// TeacherWeek addresses one weekly load row.
type TeacherWeek struct {
	TeacherID string
	Week      WeekKey
}

// WeeklyLoad is the derived minutes-used aggregate for a teacher and ISO week.
type WeeklyLoad struct {
	TeacherID   string    `db:"teacher_id" json:"teacherId"`
	ISOYear     int       `db:"iso_year" json:"isoYear"`
	ISOWeek     int       `db:"iso_week" json:"isoWeek"`
	MinutesUsed int       `db:"minutes_used" json:"minutesUsed"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Key returns the ISO week of the row.
func (l WeeklyLoad) Key() WeekKey {
	return WeekKey{Year: l.ISOYear, Week: l.ISOWeek}
}
