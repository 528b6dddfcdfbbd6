package models

import (
	"fmt"
	"strings"
	"time"
)

// BlockMinutes is the width of one teaching block.
const BlockMinutes = 35

// BlockDuration is BlockMinutes as a time.Duration.
const BlockDuration = BlockMinutes * time.Minute

// First block starts at 08:30 local time.
const (
	firstBlockHour   = 8
	firstBlockMinute = 30
)

// Shift names a contiguous range of block indices.
type Shift string

const (
	ShiftDay     Shift = "day"
	ShiftEvening Shift = "evening"
)

// BlockRange is an inclusive block index range.
type BlockRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether index falls inside the range.
func (r BlockRange) Contains(index int) bool {
	return index >= r.From && index <= r.To
}

// Len returns the number of blocks in the range.
func (r BlockRange) Len() int {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

var shiftRanges = map[Shift]BlockRange{
	ShiftDay:     {From: 1, To: 11},
	ShiftEvening: {From: 18, To: 22},
}

// ParseShift normalises a shift name. Empty input yields ShiftDay.
func ParseShift(raw string) (Shift, error) {
	value := Shift(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return ShiftDay, nil
	}
	if _, ok := shiftRanges[value]; !ok {
		return "", fmt.Errorf("unknown shift %q", raw)
	}
	return value, nil
}

// Range returns the block indices covered by the shift.
func (s Shift) Range() BlockRange {
	if r, ok := shiftRanges[s]; ok {
		return r
	}
	return shiftRanges[ShiftDay]
}

// BlockStart returns the start instant of block index on the calendar day of
// date, interpreted in loc.
func BlockStart(date time.Time, index int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := date.In(loc)
	base := time.Date(local.Year(), local.Month(), local.Day(), firstBlockHour, firstBlockMinute, 0, 0, loc)
	return base.Add(time.Duration(index-1) * BlockDuration)
}

// BlockCount converts minutes into whole blocks, rounding up.
func BlockCount(minutes int) int {
	if minutes <= 0 {
		return 0
	}
	return (minutes + BlockMinutes - 1) / BlockMinutes
}

// WeekKey identifies an ISO-8601 week.
type WeekKey struct {
	Year int `json:"isoYear"`
	Week int `json:"isoWeek"`
}

// ISOWeekOf returns the ISO week containing t, evaluated on its UTC date.
func ISOWeekOf(t time.Time) WeekKey {
	year, week := t.UTC().ISOWeek()
	return WeekKey{Year: year, Week: week}
}

// Start returns Monday 00:00 UTC of the week.
func (k WeekKey) Start() time.Time {
	jan4 := time.Date(k.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset)
	return monday.AddDate(0, 0, (k.Week-1)*7)
}

// Bounds returns the half-open UTC interval [start, end) of the week.
func (k WeekKey) Bounds() (time.Time, time.Time) {
	start := k.Start()
	return start, start.AddDate(0, 0, 7)
}

func (k WeekKey) String() string {
	return fmt.Sprintf("%04d-W%02d", k.Year, k.Week)
}

// MondayOf returns 00:00 on the Monday of the week containing t, in loc.
func MondayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -offset)
}

// IsoWeekday maps time.Weekday onto 1=Monday..7=Sunday.
func IsoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
