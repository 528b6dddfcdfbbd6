package dto

// TeacherLoadQuery bounds the weekly load report.
type TeacherLoadQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// WeeklyLoadItem is one row of the weekly load report.
type WeeklyLoadItem struct {
	ISOYear     int     `json:"isoYear"`
	ISOWeek     int     `json:"isoWeek"`
	WeekStart   string  `json:"weekStart"`
	MinutesUsed int     `json:"minutesUsed"`
	Blocks      int     `json:"blocks"`
	CapMinutes  int     `json:"capMinutes"`
	Utilization float64 `json:"utilization"`
}

// TeacherLoadReport summarises weekly loads for one teacher.
type TeacherLoadReport struct {
	TeacherID    string           `json:"teacherId"`
	From         string           `json:"from"`
	To           string           `json:"to"`
	TotalMinutes int              `json:"totalMinutes"`
	Weeks        []WeeklyLoadItem `json:"weeks"`
}
