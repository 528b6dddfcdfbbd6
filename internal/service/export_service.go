package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/block-scheduler-api/internal/dto"
	"github.com/noah-isme/block-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/block-scheduler-api/pkg/errors"
	"github.com/noah-isme/block-scheduler-api/pkg/export"
)

const (
	exportPageSize = 500
	exportMaxRows  = 5000
)

var timetableHeaders = []string{"Date", "Weekday", "Start", "End", "Title", "Program", "Module", "Teacher", "Room"}

type eventLister interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult is a rendered timetable ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Rows        int
	Payload     []byte
}

// ExportService renders filtered events as a CSV or PDF timetable.
type ExportService struct {
	events eventLister
	csv    csvRenderer
	pdf    pdfRenderer
	clock  Clock
	logger *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers use the defaults.
func NewExportService(events eventLister, clock Clock, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = &SystemClock{}
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter(map[string]float64{"Date": 22, "Weekday": 14, "Start": 14, "End": 14, "Title": 70})
	}
	return &ExportService{events: events, csv: csv, pdf: pdf, clock: clock, logger: logger}
}

// Timetable renders every event matching query, ordered by start.
func (s *ExportService) Timetable(ctx context.Context, query dto.EventQuery) (*ExportResult, error) {
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	filter, err := eventFilterFromQuery(query)
	if err != nil {
		return nil, err
	}
	if filter.From == nil || filter.To == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from and to are required for exports")
	}

	events, err := s.collect(ctx, filter)
	if err != nil {
		return nil, err
	}
	dataset := s.dataset(filter, events)

	var payload []byte
	switch format {
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}
	s.logger.Debug("timetable exported", zap.String("format", string(format)), zap.Int("rows", len(events)))
	return &ExportResult{
		Filename:    s.filename(filter, format),
		ContentType: format.ContentType(),
		Rows:        len(events),
		Payload:     payload,
	}, nil
}

func (s *ExportService) collect(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	filter.PageSize = exportPageSize
	var out []models.Event
	for page := 1; ; page++ {
		filter.Page = page
		batch, total, err := s.events.List(ctx, filter)
		if err != nil {
			return nil, storageFailure(err, "failed to list events for export")
		}
		if total > exportMaxRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("export is limited to %d events, narrow the range", exportMaxRows))
		}
		out = append(out, batch...)
		if len(batch) == 0 || len(out) >= total {
			return out, nil
		}
	}
}

func (s *ExportService) dataset(filter models.EventFilter, events []models.Event) export.Dataset {
	loc := s.clock.Location()
	rows := make([][]string, 0, len(events))
	for _, evt := range events {
		start, end := evt.StartAt.In(loc), evt.EndAt.In(loc)
		rows = append(rows, []string{
			start.Format("2006-01-02"),
			start.Weekday().String()[:3],
			start.Format("15:04"),
			end.Format("15:04"),
			evt.Title,
			deref(evt.ProgramID),
			deref(evt.ModuleID),
			deref(evt.TeacherID),
			deref(evt.RoomID),
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Timetable %s to %s", filter.From.In(loc).Format("2006-01-02"), filter.To.In(loc).Format("2006-01-02")),
		Headers: timetableHeaders,
		Rows:    rows,
	}
}

func (s *ExportService) filename(filter models.EventFilter, format export.Format) string {
	scope := "all"
	switch {
	case filter.TeacherID != "":
		scope = "teacher_" + sanitizeFilename(filter.TeacherID)
	case filter.RoomID != "":
		scope = "room_" + sanitizeFilename(filter.RoomID)
	case filter.ProgramID != "":
		scope = "program_" + sanitizeFilename(filter.ProgramID)
	}
	return fmt.Sprintf("timetable_%s_%s.%s", scope, filter.From.UTC().Format("20060102"), format)
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 64 {
		return result[:64]
	}
	return result
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
