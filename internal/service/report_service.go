package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/elective-enrollment-api/pkg/errors"
	"github.com/noah-isme/elective-enrollment-api/pkg/export"
)

const reportTimeLayout = "2006-01-02 15:04:05.000"

type enrollmentReportReader interface {
	ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListReport(ctx context.Context, filter models.EnrollmentReportFilter) ([]models.EnrollmentReportRow, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// reportColumns lists every exportable column in output order.
var reportColumns = []struct {
	export.Column
	value func(models.EnrollmentReportRow) string
}{
	{export.Column{Key: "regd_number", Header: "Registration No", Weight: 1.5}, func(r models.EnrollmentReportRow) string { return r.RegdNumber }},
	{export.Column{Key: "student_name", Header: "Student Name", Weight: 2.5}, func(r models.EnrollmentReportRow) string { return r.StudentName }},
	{export.Column{Key: "email", Header: "Student Email", Weight: 3}, func(r models.EnrollmentReportRow) string { return r.StudentEmail }},
	{export.Column{Key: "year", Header: "Year", Weight: 1}, func(r models.EnrollmentReportRow) string { return strconv.Itoa(r.StudentYear) }},
	{export.Column{Key: "department", Header: "Department", Weight: 1.5}, func(r models.EnrollmentReportRow) string { return r.Department }},
	{export.Column{Key: "enrolled_at", Header: "Enrollment Time", Weight: 2.5}, func(r models.EnrollmentReportRow) string {
		return r.EnrolledAt.UTC().Format(reportTimeLayout)
	}},
}

// SectionReportRequest selects a faculty member's sections of one subject.
type SectionReportRequest struct {
	FacultyID   string `validate:"required"`
	SubjectName string `validate:"required"`
}

// SectionReport lists the students enrolled with a faculty member for one
// subject, oldest enrollment first.
type SectionReport struct {
	SubjectName string                       `json:"subject_name"`
	FacultyName string                       `json:"faculty_name,omitempty"`
	Rows        []models.EnrollmentReportRow `json:"rows"`
	Total       int                          `json:"total"`
}

// ReportFile is a rendered export ready to stream.
type ReportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ReportService builds enrollment listings and their exports.
type ReportService struct {
	enrollments enrollmentReportReader
	csv         csvRenderer
	pdf         pdfRenderer
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewReportService constructs the service. Nil renderers fall back to the
// pkg/export implementations.
func NewReportService(enrollments enrollmentReportReader, csv csvRenderer, pdf pdfRenderer, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{enrollments: enrollments, csv: csv, pdf: pdf, validator: validate, logger: logger, now: time.Now}
}

// ListForStudent returns the student's enrollments in the order they were made.
func (s *ReportService) ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	enrollments, err := s.enrollments.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	return enrollments, nil
}

// SectionReport returns the enrolled students of a faculty's subject.
func (s *ReportService) SectionReport(ctx context.Context, req SectionReportRequest) (*SectionReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "faculty and subject are required")
	}
	rows, err := s.enrollments.ListReport(ctx, models.EnrollmentReportFilter{FacultyID: req.FacultyID, SubjectName: req.SubjectName})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build enrollment report")
	}
	if rows == nil {
		rows = []models.EnrollmentReportRow{}
	}
	report := &SectionReport{SubjectName: req.SubjectName, Rows: rows, Total: len(rows)}
	if len(rows) > 0 {
		report.FacultyName = rows[0].FacultyName
	}
	return report, nil
}

// Export renders the section report in the requested format with the chosen
// columns. An empty column list exports every column.
func (s *ReportService) Export(ctx context.Context, req SectionReportRequest, format export.Format, columns []string) (*ReportFile, error) {
	selected, err := selectColumns(columns)
	if err != nil {
		return nil, err
	}
	report, err := s.SectionReport(ctx, req)
	if err != nil {
		return nil, err
	}
	if report.Total == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no enrollments to export")
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("Students Enrolled in %s", report.SubjectName),
		Summary: fmt.Sprintf("Total Students Enrolled: %d", report.Total),
		Subtitles: []string{
			fmt.Sprintf("Faculty: %s", report.FacultyName),
			fmt.Sprintf("Generated on: %s", s.now().UTC().Format("2006-01-02 15:04:05")),
		},
	}
	for _, idx := range selected {
		dataset.Columns = append(dataset.Columns, reportColumns[idx].Column)
	}
	for _, row := range report.Rows {
		record := make(map[string]string, len(selected))
		for _, idx := range selected {
			record[reportColumns[idx].Key] = reportColumns[idx].value(row)
		}
		dataset.Rows = append(dataset.Rows, record)
	}

	var payload []byte
	switch format {
	case export.FormatCSV:
		payload, err = s.csv.Render(dataset)
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		s.logger.Error("render enrollment report", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	return &ReportFile{
		Filename:    fmt.Sprintf("%s_Enrollments_%s.%s", slug(report.SubjectName), s.now().UTC().Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}

// selectColumns returns indexes into reportColumns, always in output order.
func selectColumns(keys []string) ([]int, error) {
	if len(keys) == 0 {
		all := make([]int, len(reportColumns))
		for i := range reportColumns {
			all[i] = i
		}
		return all, nil
	}
	wanted := make(map[string]bool, len(keys))
	for _, key := range keys {
		wanted[strings.TrimSpace(strings.ToLower(key))] = true
	}
	var selected []int
	for i, column := range reportColumns {
		if wanted[column.Key] {
			selected = append(selected, i)
			delete(wanted, column.Key)
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for key := range wanted {
			unknown = append(unknown, key)
		}
		sort.Strings(unknown)
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown report columns: %s", strings.Join(unknown, ", ")))
	}
	return selected, nil
}

func slug(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, value)
}
