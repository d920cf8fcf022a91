package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/elective-enrollment-api/pkg/errors"
	"github.com/noah-isme/elective-enrollment-api/pkg/export"
	"github.com/noah-isme/elective-enrollment-api/pkg/response"
)

type sectionReporter interface {
	SectionReport(ctx context.Context, req service.SectionReportRequest) (*service.SectionReport, error)
	Export(ctx context.Context, req service.SectionReportRequest, format export.Format, columns []string) (*service.ReportFile, error)
}

// ReportHandler serves faculty enrollment reports.
type ReportHandler struct {
	reports sectionReporter
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports sectionReporter) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Sections godoc
// @Summary Students enrolled with a faculty member for a subject
// @Tags Reports
// @Produce json,text/csv,application/pdf
// @Param subject query string true "Subject name"
// @Param facultyId query string false "Faculty (admins only)"
// @Param format query string false "json, csv or pdf"
// @Param columns query string false "Comma separated export columns"
// @Success 200 {object} response.Envelope
// @Router /reports/sections [get]
func (h *ReportHandler) Sections(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := service.SectionReportRequest{SubjectName: c.Query("subject")}
	switch claims.Role {
	case models.RoleFaculty:
		if requested := c.Query("facultyId"); requested != "" && requested != claims.UserID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "faculty may only report on their own sections"))
			return
		}
		req.FacultyID = claims.UserID
	case models.RoleAdmin:
		req.FacultyID = c.Query("facultyId")
	default:
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format == "json" {
		report, err := h.reports.SectionReport(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, report)
		return
	}

	exportFormat := export.Format(format)
	if exportFormat != export.FormatCSV && exportFormat != export.FormatPDF {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be json, csv or pdf"))
		return
	}
	file, err := h.reports.Export(c.Request.Context(), req, exportFormat, splitColumns(c.Query("columns")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

func splitColumns(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	columns := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			columns = append(columns, trimmed)
		}
	}
	return columns
}
