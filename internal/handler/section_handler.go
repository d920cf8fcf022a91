package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/elective-enrollment-api/pkg/errors"
	"github.com/noah-isme/elective-enrollment-api/pkg/response"
)

type sectionRegistry interface {
	Get(ctx context.Context, id string) (*models.Section, error)
	List(ctx context.Context, filter models.SectionFilter) ([]models.Section, error)
	ListAvailable(ctx context.Context, department string, year int, studentID string) ([]models.Section, error)
	Create(ctx context.Context, req service.CreateSectionRequest) (*models.Section, error)
}

// SectionHandler exposes the section registry.
type SectionHandler struct {
	sections sectionRegistry
}

// NewSectionHandler constructs SectionHandler.
func NewSectionHandler(sections sectionRegistry) *SectionHandler {
	return &SectionHandler{sections: sections}
}

// List godoc
// @Summary List sections
// @Tags Sections
// @Produce json
// @Param department query string false "Department"
// @Param year query int false "Year"
// @Param facultyId query string false "Faculty"
// @Param subject query string false "Subject name"
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *SectionHandler) List(c *gin.Context) {
	filter := models.SectionFilter{
		Department: c.Query("department"),
		FacultyID:  c.Query("facultyId"),
		Subject:    c.Query("subject"),
	}
	if raw := c.Query("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be a number"))
			return
		}
		filter.Year = year
	}
	sections, err := h.sections.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, map[string]interface{}{"total": len(sections)})
}

// Available godoc
// @Summary List sections with free seats
// @Description Students see their own department by default and never see subjects they already hold.
// @Tags Sections
// @Produce json
// @Param department query string false "Department"
// @Param year query int true "Year"
// @Success 200 {object} response.Envelope
// @Router /sections/available [get]
func (h *SectionHandler) Available(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be a number"))
		return
	}
	department := c.Query("department")
	studentID := ""
	if claims.Role == models.RoleStudent {
		studentID = claims.UserID
		if department == "" {
			department = claims.Department
		}
	}
	sections, err := h.sections.ListAvailable(c.Request.Context(), department, year, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, map[string]interface{}{"total": len(sections)})
}

// Get godoc
// @Summary Get section
// @Tags Sections
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sections/{id} [get]
func (h *SectionHandler) Get(c *gin.Context) {
	section, err := h.sections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section)
}

// Create godoc
// @Summary Assign a faculty member to a subject
// @Tags Sections
// @Accept json
// @Produce json
// @Param payload body service.CreateSectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sections [post]
func (h *SectionHandler) Create(c *gin.Context) {
	var req service.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	section, err := h.sections.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}
