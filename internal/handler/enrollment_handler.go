package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/internal/service"
	"github.com/noah-isme/elective-enrollment-api/pkg/response"
)

type enrollmentAllocator interface {
	Enroll(ctx context.Context, req service.AllocationRequest) (*models.AllocationResult, error)
	Unenroll(ctx context.Context, req service.AllocationRequest) (*models.AllocationResult, error)
}

type studentEnrollmentLister interface {
	ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

// EnrollmentHandler exposes seat allocation endpoints.
type EnrollmentHandler struct {
	allocator enrollmentAllocator
	ledger    studentEnrollmentLister
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(allocator enrollmentAllocator, ledger studentEnrollmentLister) *EnrollmentHandler {
	return &EnrollmentHandler{allocator: allocator, ledger: ledger}
}

// Enroll godoc
// @Summary Take a seat in a section
// @Tags Enrollments
// @Produce json
// @Param id path string true "Section ID"
// @Param studentId query string false "Student (admins only)"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /sections/{id}/enrollment [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	studentID, err := actingStudentID(c, c.Query("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.allocator.Enroll(c.Request.Context(), service.AllocationRequest{StudentID: studentID, SectionID: c.Param("id")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Unenroll godoc
// @Summary Give up a seat in a section
// @Tags Enrollments
// @Produce json
// @Param id path string true "Section ID"
// @Param studentId query string false "Student (admins only)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sections/{id}/enrollment [delete]
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	studentID, err := actingStudentID(c, c.Query("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.allocator.Unenroll(c.Request.Context(), service.AllocationRequest{StudentID: studentID, SectionID: c.Param("id")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Mine godoc
// @Summary List the caller's enrollments
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/me [get]
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	studentID, err := actingStudentID(c, c.Query("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	enrollments, err := h.ledger.ListForStudent(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, map[string]interface{}{"total": len(enrollments)})
}
