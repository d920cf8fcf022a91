package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/elective-enrollment-api/internal/middleware"
	"github.com/noah-isme/elective-enrollment-api/internal/models"
)

type tokenAuthority interface {
	tokenIssuer
	ValidateToken(token string) (*models.JWTClaims, error)
}

// Routes groups the handlers mounted under the API prefix.
type Routes struct {
	Auth        tokenAuthority
	Sections    *SectionHandler
	Enrollments *EnrollmentHandler
	Reports     *ReportHandler
	Events      *EventsHandler
	Metrics     *MetricsHandler
	DevTokens   bool
}

// Register mounts every API route on group.
func (r Routes) Register(group *gin.RouterGroup) {
	auth := NewAuthHandler(r.Auth)
	authenticated := middleware.JWT(r.Auth)
	staff := middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin)
	seatHolders := middleware.RequireRoles(models.RoleStudent, models.RoleAdmin)
	admin := middleware.RequireRoles(models.RoleAdmin)

	if r.DevTokens {
		group.POST("/auth/dev-token", auth.DevToken)
	}
	group.GET("/auth/me", authenticated, auth.Me)

	sections := group.Group("/sections", authenticated)
	sections.GET("", r.Sections.List)
	sections.GET("/available", r.Sections.Available)
	sections.GET("/:id", r.Sections.Get)
	sections.POST("", admin, r.Sections.Create)
	sections.POST("/:id/enrollment", seatHolders, r.Enrollments.Enroll)
	sections.DELETE("/:id/enrollment", seatHolders, r.Enrollments.Unenroll)

	group.GET("/enrollments/me", authenticated, seatHolders, r.Enrollments.Mine)
	group.GET("/reports/sections", authenticated, staff, r.Reports.Sections)

	if r.Events != nil {
		group.GET("/events/stream", middleware.StreamJWT(r.Auth), r.Events.Stream)
	}
	if r.Metrics != nil {
		group.GET("/metrics/summary", authenticated, admin, r.Metrics.Summary)
	}
}
