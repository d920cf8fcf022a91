package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/elective-enrollment-api/internal/middleware"
	"github.com/noah-isme/elective-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/elective-enrollment-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentClaims(c)
}

// actingStudentID resolves whose seat a request is about. Students always act
// for themselves; admins must name the student explicitly.
func actingStudentID(c *gin.Context, requested string) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleStudent:
		if requested != "" && requested != claims.UserID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "students may only act for themselves")
		}
		return claims.UserID, nil
	case models.RoleAdmin:
		if requested == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "studentId is required")
		}
		return requested, nil
	default:
		return "", appErrors.ErrForbidden
	}
}
