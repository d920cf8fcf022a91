package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/elective-enrollment-api/pkg/errors"
	"github.com/noah-isme/elective-enrollment-api/pkg/response"
)

type tokenIssuer interface {
	IssueToken(userID string, role models.UserRole, fullName, department string) (string, time.Time, error)
}

// DevTokenRequest describes the identity a development token is minted for.
type DevTokenRequest struct {
	UserID     string          `json:"user_id" binding:"required"`
	Role       models.UserRole `json:"role" binding:"required"`
	FullName   string          `json:"full_name"`
	Department string          `json:"department"`
}

// AuthHandler exposes the caller's identity and, outside production, a token
// minting endpoint for local testing.
type AuthHandler struct {
	issuer tokenIssuer
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(issuer tokenIssuer) *AuthHandler {
	return &AuthHandler{issuer: issuer}
}

// Me godoc
// @Summary Current identity
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"user_id":    claims.UserID,
		"role":       claims.Role,
		"full_name":  claims.FullName,
		"department": claims.Department,
	})
}

// DevToken godoc
// @Summary Mint a development access token
// @Description Only registered outside production.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body DevTokenRequest true "Identity"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/dev-token [post]
func (h *AuthHandler) DevToken(c *gin.Context) {
	var req DevTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid token payload"))
		return
	}
	if !req.Role.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown role"))
		return
	}

	token, expiresAt, err := h.issuer.IssueToken(req.UserID, req.Role, req.FullName, req.Department)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   expiresAt,
	})
}
