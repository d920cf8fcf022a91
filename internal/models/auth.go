package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload issued by the portal's session layer.
type JWTClaims struct {
	UserID     string   `json:"user_id"`
	Role       UserRole `json:"role"`
	FullName   string   `json:"full_name"`
	Department string   `json:"department,omitempty"`
	jwt.RegisteredClaims
}
