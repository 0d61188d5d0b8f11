package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StudentSignupRequest registers a new student account.
type StudentSignupRequest struct {
	RollNumber string `json:"roll_number" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
}

// StudentLoginRequest holds student credentials.
type StudentLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminLoginRequest holds administrator credentials.
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and the account it belongs to.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated account in responses.
type UserInfo struct {
	ID         string   `json:"id"`
	Role       UserRole `json:"role"`
	Name       string   `json:"name,omitempty"`
	Email      string   `json:"email,omitempty"`
	RollNumber string   `json:"roll_number,omitempty"`
	Username   string   `json:"username,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Name   string   `json:"name,omitempty"`
	Email  string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims belong to an administrator.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
