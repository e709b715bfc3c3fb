package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// StaffClaims are the JWT claims carried by staff API tokens
type StaffClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// StaffContext is the authenticated caller extracted from a token
type StaffContext struct {
	UserID string
	Role   string
}
