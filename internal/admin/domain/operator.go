package domain

import (
	"errors"
	"time"
)

// Operator is the authenticated caller of the admin API.
type Operator struct {
	Name      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingSecret  = errors.New("admin JWT secret is not configured")
	ErrMissingSubject = errors.New("operator name is required")
)
