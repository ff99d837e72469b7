package repository

import (
	"context"

	"attendance-bridge/internal/attendance/domain"
)

// StateRepository persists the diff engine's watermarks, poll cursor and
// daily counter. Save replaces the whole document atomically: a concurrent
// Load sees either the previous or the new state, never a mix.
type StateRepository interface {
	// Load returns the persisted state, or an empty state if nothing was saved
	// yet. Unreadable content is reported as *domain.CorruptStateError.
	Load(ctx context.Context) (*domain.State, error)

	// Save replaces the persisted state.
	Save(ctx context.Context, state *domain.State) error
}

const documentVersion = 1

// stateDocument is the serialized form shared by every backend.
type stateDocument struct {
	Version    int                 `json:"version"`
	Cursor     string              `json:"cursor,omitempty"`
	Daily      domain.DailyCounter `json:"daily"`
	Watermarks []domain.Watermark  `json:"watermarks"`
}
