package usecase

import (
	"context"
	"time"

	"attendance-bridge/internal/attendance/domain"
)

// Directory lists the employees that can receive notifications.
type Directory interface {
	Employees(ctx context.Context) ([]domain.Employee, error)
}

// SnapshotFetcher returns the current best-known scans of the given subjects
// on date. It is a full read, not a delta.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, date time.Time, subjectIDs []string) ([]domain.ScanRecord, error)
}

// Dispatcher delivers a text message to a chat user.
type Dispatcher interface {
	Send(ctx context.Context, toUser, content string) error
}

// PollUsecase defines the interface for the attendance polling loop
type PollUsecase interface {
	// RunCycle runs one fetch, reconcile, dispatch and persist pass. Cycles
	// never overlap.
	RunCycle(ctx context.Context) (*CycleReport, error)

	// SendTestSummary sends every employee with a record on date a summary of
	// that day's scans. State is neither read nor written.
	SendTestSummary(ctx context.Context, date time.Time) (*TestSummaryReport, error)

	// State returns a copy of the engine's current state.
	State(ctx context.Context) (*domain.State, error)
}

// CycleReport summarizes one RunCycle call.
type CycleReport struct {
	WorkDate      string    `json:"work_date"`
	StartedAt     time.Time `json:"started_at"`
	Records       int       `json:"records"`
	Decisions     int       `json:"decisions"`
	Events        int       `json:"events"`
	Sent          int       `json:"sent"`
	Failed        int       `json:"failed"`
	Skipped       int       `json:"skipped"`
	PersistErrors int       `json:"persist_errors"`
	Pruned        int       `json:"pruned"`
	Cursor        time.Time `json:"cursor"`
}

// TestSummaryReport summarizes one SendTestSummary call.
type TestSummaryReport struct {
	Date    string `json:"date"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}
