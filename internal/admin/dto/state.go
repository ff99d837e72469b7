package dto

import (
	"sort"
	"time"

	"attendance-bridge/internal/attendance/domain"
)

type WatermarkResponse struct {
	SubjectID   string     `json:"subject_id"`
	WorkDate    string     `json:"work_date"`
	FirstInTime *time.Time `json:"first_in_time"`
	LastOutTime *time.Time `json:"last_out_time"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type StateResponse struct {
	Cursor     *time.Time          `json:"cursor"`
	Daily      domain.DailyCounter `json:"daily"`
	Watermarks []WatermarkResponse `json:"watermarks"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewStateResponse orders watermarks by work date then subject, newest date
// first.
func NewStateResponse(state *domain.State) *StateResponse {
	resp := &StateResponse{
		Daily:      state.Daily,
		Watermarks: make([]WatermarkResponse, 0, len(state.Watermarks)),
	}
	if !state.Cursor.IsZero() {
		cursor := state.Cursor
		resp.Cursor = &cursor
	}
	for _, w := range state.Watermarks {
		resp.Watermarks = append(resp.Watermarks, WatermarkResponse{
			SubjectID:   w.SubjectID,
			WorkDate:    w.WorkDate,
			FirstInTime: w.FirstInTime,
			LastOutTime: w.LastOutTime,
			UpdatedAt:   w.UpdatedAt,
		})
	}
	sort.Slice(resp.Watermarks, func(i, j int) bool {
		a, b := resp.Watermarks[i], resp.Watermarks[j]
		if a.WorkDate != b.WorkDate {
			return a.WorkDate > b.WorkDate
		}
		return a.SubjectID < b.SubjectID
	})
	return resp
}
