package domain

import (
	"fmt"
	"time"
)

// DateLayout is the work-date format used in state keys and the HR API.
const DateLayout = "2006-01-02"

// Employee is one entry of the HR directory joined with its chat account.
type Employee struct {
	SubjectID    string `json:"subject_id"` // workday id, unique
	EmployeeCode string `json:"employee_code"`
	FullName     string `json:"full_name"`
	DeptCode     string `json:"dept_code,omitempty"`
	DeptName     string `json:"dept_name,omitempty"`
	RecipientID  string `json:"recipient_id"` // chat user id
}

// ScanRecord is one subject's best-known scans for a work date, as returned
// by a snapshot fetch. Either time may be nil.
type ScanRecord struct {
	SubjectID     string
	WorkDate      string
	FirstScanTime *time.Time
	LastScanTime  *time.Time
}

// WatermarkKey identifies a watermark. Keying by work date keeps one day's
// late clock-out from suppressing the next day's notifications.
type WatermarkKey struct {
	SubjectID string
	WorkDate  string
}

func (k WatermarkKey) String() string {
	return k.SubjectID + "@" + k.WorkDate
}

// Watermark is the most extreme in/out time already notified for a subject
// on a work date.
type Watermark struct {
	SubjectID   string     `json:"subject_id"`
	WorkDate    string     `json:"work_date"`
	FirstInTime *time.Time `json:"first_in_time"`
	LastOutTime *time.Time `json:"last_out_time"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (w *Watermark) Key() WatermarkKey {
	return WatermarkKey{SubjectID: w.SubjectID, WorkDate: w.WorkDate}
}

// DailyCounter is reset whenever the observed current date changes.
type DailyCounter struct {
	Date           string     `json:"date"`
	InNotified     int        `json:"in_notified"`
	OutNotified    int        `json:"out_notified"`
	ActiveSubjects int        `json:"active_subjects"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
}

// State is everything the diff engine persists between cycles.
type State struct {
	Watermarks map[WatermarkKey]*Watermark
	Cursor     time.Time
	Daily      DailyCounter
}

func NewState() *State {
	return &State{Watermarks: make(map[WatermarkKey]*Watermark)}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := &State{
		Watermarks: make(map[WatermarkKey]*Watermark, len(s.Watermarks)),
		Cursor:     s.Cursor,
		Daily:      s.Daily,
	}
	if s.Daily.LastNotifiedAt != nil {
		out.Daily.LastNotifiedAt = timePtr(*s.Daily.LastNotifiedAt)
	}
	for k, w := range s.Watermarks {
		cp := *w
		if w.FirstInTime != nil {
			cp.FirstInTime = timePtr(*w.FirstInTime)
		}
		if w.LastOutTime != nil {
			cp.LastOutTime = timePtr(*w.LastOutTime)
		}
		out.Watermarks[k] = &cp
	}
	return out
}

// Prune removes watermarks whose work date is before cutoff and returns how
// many were removed.
func (s *State) Prune(cutoff string) int {
	removed := 0
	for k := range s.Watermarks {
		if k.WorkDate < cutoff {
			delete(s.Watermarks, k)
			removed++
		}
	}
	return removed
}

type EventKind string

const (
	EventIn  EventKind = "in"
	EventOut EventKind = "out"
)

// Event is one notifiable state transition.
type Event struct {
	Kind      EventKind
	SubjectID string
	WorkDate  string
	At        time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %s", e.SubjectID, e.Kind, e.At.Format(time.DateTime))
}

// Decision is the reconciliation outcome for one subject: the events to
// dispatch and the watermark to persist once dispatch succeeds.
type Decision struct {
	SubjectID string
	Events    []Event
	Next      Watermark
}

func timePtr(t time.Time) *time.Time {
	return &t
}
