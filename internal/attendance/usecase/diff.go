package usecase

import (
	"time"

	"attendance-bridge/internal/attendance/domain"
)

// cursorHoldback is the smallest step the database backend can store; a
// smaller one is rounded away on save.
const cursorHoldback = time.Microsecond

// Reconcile compares a snapshot with the persisted watermarks and returns one
// decision per subject that has something new to report. It does not modify
// state: the caller applies Decision.Next only after the subject's
// notification was delivered.
//
// Only records for the work date of now (in now's location) are considered.
// Duplicate records for one subject are merged, keeping the earliest in and
// the latest out.
func Reconcile(state *domain.State, snapshot []domain.ScanRecord, now time.Time) []domain.Decision {
	workDate := now.Format(domain.DateLayout)
	records := mergeRecords(snapshot, workDate)
	cursor := state.Cursor

	var decisions []domain.Decision
	for _, rec := range records {
		key := domain.WatermarkKey{SubjectID: rec.SubjectID, WorkDate: workDate}

		next := domain.Watermark{SubjectID: rec.SubjectID, WorkDate: workDate}
		if prior, ok := state.Watermarks[key]; ok {
			next = *prior
		}

		var events []domain.Event
		if in := rec.FirstScanTime; in != nil {
			if next.FirstInTime == nil || in.Before(*next.FirstInTime) || newer(*in, *next.FirstInTime, cursor) {
				events = append(events, domain.Event{Kind: domain.EventIn, SubjectID: rec.SubjectID, WorkDate: workDate, At: *in})
				t := *in
				next.FirstInTime = &t
			}
		}
		if out := rec.LastScanTime; out != nil {
			if next.LastOutTime == nil || out.After(*next.LastOutTime) || newer(*out, *next.LastOutTime, cursor) {
				events = append(events, domain.Event{Kind: domain.EventOut, SubjectID: rec.SubjectID, WorkDate: workDate, At: *out})
				t := *out
				next.LastOutTime = &t
			}
		}
		if len(events) == 0 {
			continue
		}

		next.UpdatedAt = now
		decisions = append(decisions, domain.Decision{
			SubjectID: rec.SubjectID,
			Events:    events,
			Next:      next,
		})
	}
	return decisions
}

// NextCursor returns the poll cursor after a cycle: the latest scan time
// observed for the work date of now, or now itself if nothing was observed.
// The result is never earlier than prev.
//
// failed lists events whose delivery did not succeed. The cursor is held
// cursorHoldback below the earliest of them so an event that qualified only by
// being newer than the cursor qualifies again on the next cycle.
func NextCursor(prev time.Time, snapshot []domain.ScanRecord, now time.Time, failed []domain.Event) time.Time {
	workDate := now.Format(domain.DateLayout)

	var candidate time.Time
	observed := false
	for _, rec := range snapshot {
		if rec.WorkDate != workDate {
			continue
		}
		for _, t := range []*time.Time{rec.FirstScanTime, rec.LastScanTime} {
			if t != nil && (!observed || t.After(candidate)) {
				candidate = *t
				observed = true
			}
		}
	}
	if !observed {
		candidate = now
	}

	for _, ev := range failed {
		if limit := ev.At.Add(-cursorHoldback); limit.Before(candidate) {
			candidate = limit
		}
	}

	if candidate.After(prev) {
		return candidate
	}
	return prev
}

// mergeRecords keeps one record per subject for workDate, in order of first
// appearance.
func mergeRecords(snapshot []domain.ScanRecord, workDate string) []domain.ScanRecord {
	index := make(map[string]int, len(snapshot))
	var merged []domain.ScanRecord

	for _, rec := range snapshot {
		if rec.SubjectID == "" || rec.WorkDate != workDate {
			continue
		}
		i, ok := index[rec.SubjectID]
		if !ok {
			index[rec.SubjectID] = len(merged)
			merged = append(merged, rec)
			continue
		}
		cur := &merged[i]
		if rec.FirstScanTime != nil && (cur.FirstScanTime == nil || rec.FirstScanTime.Before(*cur.FirstScanTime)) {
			cur.FirstScanTime = rec.FirstScanTime
		}
		if rec.LastScanTime != nil && (cur.LastScanTime == nil || rec.LastScanTime.After(*cur.LastScanTime)) {
			cur.LastScanTime = rec.LastScanTime
		}
	}
	return merged
}

// newer reports whether t is past the cursor and differs from the value
// already notified. A held-back cursor can sit below times that were
// delivered; those are not new.
func newer(t, notified, cursor time.Time) bool {
	return after(t, cursor) && !t.Equal(notified)
}

// after reports t > cursor. A zero cursor means no cycle has completed, which
// the "no prior watermark" rule already covers.
func after(t, cursor time.Time) bool {
	return !cursor.IsZero() && t.After(cursor)
}
