package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"attendance-bridge/internal/attendance/domain"
	"attendance-bridge/internal/attendance/repository"
	"attendance-bridge/pkg/logging"
)

// pollUsecase implements PollUsecase interface
type pollUsecase struct {
	directory  Directory
	fetcher    SnapshotFetcher
	dispatcher Dispatcher
	repo       repository.StateRepository
	log        logging.Logger
	loc        *time.Location
	retention  int
	now        func() time.Time

	mu    sync.Mutex
	state *domain.State // loaded lazily, owned by the cycle holding mu
}

type Option func(*pollUsecase)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(u *pollUsecase) { u.now = now }
}

// WithRetentionDays sets how many past work dates keep their watermarks.
func WithRetentionDays(days int) Option {
	return func(u *pollUsecase) { u.retention = days }
}

// NewPollUsecase creates a new instance of pollUsecase
func NewPollUsecase(
	directory Directory,
	fetcher SnapshotFetcher,
	dispatcher Dispatcher,
	repo repository.StateRepository,
	loc *time.Location,
	log logging.Logger,
	opts ...Option,
) PollUsecase {
	if loc == nil {
		loc = time.Local
	}
	u := &pollUsecase{
		directory:  directory,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		repo:       repo,
		log:        log.With("component", "poll"),
		loc:        loc,
		retention:  3,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *pollUsecase) RunCycle(ctx context.Context) (*CycleReport, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now().In(u.loc)
	workDate := now.Format(domain.DateLayout)
	report := &CycleReport{WorkDate: workDate, StartedAt: now}

	state, err := u.loadState(ctx)
	if err != nil {
		return report, err
	}

	employees, err := u.directory.Employees(ctx)
	if err != nil {
		return report, fmt.Errorf("load directory: %w", err)
	}
	byID, ids := indexEmployees(employees)
	if len(ids) == 0 {
		u.log.Warn(ctx, "directory has no employees with a chat account")
	}

	snapshot, err := u.fetcher.Fetch(ctx, now, ids)
	if err != nil {
		return report, fmt.Errorf("fetch snapshot: %w", err)
	}
	report.Records = len(snapshot)

	report.Pruned = u.rollover(ctx, state, now)

	decisions := Reconcile(state, snapshot, now)
	report.Decisions = len(decisions)

	var failed []domain.Event
	for _, d := range decisions {
		report.Events += len(d.Events)

		emp, ok := byID[d.SubjectID]
		if !ok || emp.RecipientID == "" {
			// Nobody to tell; record it as handled so it is not re-evaluated.
			u.log.Warn(ctx, "no recipient for subject", "subject", d.SubjectID)
			report.Skipped++
			if err := u.commit(ctx, state, d); err != nil {
				report.PersistErrors++
			}
			continue
		}

		msg := FormatNotification(emp, d, u.loc)
		if err := u.dispatcher.Send(ctx, emp.RecipientID, msg); err != nil {
			u.log.Error(ctx, "notification failed", "subject", d.SubjectID, "recipient", emp.RecipientID, "error", err)
			report.Failed++
			failed = append(failed, d.Events...)
			continue
		}

		report.Sent++
		countEvents(&state.Daily, d.Events, now)
		if err := u.commit(ctx, state, d); err != nil {
			report.PersistErrors++
		}
	}

	state.Daily.ActiveSubjects = activeSubjects(state, workDate)
	state.Cursor = NextCursor(state.Cursor, snapshot, now, failed)
	report.Cursor = state.Cursor

	if err := u.repo.Save(ctx, state); err != nil {
		return report, fmt.Errorf("save state: %w", err)
	}

	u.log.Info(ctx, "poll cycle finished",
		"work_date", workDate,
		"records", report.Records,
		"events", report.Events,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"cursor", report.Cursor.Format(time.RFC3339))
	return report, nil
}

func (u *pollUsecase) SendTestSummary(ctx context.Context, date time.Time) (*TestSummaryReport, error) {
	date = date.In(u.loc)
	workDate := date.Format(domain.DateLayout)
	report := &TestSummaryReport{Date: workDate}

	employees, err := u.directory.Employees(ctx)
	if err != nil {
		return report, fmt.Errorf("load directory: %w", err)
	}
	byID, ids := indexEmployees(employees)

	snapshot, err := u.fetcher.Fetch(ctx, date, ids)
	if err != nil {
		return report, fmt.Errorf("fetch snapshot: %w", err)
	}

	for _, rec := range mergeRecords(snapshot, workDate) {
		emp, ok := byID[rec.SubjectID]
		if !ok || emp.RecipientID == "" {
			report.Skipped++
			continue
		}
		if err := u.dispatcher.Send(ctx, emp.RecipientID, FormatTestSummary(emp, rec, u.loc)); err != nil {
			u.log.Error(ctx, "test summary failed", "subject", rec.SubjectID, "error", err)
			report.Failed++
			continue
		}
		report.Sent++
	}

	u.log.Info(ctx, "test summaries sent", "date", workDate, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

func (u *pollUsecase) State(ctx context.Context) (*domain.State, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	state, err := u.loadState(ctx)
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// loadState returns the in-memory state, reading it from the repository on
// first use. Corrupt state is replaced by an empty one; any other load error
// skips the cycle.
func (u *pollUsecase) loadState(ctx context.Context) (*domain.State, error) {
	if u.state != nil {
		return u.state, nil
	}

	state, err := u.repo.Load(ctx)
	if err != nil {
		var corrupt *domain.CorruptStateError
		if !errors.As(err, &corrupt) {
			return nil, fmt.Errorf("load state: %w", err)
		}
		u.log.Error(ctx, "persisted state is corrupt, starting from empty state", "error", err)
		state = domain.NewState()
	}
	u.state = state
	return state, nil
}

// rollover resets the daily counter when the date changed and prunes
// watermarks older than the retention window.
func (u *pollUsecase) rollover(ctx context.Context, state *domain.State, now time.Time) int {
	today := now.Format(domain.DateLayout)
	if state.Daily.Date == today {
		return 0
	}

	if state.Daily.Date != "" {
		u.log.Info(ctx, "daily rollover",
			"previous", state.Daily.Date,
			"in_notified", state.Daily.InNotified,
			"out_notified", state.Daily.OutNotified)
	}
	state.Daily = domain.DailyCounter{Date: today}

	cutoff := now.AddDate(0, 0, -u.retention).Format(domain.DateLayout)
	pruned := state.Prune(cutoff)
	if pruned > 0 {
		u.log.Debug(ctx, "pruned watermarks", "before", cutoff, "count", pruned)
	}
	return pruned
}

// commit applies a delivered decision and persists it.
func (u *pollUsecase) commit(ctx context.Context, state *domain.State, d domain.Decision) error {
	next := d.Next
	state.Watermarks[next.Key()] = &next
	if err := u.repo.Save(ctx, state); err != nil {
		u.log.Error(ctx, "failed to persist watermark", "subject", d.SubjectID, "error", err)
		return err
	}
	return nil
}

func indexEmployees(employees []domain.Employee) (map[string]domain.Employee, []string) {
	byID := make(map[string]domain.Employee, len(employees))
	ids := make([]string, 0, len(employees))
	for _, e := range employees {
		if e.SubjectID == "" {
			continue
		}
		if _, dup := byID[e.SubjectID]; !dup {
			ids = append(ids, e.SubjectID)
		}
		byID[e.SubjectID] = e
	}
	return byID, ids
}

func countEvents(daily *domain.DailyCounter, events []domain.Event, now time.Time) {
	for _, ev := range events {
		switch ev.Kind {
		case domain.EventIn:
			daily.InNotified++
		case domain.EventOut:
			daily.OutNotified++
		}
	}
	t := now
	daily.LastNotifiedAt = &t
}

func activeSubjects(state *domain.State, workDate string) int {
	n := 0
	for key := range state.Watermarks {
		if key.WorkDate == workDate {
			n++
		}
	}
	return n
}
