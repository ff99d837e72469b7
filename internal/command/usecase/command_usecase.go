package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"attendance-bridge/internal/attendance/domain"
	attendance "attendance-bridge/internal/attendance/usecase"
)

const (
	ReplyPong         = "pong"
	ReplyUnknown      = "Command not recognized. Send 'help' to see what I can do."
	ReplyNotLinked    = "Your chat account is not linked to an employee record."
	ReplyNoScansToday = "No scans recorded today."
)

const helpText = `Available commands:
ping - check that the bot is alive
1 or today - show your scans for today
help - show this message`

// CommandUsecase answers chat commands sent to the agent.
type CommandUsecase struct {
	directory attendance.Directory
	fetcher   attendance.SnapshotFetcher
	loc       *time.Location
	now       func() time.Time
}

func NewCommandUsecase(directory attendance.Directory, fetcher attendance.SnapshotFetcher, loc *time.Location) *CommandUsecase {
	if loc == nil {
		loc = time.Local
	}
	return &CommandUsecase{
		directory: directory,
		fetcher:   fetcher,
		loc:       loc,
		now:       time.Now,
	}
}

// Handle returns the reply for content sent by fromUser.
func (u *CommandUsecase) Handle(ctx context.Context, fromUser, content string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(content)) {
	case "ping":
		return ReplyPong, nil
	case "help", "?":
		return helpText, nil
	case "1", "today", "status":
		return u.todayScans(ctx, fromUser)
	default:
		return ReplyUnknown, nil
	}
}

func (u *CommandUsecase) todayScans(ctx context.Context, fromUser string) (string, error) {
	employees, err := u.directory.Employees(ctx)
	if err != nil {
		return "", fmt.Errorf("load directory: %w", err)
	}

	var emp *domain.Employee
	for i := range employees {
		if employees[i].RecipientID == fromUser {
			emp = &employees[i]
			break
		}
	}
	if emp == nil {
		return ReplyNotLinked, nil
	}

	now := u.now().In(u.loc)
	records, err := u.fetcher.Fetch(ctx, now, []string{emp.SubjectID})
	if err != nil {
		return "", fmt.Errorf("fetch scans: %w", err)
	}

	workDate := now.Format(domain.DateLayout)
	var in, out *time.Time
	for _, rec := range records {
		if rec.SubjectID != emp.SubjectID || rec.WorkDate != workDate {
			continue
		}
		if rec.FirstScanTime != nil && (in == nil || rec.FirstScanTime.Before(*in)) {
			in = rec.FirstScanTime
		}
		if rec.LastScanTime != nil && (out == nil || rec.LastScanTime.After(*out)) {
			out = rec.LastScanTime
		}
	}
	if in == nil && out == nil {
		return ReplyNoScansToday, nil
	}

	return fmt.Sprintf("Scans for %s\nName: %s\nEmployee Code: %s\n🕖 In: %s\n🕓 Out: %s",
		now.Format("02/01/2006"), emp.FullName, emp.EmployeeCode, clock(in, u.loc), clock(out, u.loc)), nil
}

func clock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format(time.TimeOnly)
}
