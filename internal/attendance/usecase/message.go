package usecase

import (
	"fmt"
	"strings"
	"time"

	"attendance-bridge/internal/attendance/domain"
)

const (
	clockLayout   = "15:04:05"
	displayLayout = "02/01/2006"
)

// FormatNotification renders the chat message for one decision. Only the
// lines for events present in the decision are included.
func FormatNotification(emp domain.Employee, d domain.Decision, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("***New Scan Notification***\n")
	fmt.Fprintf(&b, "Name: %s\nEmployee Code: %s", emp.FullName, emp.EmployeeCode)

	day := displayDate(d.Next.WorkDate)
	for _, ev := range d.Events {
		switch ev.Kind {
		case domain.EventIn:
			fmt.Fprintf(&b, "\n🕖 In: %s (%s)", ev.At.In(loc).Format(clockLayout), day)
		case domain.EventOut:
			fmt.Fprintf(&b, "\n🕓 Out: %s (%s)", ev.At.In(loc).Format(clockLayout), day)
		}
	}
	return b.String()
}

// FormatTestSummary renders the test-mode summary of one record.
func FormatTestSummary(emp domain.Employee, rec domain.ScanRecord, loc *time.Location) string {
	return fmt.Sprintf("[TEST] Scan summary for %s\nName: %s\nEmployee Code: %s\n🕖 In: %s\n🕓 Out: %s",
		displayDate(rec.WorkDate), emp.FullName, emp.EmployeeCode,
		clockOrDash(rec.FirstScanTime, loc), clockOrDash(rec.LastScanTime, loc))
}

func displayDate(workDate string) string {
	d, err := time.Parse(domain.DateLayout, workDate)
	if err != nil {
		return workDate
	}
	return d.Format(displayLayout)
}

func clockOrDash(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format(clockLayout)
}
