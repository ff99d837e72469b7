package cli

import (
	"fmt"
	"io"
	"time"

	"attendance-bridge/internal/admin/dto"
	"attendance-bridge/internal/attendance/domain"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var stateDate string

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the persisted poll state",
	Long: `Print the poll cursor, the daily counter and the notified watermarks.

Examples:
  attendance-bridge state
  attendance-bridge state --date 2026-03-02`,
	RunE: runState,
}

func init() {
	stateCmd.Flags().StringVar(&stateDate, "date", "", "only show watermarks for this work date")
}

func runState(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	repo, err := newStateRepository(cfg)
	if err != nil {
		return err
	}

	state, err := repo.Load(cmd.Context())
	if err != nil {
		return err
	}
	printState(cmd.OutOrStdout(), state, stateDate)
	return nil
}

func printState(out io.Writer, state *domain.State, date string) {
	view := dto.NewStateResponse(state)
	bold := color.New(color.Bold)

	bold.Fprintln(out, "Cursor")
	if view.Cursor == nil {
		fmt.Fprintf(out, "  %s\n", color.New(color.FgYellow).Sprint("(never polled)"))
	} else {
		fmt.Fprintf(out, "  %s\n", view.Cursor.Format(time.RFC3339))
	}

	bold.Fprintln(out, "Today")
	fmt.Fprintf(out, "  date: %s  in: %d  out: %d  active: %d\n",
		view.Daily.Date, view.Daily.InNotified, view.Daily.OutNotified, view.Daily.ActiveSubjects)

	bold.Fprintf(out, "Watermarks (%d)\n", len(view.Watermarks))
	for _, w := range view.Watermarks {
		if date != "" && w.WorkDate != date {
			continue
		}
		fmt.Fprintf(out, "  %s  %-12s in %s  out %s\n", w.WorkDate, w.SubjectID, clockOf(w.FirstInTime), clockOf(w.LastOutTime))
	}
}

func clockOf(t *time.Time) string {
	if t == nil {
		return color.New(color.FgHiBlack).Sprint("--:--:--")
	}
	return color.New(color.FgGreen).Sprint(t.Format(time.TimeOnly))
}
