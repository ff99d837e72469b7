package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one poll cycle and exit",
	RunE:  runPoll,
}

func runPoll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	report, err := a.poll.RunCycle(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Work date: %s\n", report.WorkDate)
	fmt.Fprintf(out, "Records:   %d\n", report.Records)
	fmt.Fprintf(out, "Events:    %d (sent %d, failed %d, skipped %d)\n", report.Events, report.Sent, report.Failed, report.Skipped)
	fmt.Fprintf(out, "Cursor:    %s\n", report.Cursor.Format(time.RFC3339))
	if report.Failed > 0 {
		return fmt.Errorf("%d notifications failed", report.Failed)
	}
	return nil
}
