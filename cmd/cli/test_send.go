package cli

import (
	"fmt"
	"time"

	"attendance-bridge/internal/attendance/domain"

	"github.com/spf13/cobra"
)

var testSendDate string

var testSendCmd = &cobra.Command{
	Use:   "test-send",
	Short: "Send every employee a summary of one day's scans",
	Long: `Send a "[TEST] Scan summary" message to each employee who has a scan
record on the given date. Poll state is not read or modified.

Examples:
  attendance-bridge test-send
  attendance-bridge test-send --date 2026-03-02`,
	RunE: runTestSend,
}

func init() {
	testSendCmd.Flags().StringVar(&testSendDate, "date", "", "work date YYYY-MM-DD (default today)")
}

func runTestSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	date := time.Now().In(cfg.Location)
	if testSendDate != "" {
		date, err = time.ParseInLocation(domain.DateLayout, testSendDate, cfg.Location)
		if err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
	}

	report, err := a.poll.SendTestSummary(cmd.Context(), date)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %d test messages for %s (failed %d, skipped %d)\n",
		report.Sent, report.Date, report.Failed, report.Skipped)
	return nil
}
