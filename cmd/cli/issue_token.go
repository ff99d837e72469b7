package cli

import (
	"fmt"
	"time"

	adminUsecase "attendance-bridge/internal/admin/usecase"

	"github.com/spf13/cobra"
)

var issueTokenName string

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Issue a bearer token for the operator API",
	Long: `Sign a JWT with ADMIN_JWT_SECRET for use with /api/admin/*.

Examples:
  attendance-bridge issue-token --name ops`,
	RunE: runIssueToken,
}

func init() {
	issueTokenCmd.Flags().StringVar(&issueTokenName, "name", "operator", "operator name recorded in the token")
}

func runIssueToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	token, op, err := adminUsecase.NewTokenUsecase(cfg.AdminJWTSecret, cfg.AdminTokenExpiry).IssueToken(issueTokenName)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", op.ExpiresAt.Format(time.RFC3339))
	return nil
}
