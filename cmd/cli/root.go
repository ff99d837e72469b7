package cli

import (
	"fmt"
	"os"

	"attendance-bridge/pkg/config"
	"attendance-bridge/pkg/logging"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	rootCmd    *cobra.Command
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "attendance-bridge",
		Short: "Bridge HR scan records to WeCom notifications",
		Long: `attendance-bridge polls the HR backend for clock-in/clock-out scans and
notifies each employee on WeCom when a new scan appears. It also serves the
WeCom callback endpoint for chat commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "YAML config file (overrides environment)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// Execute runs the root command
func Execute() error {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(testSendCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(issueTokenCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// loadConfig reads configuration and applies flag overrides. validate is
// false for commands that only touch local state.
func loadConfig(validate bool) (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration:\n%w", err)
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
}
