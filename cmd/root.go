// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-monitor/internal/config"
	"github.com/naka-gawa/repo-monitor/internal/notify"
)

var rootCmd = &cobra.Command{
	Use:   "repo-monitor",
	Short: "Watches a GitHub repository and emails about stale issues and merged pull requests.",
	Long: `repo-monitor polls one GitHub repository, finds open issues older than a
configured threshold and pull requests merged or closed within a lookback window,
and notifies a list of recipients by email. Sent notifications are recorded so the
history survives restarts.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "Path to the configuration file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
}

// newLogger discards all logs unless --verbose is set.
func newLogger(cmd *cobra.Command) *log.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := log.New(io.Discard, "", log.LstdFlags)
	if verbose {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newSink(cfg *config.Config, dryRun bool, logger *log.Logger) notify.Sink {
	if dryRun {
		return notify.NewDryRunSink(logger)
	}
	return notify.NewSMTPSink(notify.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	}, logger)
}
