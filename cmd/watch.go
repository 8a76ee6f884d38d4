package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-monitor/internal/gateway"
	"github.com/naka-gawa/repo-monitor/internal/scheduler"
	"github.com/naka-gawa/repo-monitor/internal/store"
	"github.com/naka-gawa/repo-monitor/internal/usecase"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Runs monitoring cycles continuously",
	Long: `Runs a cycle immediately and then every check_interval_hours until interrupted.
After a failed cycle the following ticks are skipped with exponential backoff.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(cmd)

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		githubGateway, err := gateway.NewGitHubGateway(cfg.Repository.Token, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create GitHub gateway: %v\n", err)
			os.Exit(1)
		}

		database, err := store.Open(cfg.Storage.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer database.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		monitor := usecase.NewMonitor(githubGateway, newSink(cfg, false, logger), cfg.Monitoring.PRLookbackHours, logger)
		interval := time.Duration(cfg.Monitoring.CheckIntervalHours) * time.Hour
		runner := scheduler.NewRunner(monitor, database, cfg.InitialState, interval, logger)

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s/%s every %s (Ctrl+C to stop)\n", cfg.Repository.Owner, cfg.Repository.Name, interval)
		_ = runner.Run(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), "Stopped.")
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
