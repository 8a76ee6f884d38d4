package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-monitor/internal/config"
	"github.com/naka-gawa/repo-monitor/internal/gateway"
	"github.com/naka-gawa/repo-monitor/internal/scheduler"
	"github.com/naka-gawa/repo-monitor/internal/store"
	"github.com/naka-gawa/repo-monitor/internal/usecase"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs a single monitoring cycle",
	Long: `Fetches open issues and recently merged or closed pull requests, sends the
alerts that apply and records them. Exits non-zero when the configuration is
invalid or the repository data could not be fetched. Failed email deliveries
are reported but do not fail the command.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(cmd)
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		if err := runCycle(cmd.Context(), cmd.OutOrStdout(), cfg, dryRun, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Monitoring cycle failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("dry-run", false, "Log notifications instead of sending them and leave the stored history untouched")
}

// runCycle executes one cycle. A dry run never touches the database.
func runCycle(ctx context.Context, out io.Writer, cfg *config.Config, dryRun bool, logger *log.Logger) error {
	githubGateway, err := gateway.NewGitHubGateway(cfg.Repository.Token, logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	monitor := usecase.NewMonitor(githubGateway, newSink(cfg, dryRun, logger), cfg.Monitoring.PRLookbackHours, logger)

	if dryRun {
		result, err := monitor.Run(ctx, cfg.InitialState())
		if err != nil {
			return err
		}
		printCycle(out, result, true)
		return nil
	}

	database, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	interval := time.Duration(cfg.Monitoring.CheckIntervalHours) * time.Hour
	runner := scheduler.NewRunner(monitor, database, cfg.InitialState, interval, logger)
	res, err := runner.RunNow(ctx)
	if err != nil {
		return err
	}
	printCycle(out, res.Cycle, false)
	return nil
}

func printCycle(out io.Writer, result *usecase.CycleResult, dryRun bool) {
	prefix := ""
	if dryRun {
		prefix = "[dry-run] "
	}
	fmt.Fprintf(out, "%sCycle complete for %s\n", prefix, result.State.FullName())
	fmt.Fprintf(out, "  Open issues:        %d (%d stale)\n", result.IssuesFetched, result.StaleIssues)
	fmt.Fprintf(out, "  Recent PRs:         %d (%d reportable)\n", result.PRsFetched, result.ReportablePRs)
	fmt.Fprintf(out, "  Notifications sent: %d\n", result.NotificationsSent)
	if result.SendFailures > 0 {
		fmt.Fprintf(out, "  Send failures:      %d\n", result.SendFailures)
	}
	fmt.Fprintf(out, "  Stages:             %s\n", strings.Join(result.Stages, " -> "))
}
