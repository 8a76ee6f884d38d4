package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-monitor/internal/dashboard"
	"github.com/naka-gawa/repo-monitor/internal/gateway"
	"github.com/naka-gawa/repo-monitor/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows the current repository status and monitoring history",
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

		var history dashboard.History
		if database, err := store.Open(cfg.Storage.DBPath); err != nil {
			logger.Printf("History unavailable: %v", err)
		} else {
			defer database.Close()
			history = database
		}

		builder := dashboard.NewBuilder(githubGateway, history, logger)
		report, err := builder.Build(cmd.Context(), dashboard.SettingsFromConfig(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build status report: %v\n", err)
			os.Exit(1)
		}

		if err := dashboard.WriteText(cmd.OutOrStdout(), report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write status report: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
