package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/repo-monitor/internal/dashboard"
	"github.com/naka-gawa/repo-monitor/internal/gateway"
	"github.com/naka-gawa/repo-monitor/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the status dashboard as JSON over HTTP",
	Long:  `Starts an HTTP server exposing GET /api/health and GET /api/status.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(cmd)

		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		addr := cfg.Server.Addr
		if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
			addr = flagAddr
		}

		if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
			gin.SetMode(gin.ReleaseMode)
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
		defer func() { _ = database.Close() }()

		builder := dashboard.NewBuilder(githubGateway, database, logger)
		router := dashboard.NewRouter(dashboard.NewHandler(builder, dashboard.SettingsFromConfig(cfg)))

		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "Dashboard listening on %s\n", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
			return
		}

		logger.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Server forced to shutdown: %v\n", err)
			return
		}
		logger.Println("Server exited")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
