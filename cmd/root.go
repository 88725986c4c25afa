package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/applypilot/applypilot/internal/app"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "applypilot",
	Short: "Job application auto-prep pipeline",
	Long: `Applypilot discovers job listings, scores them against your profile,
and drafts applications for the strongest matches. Nothing is ever sent
without your explicit approval from the queue.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New()
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		cmd.SetContext(app.SetAppInContext(cmd.Context(), application))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application := app.GetAppFromContext(cmd.Context()); application != nil {
			application.Close()
		}
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
