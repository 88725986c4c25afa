package cmd

import (
	"fmt"

	"github.com/applypilot/applypilot/internal/app"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline on its schedule",
	Long: `Starts both recurring cadences: listing discovery every few hours and
draft preparation every few minutes, for every active profile. Runs until
interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application := app.GetAppFromContext(cmd.Context())

		if err := application.Scheduler.Start(cmd.Context()); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}

		fmt.Println(titleStyle.Render("Applypilot running"))
		fmt.Printf("Discovery every %dh, preparation every %dm. Ctrl+C to stop.\n",
			application.Config.DiscoveryIntervalHours,
			application.Config.PrepareIntervalMinutes)

		<-cmd.Context().Done()

		fmt.Println("\nShutting down...")
		application.Scheduler.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
