package cmd

import (
	"fmt"
	"os"

	"github.com/applypilot/applypilot/internal/app"
	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run a discovery cycle now",
	Long:  "Scrapes the configured boards for one profile immediately, outside the schedule.",
	Example: `  applypilot discover --profile 1
  applypilot discover --profile 1 --history`,
	Run: func(cmd *cobra.Command, args []string) {
		application := app.GetAppFromContext(cmd.Context())
		profileID, _ := cmd.Flags().GetInt("profile")
		history, _ := cmd.Flags().GetBool("history")

		if history {
			showRunHistory(cmd, profileID)
			return
		}

		fmt.Println(titleStyle.Render("Running discovery..."))

		run, err := application.Scheduler.TriggerDiscovery(cmd.Context(), profileID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
			os.Exit(1)
		}
		if run == nil {
			fmt.Println("A discovery cycle is already running for this profile.")
			return
		}

		fmt.Printf("%s %d found, %d new, %d updated, %d errors\n",
			labelStyle.Render("Done:"), run.Found, run.New, run.Updated, run.Errored)
	},
}

func showRunHistory(cmd *cobra.Command, profileID int) {
	application := app.GetAppFromContext(cmd.Context())

	runs, err := application.Store.ListRuns(cmd.Context(), profileID, 20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching runs: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}

	fmt.Println(titleStyle.Render("Recent Runs"))
	for _, run := range runs {
		fmt.Printf("  • %s %s [%s] started %s\n",
			run.Kind, run.Trigger, run.Status, run.StartedAt.Format("2006-01-02 15:04"))
		fmt.Printf("    found %d, new %d, updated %d, errored %d\n",
			run.Found, run.New, run.Updated, run.Errored)
		if run.Error != "" {
			fmt.Printf("    %s %s\n", labelStyle.Render("error:"), run.Error)
		}
	}
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	discoverCmd.Flags().Int("profile", 1, "Profile ID to discover for")
	discoverCmd.Flags().Bool("history", false, "Show recent run history instead of running")
}
