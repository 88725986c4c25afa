package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/applypilot/applypilot/internal/app"
	"github.com/applypilot/applypilot/internal/queue"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Review the approval queue",
	Long:  "List prepared drafts and approve or dismiss them. Approval is the only path to a submitted application.",
}

var queueReadyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List drafts awaiting your decision",
	Run: func(cmd *cobra.Command, args []string) {
		application := app.GetAppFromContext(cmd.Context())
		profileID, _ := cmd.Flags().GetInt("profile")
		verbose, _ := cmd.Flags().GetBool("verbose")

		drafts, err := application.Queue.ListReady(cmd.Context(), profileID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching queue: %v\n", err)
			os.Exit(1)
		}
		if len(drafts) == 0 {
			fmt.Println("Queue is empty. Run 'applypilot discover' or wait for the next cycle.")
			return
		}

		listingIDs := make([]int, 0, len(drafts))
		for _, d := range drafts {
			listingIDs = append(listingIDs, d.ListingID)
		}
		listings, err := application.Store.ListListingsByIDs(cmd.Context(), listingIDs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching listings: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Approval Queue (%d)", len(drafts))))
		for _, d := range drafts {
			listing := listings[d.ListingID]
			fmt.Printf("  • [%d] %s at %s\n", d.ID, listing.Title, listing.Company)
			fmt.Printf("    %s %s | %s letter | prepared %s\n",
				labelStyle.Render("location:"), listing.Location,
				d.LetterSource, d.PreparedAt.Format("Jan 2 15:04"))
			if verbose {
				fmt.Println(valueStyle.Render(indent(d.CoverLetter, "    ")))
				for k, v := range d.Answers {
					fmt.Printf("    %s %s\n", labelStyle.Render(k+":"), v)
				}
			}
		}
		fmt.Println("\nApprove with 'applypilot queue approve <id>' or dismiss with 'applypilot queue dismiss <id>'.")
	},
}

var queueApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a draft for submission",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		decideDraft(cmd, args[0], true)
	},
}

var queueDismissCmd = &cobra.Command{
	Use:   "dismiss <id>",
	Short: "Dismiss a draft",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		decideDraft(cmd, args[0], false)
	},
}

func decideDraft(cmd *cobra.Command, rawID string, approve bool) {
	application := app.GetAppFromContext(cmd.Context())

	id, err := strconv.Atoi(rawID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid application id: %s\n", rawID)
		os.Exit(1)
	}

	if approve {
		_, err = application.Queue.Approve(cmd.Context(), id)
	} else {
		_, err = application.Queue.Dismiss(cmd.Context(), id)
	}

	switch {
	case errors.Is(err, queue.ErrNotFound):
		fmt.Fprintf(os.Stderr, "No application with id %d\n", id)
		os.Exit(1)
	case errors.Is(err, queue.ErrAlreadyTerminal):
		fmt.Fprintf(os.Stderr, "Application %d was already decided the other way\n", id)
		os.Exit(1)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if approve {
		fmt.Printf("✓ Application %d approved\n", id)
	} else {
		fmt.Printf("✓ Application %d dismissed\n", id)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueReadyCmd)
	queueCmd.AddCommand(queueApproveCmd)
	queueCmd.AddCommand(queueDismissCmd)

	queueReadyCmd.Flags().Int("profile", 1, "Profile ID")
	queueReadyCmd.Flags().Bool("verbose", false, "Show full cover letters and answers")
}
