package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/applypilot/applypilot/internal/app"
	"github.com/applypilot/applypilot/internal/matcher"
	"github.com/applypilot/applypilot/pkg/models"
	"github.com/spf13/cobra"
)

var matchesCmd = &cobra.Command{
	Use:   "matches",
	Short: "Show scored matches for a profile",
	Run: func(cmd *cobra.Command, args []string) {
		application := app.GetAppFromContext(cmd.Context())
		profileID, _ := cmd.Flags().GetInt("profile")

		matches, err := application.Store.ListMatches(cmd.Context(), profileID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching matches: %v\n", err)
			os.Exit(1)
		}
		if len(matches) == 0 {
			fmt.Println("No matches yet. Run 'applypilot discover' first.")
			return
		}

		listingIDs := make([]int, 0, len(matches))
		for _, m := range matches {
			listingIDs = append(listingIDs, m.ListingID)
		}
		listings, err := application.Store.ListListingsByIDs(cmd.Context(), listingIDs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching listings: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Matches (%d)", len(matches))))
		for _, m := range matches {
			listing := listings[m.ListingID]
			marker := " "
			if m.Score >= matcher.PrepareScore {
				marker = "★"
			}
			fmt.Printf("  %s [%d] %.2f  %s at %s (%s)\n",
				marker, m.ID, m.Score, listing.Title, listing.Company, m.Status)
			for _, reason := range m.Reasons {
				fmt.Printf("      %s\n", valueStyle.Render(reason))
			}
		}
	},
}

var matchesMarkCmd = &cobra.Command{
	Use:   "mark <id> <viewed|saved|dismissed>",
	Short: "Update a match's status",
	Long:  "Marks a match as viewed, saved, or dismissed. A dismissed match never resurfaces for the same posting.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		application := app.GetAppFromContext(cmd.Context())

		id, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid match id: %s\n", args[0])
			os.Exit(1)
		}

		status := models.MatchStatus(args[1])
		switch status {
		case models.MatchStatusViewed, models.MatchStatusSaved, models.MatchStatusDismissed:
		default:
			fmt.Fprintf(os.Stderr, "Invalid status %q. Must be viewed, saved, or dismissed.\n", args[1])
			os.Exit(1)
		}

		match, err := application.Store.GetMatch(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching match: %v\n", err)
			os.Exit(1)
		}
		if match == nil {
			fmt.Fprintf(os.Stderr, "No match with id %d\n", id)
			os.Exit(1)
		}
		if match.Status == models.MatchStatusApplied {
			fmt.Fprintln(os.Stderr, "Match already has a draft; decide it from the queue instead.")
			os.Exit(1)
		}

		if err := application.Store.SetMatchStatus(cmd.Context(), id, status); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating match: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Match %d marked %s\n", id, status)
	},
}

func init() {
	rootCmd.AddCommand(matchesCmd)
	matchesCmd.AddCommand(matchesMarkCmd)
	matchesCmd.Flags().Int("profile", 1, "Profile ID")
}
