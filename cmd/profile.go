package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/applypilot/applypilot/internal/app"
	"github.com/applypilot/applypilot/pkg/models"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginTop(1).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profiles",
	Long:  "Create, view, and update the profiles the pipeline runs for",
}

var profileAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a profile with an interactive wizard",
	Run: func(cmd *cobra.Command, args []string) {
		application := app.GetAppFromContext(cmd.Context())

		fmt.Println(titleStyle.Render("New Profile"))
		reader := bufio.NewReader(os.Stdin)

		profile := &models.UserProfile{Active: true}
		profile.Name = promptLine(reader, "Full Name: ")
		profile.Email = promptLine(reader, "Email: ")
		profile.Skills = promptList(reader, "Skills (comma-separated): ")
		profile.DesiredRoles = promptList(reader, "Desired roles (comma-separated): ")
		profile.DesiredLocations = promptList(reader, "Desired locations ('remote' allowed, comma-separated): ")
		profile.TargetCompanies = promptList(reader, "Target companies (optional, comma-separated): ")

		if floor := promptLine(reader, "Salary floor (optional, yearly): "); floor != "" {
			if v, err := strconv.Atoi(floor); err == nil {
				profile.SalaryFloor = &v
			}
		}
		if ceil := promptLine(reader, "Salary ceiling (optional, yearly): "); ceil != "" {
			if v, err := strconv.Atoi(ceil); err == nil {
				profile.SalaryCeiling = &v
			}
		}

		switch promptLine(reader, "Employment type [full-time/part-time/internship]: ") {
		case "internship":
			profile.EmploymentType = models.EmploymentInternship
		case "part-time":
			profile.EmploymentType = models.EmploymentPartTime
		default:
			profile.EmploymentType = models.EmploymentFullTime
		}

		profile.LetterQuota = 30
		if quota := promptLine(reader, "Generated letters per month [30]: "); quota != "" {
			if v, err := strconv.Atoi(quota); err == nil && v >= 0 {
				profile.LetterQuota = v
			}
		}

		if err := application.Store.CreateProfile(cmd.Context(), profile); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating profile: %v\n", err)
			os.Exit(1)
		}

		fmt.Println(titleStyle.Render("\n✓ Profile created"))
		fmt.Printf("Profile ID: %d\n", profile.ID)
		fmt.Println("Next steps:")
		fmt.Println("  1. Configure an AI key: applypilot config set --key openai_key --value YOUR_KEY")
		fmt.Println("  2. Run a first discovery: applypilot discover --profile", profile.ID)
		fmt.Println("  3. Start the pipeline: applypilot serve")
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Display a profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application := app.GetAppFromContext(cmd.Context())

		id, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid profile id: %s\n", args[0])
			os.Exit(1)
		}

		profile, err := application.Store.GetProfile(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching profile: %v\n", err)
			os.Exit(1)
		}
		if profile == nil {
			fmt.Println("No profile found. Run 'applypilot profile add' to create one.")
			return
		}

		fmt.Println(titleStyle.Render("Profile"))
		fmt.Printf("%s %s\n", labelStyle.Render("Name:"), valueStyle.Render(profile.Name))
		fmt.Printf("%s %s\n", labelStyle.Render("Email:"), valueStyle.Render(profile.Email))
		fmt.Printf("%s %s\n", labelStyle.Render("Skills:"), valueStyle.Render(strings.Join(profile.Skills, ", ")))
		fmt.Printf("%s %s\n", labelStyle.Render("Roles:"), valueStyle.Render(strings.Join(profile.DesiredRoles, ", ")))
		fmt.Printf("%s %s\n", labelStyle.Render("Locations:"), valueStyle.Render(strings.Join(profile.DesiredLocations, ", ")))
		if len(profile.TargetCompanies) > 0 {
			fmt.Printf("%s %s\n", labelStyle.Render("Companies:"), valueStyle.Render(strings.Join(profile.TargetCompanies, ", ")))
		}
		if profile.SalaryFloor != nil {
			fmt.Printf("%s $%d\n", labelStyle.Render("Salary floor:"), *profile.SalaryFloor)
		}
		fmt.Printf("%s %s\n", labelStyle.Render("Employment:"), string(profile.EmploymentType))
		fmt.Printf("%s %d/%d used, resets %s\n", labelStyle.Render("Letter quota:"),
			profile.LettersUsed, profile.LetterQuota, profile.QuotaResetsAt.Format("Jan 2"))
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active profiles",
	Run: func(cmd *cobra.Command, args []string) {
		application := app.GetAppFromContext(cmd.Context())

		profiles, err := application.Store.ListActiveProfiles(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching profiles: %v\n", err)
			os.Exit(1)
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles yet. Run 'applypilot profile add' to create one.")
			return
		}

		fmt.Println(titleStyle.Render("Active Profiles"))
		for _, p := range profiles {
			fmt.Printf("  • [%d] %s <%s> — %s\n", p.ID, p.Name, p.Email, strings.Join(p.DesiredRoles, ", "))
		}
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Update profile preferences",
	Args:  cobra.ExactArgs(1),
	Example: `  applypilot profile set 1 --roles "Backend Engineer,Platform Engineer"
  applypilot profile set 1 --locations "remote,Berlin"
  applypilot profile set 1 --salary-floor 90000
  applypilot profile set 1 --quota 20`,
	Run: func(cmd *cobra.Command, args []string) {
		application := app.GetAppFromContext(cmd.Context())

		id, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid profile id: %s\n", args[0])
			os.Exit(1)
		}

		profile, err := application.Store.GetProfile(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error fetching profile: %v\n", err)
			os.Exit(1)
		}
		if profile == nil {
			fmt.Println("No profile found. Run 'applypilot profile add' to create one.")
			return
		}

		updated := false
		if roles, _ := cmd.Flags().GetString("roles"); roles != "" {
			profile.DesiredRoles = splitList(roles)
			updated = true
		}
		if locations, _ := cmd.Flags().GetString("locations"); locations != "" {
			profile.DesiredLocations = splitList(locations)
			updated = true
		}
		if companies, _ := cmd.Flags().GetString("companies"); companies != "" {
			profile.TargetCompanies = splitList(companies)
			updated = true
		}
		if skills, _ := cmd.Flags().GetString("skills"); skills != "" {
			profile.Skills = splitList(skills)
			updated = true
		}
		if floor, _ := cmd.Flags().GetInt("salary-floor"); floor > 0 {
			profile.SalaryFloor = &floor
			updated = true
		}
		if quota, _ := cmd.Flags().GetInt("quota"); quota >= 0 && cmd.Flags().Changed("quota") {
			profile.LetterQuota = quota
			updated = true
		}
		if cmd.Flags().Changed("active") {
			profile.Active, _ = cmd.Flags().GetBool("active")
			updated = true
		}

		if !updated {
			fmt.Println("No fields to update. Use flags like --roles, --locations, --quota.")
			return
		}

		if err := application.Store.UpdateProfile(cmd.Context(), profile); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating profile: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✓ Profile updated")
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile and all of its pipeline data",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		application := app.GetAppFromContext(cmd.Context())

		id, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid profile id: %s\n", args[0])
			os.Exit(1)
		}

		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			fmt.Print("This removes the profile and every listing match, draft, and run for it. Type 'yes' to confirm: ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(answer) != "yes" {
				fmt.Println("Aborted.")
				return
			}
		}

		if err := application.Store.DeleteProfile(cmd.Context(), id); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting profile: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Profile %d deleted\n", id)
	},
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func promptLine(reader *bufio.Reader, label string) string {
	fmt.Print(labelStyle.Render(label))
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptList(reader *bufio.Reader, label string) []string {
	raw := promptLine(reader, label)
	if raw == "" {
		return nil
	}
	return splitList(raw)
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileDeleteCmd)

	profileDeleteCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")

	profileSetCmd.Flags().String("roles", "", "Comma-separated desired roles")
	profileSetCmd.Flags().String("locations", "", "Comma-separated desired locations ('remote' allowed)")
	profileSetCmd.Flags().String("companies", "", "Comma-separated target companies")
	profileSetCmd.Flags().String("skills", "", "Comma-separated skills")
	profileSetCmd.Flags().Int("salary-floor", 0, "Minimum acceptable yearly salary")
	profileSetCmd.Flags().Int("quota", 0, "Generated letters per month")
	profileSetCmd.Flags().Bool("active", true, "Whether the pipeline runs for this profile")
}
