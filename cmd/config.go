package cmd

import (
	"fmt"
	"os"

	"github.com/applypilot/applypilot/internal/app"
	"github.com/applypilot/applypilot/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "View and update configuration settings",
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := app.GetAppFromContext(cmd.Context()).Config

		fmt.Println(titleStyle.Render("Configuration"))
		fmt.Printf("%s %s\n", labelStyle.Render("Config File:"), config.GetConfigPath())
		fmt.Printf("%s %s\n", labelStyle.Render("AI Provider:"), cfg.AIProvider)
		fmt.Printf("%s %s\n", labelStyle.Render("Default Model:"), cfg.DefaultModel)

		// Show whether API keys are configured without printing them
		if cfg.OpenAIKey != "" {
			fmt.Printf("%s %s\n", labelStyle.Render("OpenAI Key:"), "✓ Configured")
		} else {
			fmt.Printf("%s %s\n", labelStyle.Render("OpenAI Key:"), "✗ Not configured")
		}
		if cfg.AnthropicKey != "" {
			fmt.Printf("%s %s\n", labelStyle.Render("Anthropic Key:"), "✓ Configured")
		} else {
			fmt.Printf("%s %s\n", labelStyle.Render("Anthropic Key:"), "✗ Not configured")
		}

		fmt.Printf("%s every %dh\n", labelStyle.Render("Discovery:"), cfg.DiscoveryIntervalHours)
		fmt.Printf("%s every %dm, up to %d drafts per cycle\n",
			labelStyle.Render("Preparation:"), cfg.PrepareIntervalMinutes, cfg.PrepareRunCap)
		fmt.Printf("%s %d\n", labelStyle.Render("Concurrent users:"), cfg.MaxConcurrentUsers)
		fmt.Printf("%s %d days\n", labelStyle.Render("Listing grace:"), cfg.ListingGraceDays)
	},
}

var setConfigCmd = &cobra.Command{
	Use:   "set",
	Short: "Update a configuration value",
	Example: `  applypilot config set --key openai_key --value sk-...
  applypilot config set --key ai_provider --value anthropic
  applypilot config set --key discovery_interval_hours --value 12
  applypilot config set --key prepare_run_cap --value 3`,
	Run: func(cmd *cobra.Command, args []string) {
		key, _ := cmd.Flags().GetString("key")
		value, _ := cmd.Flags().GetString("value")

		if key == "" || value == "" {
			fmt.Println("Both --key and --value are required")
			return
		}

		validKeys := []string{
			"openai_key", "anthropic_key", "ai_provider", "default_model", "ollama_url",
			"discovery_interval_hours", "prepare_interval_minutes", "max_concurrent_users",
			"prepare_run_cap", "listing_grace_days", "cycle_timeout_minutes",
			"generate_timeout_seconds", "debug",
		}
		valid := false
		for _, k := range validKeys {
			if k == key {
				valid = true
				break
			}
		}
		if !valid {
			fmt.Printf("Invalid key. Must be one of: %v\n", validKeys)
			return
		}

		if err := config.Set(key, value); err != nil {
			fmt.Fprintf(os.Stderr, "Error updating config: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("✓ Configuration updated: %s\n", key)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(setConfigCmd)

	setConfigCmd.Flags().String("key", "", "Configuration key")
	setConfigCmd.Flags().String("value", "", "Configuration value")
}
