package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	// Text generation
	OpenAIKey    string `mapstructure:"openai_key"`
	AnthropicKey string `mapstructure:"anthropic_key"`
	AIProvider   string `mapstructure:"ai_provider"` // openai, anthropic, ollama
	DefaultModel string `mapstructure:"default_model"`
	OllamaURL    string `mapstructure:"ollama_url"`

	// Pipeline cadences and limits
	DiscoveryIntervalHours int `mapstructure:"discovery_interval_hours"`
	PrepareIntervalMinutes int `mapstructure:"prepare_interval_minutes"`
	MaxConcurrentUsers     int `mapstructure:"max_concurrent_users"`
	PrepareRunCap          int `mapstructure:"prepare_run_cap"` // drafts per preparation cycle
	ListingGraceDays       int `mapstructure:"listing_grace_days"`
	CycleTimeoutMinutes    int `mapstructure:"cycle_timeout_minutes"` // per-user wall-clock budget
	GenerateTimeoutSeconds int `mapstructure:"generate_timeout_seconds"`

	Debug bool `mapstructure:"debug"`
}

// Load reads or creates the configuration file and returns the parsed Config.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".applypilot")
	configFile := filepath.Join(configDir, "config.yaml")

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create default config if it doesn't exist
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := createDefaultConfig(configFile); err != nil {
			return nil, err
		}
	}

	viper.SetConfigFile(configFile)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("ai_provider", "ollama")
	viper.SetDefault("default_model", "llama3.2")
	viper.SetDefault("ollama_url", "http://localhost:11434")
	viper.SetDefault("openai_key", "")
	viper.SetDefault("anthropic_key", "")
	viper.SetDefault("discovery_interval_hours", 24)
	viper.SetDefault("prepare_interval_minutes", 30)
	viper.SetDefault("max_concurrent_users", 4)
	viper.SetDefault("prepare_run_cap", 5)
	viper.SetDefault("listing_grace_days", 14)
	viper.SetDefault("cycle_timeout_minutes", 10)
	viper.SetDefault("generate_timeout_seconds", 60)
	viper.SetDefault("debug", false)

	// Read config
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Unmarshal into struct
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// createDefaultConfig creates a default config file
func createDefaultConfig(path string) error {
	defaultConfig := `# Applypilot Configuration
# AI Provider: openai, anthropic, ollama
ai_provider: ollama
default_model: llama3.2
ollama_url: http://localhost:11434

# API Keys (keep this file secure!)
openai_key: ""
anthropic_key: ""

# Pipeline cadences and limits
discovery_interval_hours: 24
prepare_interval_minutes: 30
max_concurrent_users: 4
prepare_run_cap: 5
listing_grace_days: 14
cycle_timeout_minutes: 10
generate_timeout_seconds: 60
`
	return os.WriteFile(path, []byte(defaultConfig), 0600)
}

// Set updates a configuration value
func Set(key, value string) error {
	viper.Set(key, value)
	return viper.WriteConfig()
}

// Get retrieves a configuration value
func Get(key string) string {
	return viper.GetString(key)
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".applypilot", "config.yaml")
}
