package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/ttpmap/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ttpmap configuration",
	Long: `Manage ttpmap configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (TTPMAP_*, e.g. TTPMAP_LLM_PROVIDER)
3. Config file (~/.ttpmap/config.yaml)
4. Defaults

Provider credentials are also read from OPENAI_API_KEY, ANTHROPIC_API_KEY,
GEMINI_API_KEY and OLLAMA_BASE_URL, including a .env file in the working directory.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the effective configuration after merging defaults, config file, env vars and flags. The API key is masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		cfg.LLM.APIKey = maskSecret(cfg.LLM.APIKey)
		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(yamlData)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.ttpmap/config.yaml (or --config) with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("error finding home directory: %w", err)
			}
			configPath = filepath.Join(home, ".ttpmap", "config.yaml")
		}

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'ttpmap config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		data, err := defaultConfigFile()
		if err != nil {
			return err
		}
		if err := os.WriteFile(configPath, data, 0o600); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		fmt.Fprintf(os.Stderr, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(os.Stderr, "\nNext steps:\n")
		fmt.Fprintf(os.Stderr, "  export OPENAI_API_KEY=sk-...\n")
		fmt.Fprintf(os.Stderr, "  ttpmap corpus fetch\n")
		fmt.Fprintf(os.Stderr, "  ttpmap map \"describe the activity here\"\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// defaultConfigFile renders the defaults as commented YAML
func defaultConfigFile() ([]byte, error) {
	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}

	header := `# ttpmap configuration
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (TTPMAP_*, e.g. TTPMAP_SESSION_MAX_ATTEMPTS=5)
#   3. This config file
#   4. Built-in defaults
#
# llm.provider: openai, anthropic, ollama or gemini
# corpus.nice_url: NICE Framework components JSON export; leave empty to skip
# session.threshold: share of claim terms that must appear in the canonical text
# rate_limiting.providers: per-provider requests_per_second, 0 for unlimited
#   (e.g. providers: {ollama: 0})

`
	footer := `
# API keys (recommended to use environment variables instead):
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export GEMINI_API_KEY=...
#   export OLLAMA_BASE_URL=http://localhost:11434
`
	return []byte(header + string(yamlData) + footer), nil
}

// maskSecret keeps the last four characters of a credential
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
