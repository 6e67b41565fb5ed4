package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/ttpmap/internal/model"
)

// version is set at build time via -ldflags "-X github.com/ppiankov/ttpmap/internal/cli.version=x.y.z"
var version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ttpmap",
	Short: "ttpmap - grounded MITRE ATT&CK and NICE KSA mapping",
	Long: `ttpmap maps a plain-language description of cyber activity onto
MITRE ATT&CK technique codes and NICE Knowledge/Skill/Ability/Task codes.

Every code a language model proposes is checked against a local corpus of
authoritative framework records. Fabricated codes and descriptions that
contradict the canonical text are fed back for correction; anything still
unverified after the last attempt is flagged in the report.

ttpmap reports what the corpus supports. It is not a threat intelligence source.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ttpmap %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.ttpmap/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider (openai, anthropic, ollama, gemini)")
	rootCmd.PersistentFlags().String("model", "", "LLM model name")
	rootCmd.PersistentFlags().String("corpus-dir", "", "knowledge corpus directory")
	rootCmd.PersistentFlags().Int("max-attempts", 0, "generate-verify attempts per session")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("corpus.dir", rootCmd.PersistentFlags().Lookup("corpus-dir"))
	_ = viper.BindPFlag("session.max_attempts", rootCmd.PersistentFlags().Lookup("max-attempts"))

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return codeError(exitConfig, err, "%s", err)
	})

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env, config file and ENV variables
func initConfig() {
	// Credentials from .env in the working directory; real env vars win
	_ = gotenv.Load()

	setDefaults()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".ttpmap"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match TTPMAP_*, e.g. TTPMAP_LLM_MODEL
	viper.SetEnvPrefix("TTPMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// optionalKeys are omitted from the YAML defaults but must still be known to
// viper so that their TTPMAP_* variables are picked up
var optionalKeys = []string{
	"llm.api_key",
	"llm.base_url",
	"corpus.nice_url",
	"http.http_proxy",
	"http.https_proxy",
	"http.no_proxy",
}

// setDefaults registers every key of model.DefaultConfig with viper
func setDefaults() {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return
	}
	setDefaultTree("", tree)
	for _, key := range optionalKeys {
		viper.SetDefault(key, "")
	}
}

func setDefaultTree(prefix string, tree map[string]interface{}) {
	for key, val := range tree {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if sub, ok := val.(map[string]interface{}); ok {
			setDefaultTree(full, sub)
			continue
		}
		viper.SetDefault(full, val)
	}
}

// loadConfig resolves the effective configuration
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, codeError(exitConfig, err, "invalid configuration: %s", err)
	}
	applyCredentials(cfg)
	// TTPMAP_OUTPUT_VERBOSE and the config file also turn on progress lines
	verbose = cfg.Output.Verbose
	return cfg, nil
}

// applyCredentials fills the API key and endpoint from the provider's
// conventional environment variables when the config leaves them empty
func applyCredentials(cfg *model.Config) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OPENAI_BASE_URL")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "gemini", "google":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
	case "ollama":
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
}

// newLogger builds the structured logger shared by all components.
// Warnings always reach stderr; --verbose adds info and debug records.
func newLogger(cfg *model.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
