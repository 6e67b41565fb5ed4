package model

import (
	"os"
	"path/filepath"
)

// Config is the full ttpmap configuration.
// Hierarchy (highest first): CLI flags, TTPMAP_* env vars, config file, defaults.
type Config struct {
	LLM          LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Corpus       CorpusConfig      `mapstructure:"corpus" yaml:"corpus"`
	Session      SessionConfig     `mapstructure:"session" yaml:"session"`
	Cache        CacheConfig       `mapstructure:"cache" yaml:"cache"`
	RateLimiting RateLimitConfig   `mapstructure:"rate_limiting" yaml:"rate_limiting"`
	Concurrency  ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	HTTP         HTTPConfig        `mapstructure:"http" yaml:"http"`
	Output       OutputConfig      `mapstructure:"output" yaml:"output"`
}

// LLMConfig configures the draft generator backend
type LLMConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"` // openai, anthropic, ollama, gemini
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout     int     `mapstructure:"timeout" yaml:"timeout"` // seconds per generator call
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	JSONMode    bool    `mapstructure:"json_mode" yaml:"json_mode"` // ask the provider for a JSON object response
}

// CorpusConfig locates the knowledge corpus and its upstream sources
type CorpusConfig struct {
	Dir       string `mapstructure:"dir" yaml:"dir"`
	MITREURL  string `mapstructure:"mitre_url" yaml:"mitre_url"`
	NICEURL   string `mapstructure:"nice_url" yaml:"nice_url,omitempty"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBytes  int64  `mapstructure:"max_bytes" yaml:"max_bytes"`
	Timeout   int    `mapstructure:"timeout" yaml:"timeout"` // seconds per download
	// RespectRobots consults robots.txt before downloading a source
	RespectRobots bool `mapstructure:"respect_robots" yaml:"respect_robots"`
}

// SessionConfig tunes the generate-verify loop
type SessionConfig struct {
	MaxAttempts int     `mapstructure:"max_attempts" yaml:"max_attempts"`
	Threshold   float64 `mapstructure:"threshold" yaml:"threshold"`     // similarity acceptance threshold
	Suggestions bool    `mapstructure:"suggestions" yaml:"suggestions"` // add corpus suggestions to feedback
}

// CacheConfig configures the LLM response cache
type CacheConfig struct {
	Enabled          bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir              string `mapstructure:"dir" yaml:"dir"`
	MemoryTTLMinutes int    `mapstructure:"memory_ttl_minutes" yaml:"memory_ttl_minutes"`
	DiskTTLHours     int    `mapstructure:"disk_ttl_hours" yaml:"disk_ttl_hours"`
}

// RateLimitConfig throttles generator calls across concurrent sessions
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size"`

	// Providers overrides requests_per_second per provider name; 0 means unlimited
	Providers map[string]float64 `mapstructure:"providers" yaml:"providers,omitempty"`
}

// ConcurrencyConfig configures batch processing
type ConcurrencyConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// HTTPConfig holds proxy settings shared by providers and the corpus fetcher
type HTTPConfig struct {
	HTTPProxy  string `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy string `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
	NoProxy    string `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
}

// OutputConfig controls console output
type OutputConfig struct {
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".ttpmap")

	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     60,
			MaxTokens:   2000,
			Temperature: 0.4,
			JSONMode:    true,
		},
		Corpus: CorpusConfig{
			Dir:       filepath.Join(base, "corpus"),
			MITREURL:  "https://raw.githubusercontent.com/mitre-attack/attack-stix-data/master/enterprise-attack/enterprise-attack.json",
			UserAgent: "ttpmap/0.1 (+https://github.com/ppiankov/ttpmap)",
			MaxBytes:  200_000_000,
			Timeout:   300,
		},
		Session: SessionConfig{
			MaxAttempts: DefaultMaxAttempts,
			Threshold:   0.5,
			Suggestions: true,
		},
		Cache: CacheConfig{
			Enabled:          false,
			Dir:              filepath.Join(base, "cache"),
			MemoryTTLMinutes: 30,
			DiskTTLHours:     24,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
	}
}
