package llm

import (
	"context"

	"github.com/ppiankov/ttpmap/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one prompt and returns the raw completion text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is a single-turn prompt
type CompletionRequest struct {
	// System is the system instruction, sent separately where the API supports it
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// Temperature overrides the configured temperature when non-nil
	Temperature *float64

	// JSON asks the backend to constrain output to a JSON object
	JSON bool
}

// CompletionResponse is the provider's answer
type CompletionResponse struct {
	// Text is the completion, trimmed of surrounding whitespace
	Text string `json:"text"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// TokensUsed tracks token consumption
	TokensUsed int `json:"tokens_used"`

	// Cached is set when the response was served from the response cache
	Cached bool `json:"-"`
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic/Gemini
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling
	Temperature float64

	// JSONMode requests JSON object output by default
	JSONMode bool

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Timeout:     60,
		MaxTokens:   2000,
		Temperature: 0.4,
		JSONMode:    true,
	}
}

// ConfigFromModel converts the application config into provider config
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:    llmCfg.Provider,
		Model:       llmCfg.Model,
		APIKey:      llmCfg.APIKey,
		BaseURL:     llmCfg.BaseURL,
		Timeout:     llmCfg.Timeout,
		MaxTokens:   llmCfg.MaxTokens,
		Temperature: llmCfg.Temperature,
		JSONMode:    llmCfg.JSONMode,
		HTTPProxy:   httpCfg.HTTPProxy,
		HTTPSProxy:  httpCfg.HTTPSProxy,
		NoProxy:     httpCfg.NoProxy,
	}
}

// resolve fills request fields left empty from the provider config
func (c Config) resolve(req CompletionRequest, defaultModel string) (modelName string, maxTokens int, temperature float64) {
	modelName = req.Model
	if modelName == "" {
		modelName = c.Model
	}
	if modelName == "" {
		modelName = defaultModel
	}

	maxTokens = req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = 2000
	}

	temperature = c.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	return modelName, maxTokens, temperature
}
