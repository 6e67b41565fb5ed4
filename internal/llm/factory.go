package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/ttpmap/internal/model"
	"github.com/ppiankov/ttpmap/internal/util"
)

// SupportedProviders lists the names accepted by NewProvider
var SupportedProviders = []string{"openai", "anthropic", "ollama", "gemini"}

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(strings.TrimSpace(config.Provider))

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "gemini", "google":
		return NewGeminiProvider(config)

	case "":
		return nil, fmt.Errorf("%w: no LLM provider configured (supported: %s)",
			model.ErrConfiguration, strings.Join(SupportedProviders, ", "))

	default:
		return nil, fmt.Errorf("%w: unknown LLM provider: %s (supported: %s)",
			model.ErrConfiguration, config.Provider, strings.Join(SupportedProviders, ", "))
	}
}

// newHTTPClient builds the client shared by the hand-rolled HTTP providers
func newHTTPClient(config Config, defaultTimeout time.Duration) *http.Client {
	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}
}

func missingKey(provider, envVar string) error {
	return fmt.Errorf("%w: %s API key is required (set %s or llm.api_key)", model.ErrConfiguration, provider, envVar)
}
