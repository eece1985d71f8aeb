package llm

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned when no API key is available. Callers fall
// back to the local summary.
var ErrNotConfigured = errors.New("llm provider not configured")

// NewClientFromConfig creates the client for cfg.Provider, wrapped in a
// circuit breaker so a provider outage fails fast.
func NewClientFromConfig(cfg *Config, logger *zap.Logger) (LLMClient, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	var (
		client LLMClient
		err    error
	)
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderGroq
	}

	switch provider {
	case ProviderAnthropic:
		client, err = NewAnthropicClient(cfg, logger)
	case ProviderGroq, ProviderOpenAI:
		endpointCfg := *cfg
		endpointCfg.Provider = provider
		if endpointCfg.Endpoint == "" {
			endpointCfg.Endpoint = DefaultGroqEndpoint
		}
		if endpointCfg.Model == "" {
			endpointCfg.Model = DefaultGroqModel
		}
		client, err = NewClient(&endpointCfg, logger)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewGuardedClient(client, NewCircuitBreaker(DefaultCircuitBreakerConfig())), nil
}
