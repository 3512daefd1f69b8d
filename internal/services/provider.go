package services

import (
	"context"

	"promptflow/backend/internal/config"
	"promptflow/backend/internal/logging"
)

// NewGeneratorFromConfig builds the AI adapter for the configured provider.
// Missing credentials, or a provider that cannot be initialised, yield an
// adapter in disabled mode rather than an error.
func NewGeneratorFromConfig(ctx context.Context, cfg *config.Config, logger *logging.Logger) *Adapter {
	if !cfg.AIEnabled() {
		logger.Warn("AI adapter disabled; results will echo prompts", "provider", cfg.AI.Provider)
		return NewAdapter(nil, 0, logger)
	}

	var completer Completer
	switch cfg.AI.Provider {
	case config.ProviderBedrock:
		client, err := NewBedrockClient(ctx, cfg.AI.Region, cfg.AI.Model)
		if err != nil {
			logger.Error("bedrock init failed; AI adapter disabled", "error", err)
			return NewAdapter(nil, 0, logger)
		}
		completer = client
	default:
		completer = NewGeminiClient(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model)
	}

	logger.Info("AI adapter enabled", "provider", completer.Name(), "model", cfg.AI.Model)
	breaker := NewBreakerCompleter(completer, cfg.AI.Breaker.MaxFailures, cfg.AI.Breaker.Timeout, logger)
	return NewAdapter(breaker, cfg.AI.Timeout, logger)
}
