package services

import (
	"fmt"
	"log/slog"

	"github.com/jwebster45206/tabletop-session/internal/config"
)

// NewNarrativeServiceFromConfig picks the client named by
// cfg.NarrativeProvider.
func NewNarrativeServiceFromConfig(cfg *config.Config, logger *slog.Logger) (NarrativeService, error) {
	switch cfg.NarrativeProvider {
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key is required when using anthropic provider")
		}
		logger.Info("Using Anthropic narrative provider", "model_name", cfg.ModelName)
		return NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, cfg.NarrativeTimeout, logger), nil
	case config.ProviderHTTP:
		logger.Info("Using HTTP narrative provider", "url", cfg.NarrativeURL)
		return NewHTTPNarrativeService(cfg.NarrativeURL, cfg.NarrativeTimeout, logger), nil
	default:
		return nil, fmt.Errorf("invalid narrative provider %q (supported: http, anthropic)", cfg.NarrativeProvider)
	}
}
