package llm

import (
	"fmt"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
)

// NewProvider creates a provider from a resolved provider config
func NewProvider(cfg config.ProviderConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s requires an API key", cfg.Provider)
	}

	switch cfg.Provider {
	case "deepseek":
		return NewDeepSeekProvider(cfg.BaseURL, cfg.APIKey, cfg.Model), nil

	case "kimi":
		return NewKimiProvider(cfg.BaseURL, cfg.APIKey, cfg.Model), nil

	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownProvider, cfg.Provider)
	}
}
