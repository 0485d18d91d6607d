package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrUnknownProvider = errors.New("unsupported provider")
	ErrMissingAPIKey   = errors.New("api key not found")
)

type ProviderInfo struct {
	ID           string
	Name         string
	Description  string
	BaseURL      string
	EnvKey       string
	SignupURL    string
	Models       []string
	DefaultModel string
}

var Providers = []ProviderInfo{
	{
		ID:           "deepseek",
		Name:         "DeepSeek",
		Description:  "deepseek-chat, strong reasoning",
		BaseURL:      "https://api.deepseek.com",
		EnvKey:       "DEEPSEEK_API_KEY",
		SignupURL:    "https://platform.deepseek.com/api_keys",
		Models:       []string{"deepseek-chat", "deepseek-reasoner"},
		DefaultModel: "deepseek-chat",
	},
	{
		ID:           "kimi",
		Name:         "Kimi",
		Description:  "Moonshot, long context",
		BaseURL:      "https://api.moonshot.cn/v1",
		EnvKey:       "KIMI_API_KEY",
		SignupURL:    "https://platform.moonshot.cn/console/api-keys",
		Models:       []string{"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k"},
		DefaultModel: "moonshot-v1-8k",
	},
}

// GetProvider looks up a provider by id, ignoring case.
func GetProvider(id string) *ProviderInfo {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range Providers {
		if p.ID == id {
			return &p
		}
	}
	return nil
}

// ProviderIDs lists the known provider ids in table order.
func ProviderIDs() []string {
	ids := make([]string, 0, len(Providers))
	for _, p := range Providers {
		ids = append(ids, p.ID)
	}
	return ids
}

// ProviderConfig is the resolved, immutable settings for one provider.
// Switching providers resolves a new value instead of mutating this one.
type ProviderConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// Resolver turns a provider name into a ProviderConfig.
type Resolver func(name string) (ProviderConfig, error)

// ResolveProvider builds the ProviderConfig for name from the provider table
// and the environment. The model override in cfg only applies when it is one
// of the provider's known models, so a DeepSeek model never leaks into a Kimi
// config after a switch.
func ResolveProvider(name string, cfg *Config) (ProviderConfig, error) {
	info := GetProvider(name)
	if info == nil {
		return ProviderConfig{}, fmt.Errorf("%w %q: choose one of %s",
			ErrUnknownProvider, name, strings.Join(ProviderIDs(), ", "))
	}

	apiKey := strings.TrimSpace(os.Getenv(info.EnvKey))
	if apiKey == "" {
		return ProviderConfig{}, fmt.Errorf("%w for %s: set %s", ErrMissingAPIKey, info.ID, info.EnvKey)
	}

	model := info.DefaultModel
	if cfg != nil && cfg.Model != "" && info.hasModel(cfg.Model) {
		model = cfg.Model
	}

	return ProviderConfig{
		Provider: info.ID,
		APIKey:   apiKey,
		BaseURL:  info.BaseURL,
		Model:    model,
	}, nil
}

// NewResolver binds ResolveProvider to cfg.
func NewResolver(cfg *Config) Resolver {
	return func(name string) (ProviderConfig, error) {
		return ResolveProvider(name, cfg)
	}
}

func (p ProviderInfo) hasModel(model string) bool {
	for _, m := range p.Models {
		if m == model {
			return true
		}
	}
	return false
}
