package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vincent-yangyijie/triz-agent/internal/config"
)

// Engine is the generation client used by the pipeline: one configured
// provider, one blocking completion per Generate call. Failures come back as
// text, never as an error, so callers can store and show them like any reply.
//
// An Engine belongs to a single session and is not safe for concurrent use.
type Engine struct {
	resolve     config.Resolver
	systemRole  string
	temperature float64
	logger      *slog.Logger

	cfg      config.ProviderConfig
	provider Provider
}

type EngineOption func(*Engine)

func WithSystemRole(role string) EngineOption {
	return func(e *Engine) {
		if role != "" {
			e.systemRole = role
		}
	}
}

func WithTemperature(t float64) EngineOption {
	return func(e *Engine) { e.temperature = t }
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine resolves and configures provider immediately, so a bad provider
// name or a missing key fails here rather than on the first Generate.
func NewEngine(resolve config.Resolver, provider string, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		resolve:     resolve,
		systemRole:  config.DefaultSystemRole,
		temperature: config.DefaultTemperature,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Configure(provider); err != nil {
		return nil, err
	}
	return e, nil
}

// Configure switches to provider. On error the previous configuration stays
// in effect untouched.
func (e *Engine) Configure(provider string) error {
	cfg, err := e.resolve(provider)
	if err != nil {
		return err
	}

	p, err := NewProvider(cfg)
	if err != nil {
		return err
	}

	e.cfg = cfg
	e.provider = p
	e.logger.Info("provider configured", "provider", cfg.Provider, "model", cfg.Model)
	return nil
}

// Provider returns the configured provider id.
func (e *Engine) Provider() string {
	return e.cfg.Provider
}

// Model returns the configured model id.
func (e *Engine) Model() string {
	return e.cfg.Model
}

// Ping checks that the configured endpoint is reachable and accepts the key.
func (e *Engine) Ping(ctx context.Context) error {
	return e.provider.Ping(ctx)
}

// Generate sends prompt as the user message with systemRole (or the default
// role when empty) and returns the reply. Any failure is returned as
// "Error calling <provider>: <detail>". There is exactly one attempt.
func (e *Engine) Generate(ctx context.Context, prompt, systemRole string) string {
	if systemRole == "" {
		systemRole = e.systemRole
	}

	start := time.Now()
	req := NewRequest(e.cfg.Model, systemRole, prompt, e.temperature)
	resp, err := e.provider.Complete(ctx, req)
	if err != nil {
		e.logger.Warn("generation failed",
			"provider", e.cfg.Provider,
			"duration", time.Since(start),
			"error", err)
		return fmt.Sprintf("Error calling %s: %v", e.cfg.Provider, err)
	}

	e.logger.Debug("generation completed",
		"provider", e.cfg.Provider,
		"model", resp.Model,
		"duration", time.Since(start),
		"total_tokens", resp.Usage.TotalTokens)
	return resp.Content
}
