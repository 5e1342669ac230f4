package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/agora/internal/config"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/pkg/log"
	"github.com/sandevgo/agora/pkg/retry"
)

// NewProvider creates the AIProvider serving one thinker.
func NewProvider(spec config.ThinkerSpec, cfg *config.ThinkersConfig) (core.AIProvider, error) {
	requireKey := func(key, name string) error {
		if key == "" {
			return fmt.Errorf("thinker %s: %s is not set", spec.Name, name)
		}
		return nil
	}

	switch spec.Provider {
	case "openai":
		if err := requireKey(cfg.OpenAIAPIKey, "OPENAI_API_KEY"); err != nil {
			return nil, err
		}
		return NewOpenAI(cfg.OpenAIAPIKey, spec.Model), nil
	case "anthropic":
		if err := requireKey(cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY"); err != nil {
			return nil, err
		}
		return NewAnthropic(cfg.AnthropicAPIKey, spec.Model), nil
	case "openrouter":
		if err := requireKey(cfg.OpenRouterAPIKey, "OPENROUTER_API_KEY"); err != nil {
			return nil, err
		}
		return NewOpenRouter(cfg.OpenRouterAPIKey, spec.Model), nil
	case "ollama":
		return NewOllama(cfg.OllamaBaseURL, cfg.OllamaAPIKey, spec.Model), nil
	case "custom":
		if err := requireKey(cfg.CustomOpenAIBaseURL, "CUSTOM_OPENAI_BASE_URL"); err != nil {
			return nil, err
		}
		return NewCustomOpenAI(cfg.CustomOpenAIBaseURL, cfg.CustomOpenAIAPIKey, spec.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", spec.Provider)
	}
}

// NewThinkers builds the debate participants and the optional moderator.
// The moderator is nil when none is configured.
func NewThinkers(ctx context.Context, cfg *config.ThinkersConfig, personasDir string) ([]core.Thinker, core.Thinker, error) {
	specs, err := cfg.Specs()
	if err != nil {
		return nil, nil, err
	}

	retryCfg := retry.NewDefaultConfig()
	retryCfg.MaxRetries = cfg.MaxRetries

	thinkers := make([]core.Thinker, 0, len(specs))
	for _, spec := range specs {
		provider, err := NewProvider(spec, cfg)
		if err != nil {
			return nil, nil, err
		}
		persona, err := LoadPersona(personasDir, spec.Name)
		if err != nil {
			return nil, nil, err
		}

		log.FromCtx(ctx).Info().
			Str("thinker", spec.Name).
			Str("provider", spec.Provider).
			Str("model", spec.Model).
			Msg("thinker ready")

		thinkers = append(thinkers, NewThinker(spec.Name, persona, provider, retry.NewRetrier(retryCfg)))
	}

	spec, ok, err := cfg.ModeratorSpec()
	if err != nil || !ok {
		return thinkers, nil, err
	}
	provider, err := NewProvider(spec, cfg)
	if err != nil {
		return nil, nil, err
	}
	persona, err := LoadModeratorPersona(personasDir, spec.Name)
	if err != nil {
		return nil, nil, err
	}
	return thinkers, NewThinker(spec.Name, persona, provider, retry.NewRetrier(retryCfg)), nil
}
