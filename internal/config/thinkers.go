package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/agora/pkg/log"
)

// ThinkerSpec names one debate participant and the backend serving it.
type ThinkerSpec struct {
	Name     string
	Provider string
	Model    string
}

func (s ThinkerSpec) String() string {
	return s.Name + ":" + s.Provider + ":" + s.Model
}

type ThinkersConfig struct {
	// Thinkers is a list of name:provider:model entries. The model may
	// itself contain colons, e.g. ollama tags.
	Thinkers  []string `env:"THINKERS" envSeparator:"," envDefault:"gpt:openrouter:openai/gpt-4o-mini,claude:openrouter:anthropic/claude-3.5-haiku,gemini:openrouter:google/gemini-2.0-flash-001"`
	Moderator string   `env:"MODERATOR"`

	MaxRetries int `env:"THINKER_MAX_RETRIES" envDefault:"2"`

	// Providers
	OpenRouterAPIKey    string `env:"OPENROUTER_API_KEY"`
	OpenAIAPIKey        string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey     string `env:"ANTHROPIC_API_KEY"`
	OllamaBaseURL       string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaAPIKey        string `env:"OLLAMA_API_KEY"`
	CustomOpenAIBaseURL string `env:"CUSTOM_OPENAI_BASE_URL"`
	CustomOpenAIAPIKey  string `env:"CUSTOM_OPENAI_API_KEY"`
}

func NewThinkersConfig(ctx context.Context) *ThinkersConfig {
	c := &ThinkersConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Thinkers config")
	}
	return c
}

// Specs parses the THINKERS list. Names must be unique.
func (c *ThinkersConfig) Specs() ([]ThinkerSpec, error) {
	specs := make([]ThinkerSpec, 0, len(c.Thinkers))
	seen := make(map[string]struct{}, len(c.Thinkers))

	for _, raw := range c.Thinkers {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		spec, err := ParseThinkerSpec(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[spec.Name]; ok {
			return nil, fmt.Errorf("duplicate thinker name %q", spec.Name)
		}
		seen[spec.Name] = struct{}{}
		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("THINKERS must name at least one thinker")
	}
	return specs, nil
}

// ModeratorSpec returns the moderator entry, false when none is configured.
func (c *ThinkersConfig) ModeratorSpec() (ThinkerSpec, bool, error) {
	if strings.TrimSpace(c.Moderator) == "" {
		return ThinkerSpec{}, false, nil
	}
	spec, err := ParseThinkerSpec(c.Moderator)
	if err != nil {
		return ThinkerSpec{}, false, err
	}
	return spec, true, nil
}

func ParseThinkerSpec(raw string) (ThinkerSpec, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 3)
	if len(parts) != 3 {
		return ThinkerSpec{}, fmt.Errorf("invalid thinker %q, want name:provider:model", raw)
	}
	spec := ThinkerSpec{
		Name:     strings.TrimSpace(parts[0]),
		Provider: strings.ToLower(strings.TrimSpace(parts[1])),
		Model:    strings.TrimSpace(parts[2]),
	}
	if spec.Name == "" || spec.Provider == "" || spec.Model == "" {
		return ThinkerSpec{}, fmt.Errorf("invalid thinker %q, empty field", raw)
	}
	return spec, nil
}
