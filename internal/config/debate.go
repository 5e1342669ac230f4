package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/agora/pkg/log"
)

type DebateConfig struct {
	MaxRounds           int           `env:"MAX_ROUNDS" envDefault:"10"`
	PointsPerRound      int           `env:"POINTS_PER_ROUND" envDefault:"1"`
	MaxBranchesPerRound int           `env:"MAX_BRANCHES_PER_ROUND" envDefault:"1"`
	ThinkerTimeout      time.Duration `env:"THINKER_TIMEOUT" envDefault:"90s"`
	CommitTimeout       time.Duration `env:"COMMIT_TIMEOUT" envDefault:"30s"`
	RoundInterval       time.Duration `env:"ROUND_INTERVAL" envDefault:"0s"`

	// Resolution
	ResolveMinResponses int     `env:"RESOLVE_MIN_RESPONSES" envDefault:"3"`
	ResolveThreshold    float64 `env:"RESOLVE_THRESHOLD" envDefault:"0.7"`
	MaxPointRounds      int     `env:"MAX_POINT_ROUNDS" envDefault:"5"`

	// Memory
	MessageMaxChars   int    `env:"MESSAGE_MAX_CHARS" envDefault:"8000"`
	MemoryWindow      int    `env:"MEMORY_WINDOW" envDefault:"6"`
	ContextBudget     int    `env:"CONTEXT_BUDGET" envDefault:"4000"`
	ContextBudgetUnit string `env:"CONTEXT_BUDGET_UNIT" envDefault:"chars"`
	SummaryBudget     int    `env:"SUMMARY_BUDGET" envDefault:"2000"`
}

func NewDebateConfig(ctx context.Context) *DebateConfig {
	c, err := ParseDebateConfig()
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Debate config")
	}
	return c
}

func ParseDebateConfig() (*DebateConfig, error) {
	c := &DebateConfig{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *DebateConfig) Validate() error {
	switch {
	case c.MaxRounds < 1:
		return fmt.Errorf("MAX_ROUNDS must be positive, got %d", c.MaxRounds)
	case c.PointsPerRound < 1:
		return fmt.Errorf("POINTS_PER_ROUND must be positive, got %d", c.PointsPerRound)
	case c.MaxBranchesPerRound < 0:
		return fmt.Errorf("MAX_BRANCHES_PER_ROUND must not be negative, got %d", c.MaxBranchesPerRound)
	case c.ThinkerTimeout <= 0:
		return fmt.Errorf("THINKER_TIMEOUT must be positive, got %s", c.ThinkerTimeout)
	case c.CommitTimeout <= 0:
		return fmt.Errorf("COMMIT_TIMEOUT must be positive, got %s", c.CommitTimeout)
	case c.ResolveThreshold <= 0 || c.ResolveThreshold > 1:
		return fmt.Errorf("RESOLVE_THRESHOLD must be in (0, 1], got %v", c.ResolveThreshold)
	case c.MaxPointRounds < 1:
		return fmt.Errorf("MAX_POINT_ROUNDS must be positive, got %d", c.MaxPointRounds)
	case c.MessageMaxChars < 1:
		return fmt.Errorf("MESSAGE_MAX_CHARS must be positive, got %d", c.MessageMaxChars)
	case c.MemoryWindow < 0:
		return fmt.Errorf("MEMORY_WINDOW must not be negative, got %d", c.MemoryWindow)
	case c.ContextBudget < 1 || c.SummaryBudget < 1:
		return fmt.Errorf("CONTEXT_BUDGET and SUMMARY_BUDGET must be positive")
	}
	return nil
}
