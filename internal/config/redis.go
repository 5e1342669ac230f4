package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/agora/pkg/log"
)

type RedisConfig struct {
	URL     string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	Channel string `env:"REDIS_CHANNEL" envDefault:"agora:rounds"`
}

func NewRedisConfig(ctx context.Context) *RedisConfig {
	c := &RedisConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Redis config")
	}
	return c
}
