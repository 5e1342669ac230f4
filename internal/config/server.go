package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/agora/pkg/log"
)

type ServerConfig struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8000"`
	DefaultPageSize int           `env:"DEFAULT_PAGE_SIZE" envDefault:"20"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func NewServerConfig(ctx context.Context) *ServerConfig {
	c := &ServerConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Server config")
	}
	return c
}
