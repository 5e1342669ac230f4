package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/agora/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"AGORA_RUNTIME_PATH" envDefault:".agora"`
	// Thesis seeds the first point when there is no debate to resume.
	Thesis string `env:"AGORA_THESIS" envDefault:"Can AI create its own religion?"`

	// Transport Flags
	EnableHTTP     bool `env:"ENABLE_HTTP" envDefault:"true"`
	EnableTelegram bool `env:"ENABLE_TELEGRAM" envDefault:"false"`
	EnableRedis    bool `env:"ENABLE_REDIS" envDefault:"false"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	c.RuntimePath = resolveRuntimePath(c.RuntimePath)
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "agora.db")
}

func (c AppConfig) GetPersonasPath() string {
	return filepath.Join(c.RuntimePath, "personas")
}

func (c AppConfig) GetEnvPath() string {
	return filepath.Join(c.RuntimePath, ".env")
}
