package srv

import (
	"context"
	"time"

	"github.com/sandevgo/agora/pkg/log"
)

// DefaultGrace bounds how long ShutdownServices waits for all services.
const DefaultGrace = 30 * time.Second

type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

func StartServices(ctx context.Context, services []Service) {
	logger := log.FromCtx(ctx)
	for _, service := range services {
		go func(service Service) {
			if err := service.Start(ctx); err != nil {
				logger.Fatal().Err(err).Msgf("%T failed to start", service)
			}
		}(service)
	}
}

// ShutdownServices waits for ctx to end, then shuts services down in order
// on a fresh context bounded by grace.
func ShutdownServices(ctx context.Context, services []Service, grace time.Duration) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()

	for _, service := range services {
		if err := service.Shutdown(shutdownCtx); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msgf("%T failed to shutdown", service)
		}
	}
}
