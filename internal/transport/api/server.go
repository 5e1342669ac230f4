package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/sandevgo/agora/internal/agora"
	"github.com/sandevgo/agora/internal/config"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/pkg/log"
)

// Server exposes the read API over HTTP and a push WebSocket.
type Server struct {
	app *fiber.App
	cfg *config.ServerConfig
	svc *agora.Service
	bus core.EventBus

	// ctx carries the logger and ends open WebSocket sessions on shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(ctx context.Context, cfg *config.ServerConfig, svc *agora.Service, bus core.EventBus) *Server {
	ctx, cancel := context.WithCancel(ctx)
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		bus:    bus,
		ctx:    ctx,
		cancel: cancel,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               core.AgoraName,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)
	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)
	s.app.Get("/debug", s.debug)
	s.app.Get("/discussion/nodes", s.listNodes)
	s.app.Get("/discussion/nodes/:id/history", s.nodeHistory)
	s.app.Get("/agora", s.agora)
	s.app.Get("/ws/agora", s.upgradeOnly, websocket.New(s.handleWebSocket))
}

// App is exposed for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.cfg.Addr).Msg("http api listening")
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusOf(err)
	}

	log.FromCtx(s.ctx).Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("took", time.Since(start)).
		Msg("http request")
	return err
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func statusOf(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, core.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, core.ErrInvalidArgument), errors.Is(err, core.ErrInvalidRound):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func kindOf(err error) string {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return "http"
	}
	return core.KindOf(err)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	if status >= fiber.StatusInternalServerError {
		log.FromCtx(s.ctx).Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"error": errorBody{Kind: kindOf(err), Message: err.Error()},
	})
}
