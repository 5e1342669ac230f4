package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/pkg/conv"
)

const formatHTML = "html"

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}

func (s *Server) debug(c *fiber.Ctx) error {
	info, err := s.svc.Debug(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(info)
}

func (s *Server) listNodes(c *fiber.Ctx) error {
	round, err := optionalInt(c, "round_num")
	if err != nil {
		return err
	}

	points, err := s.svc.ListPoints(c.UserContext(), round)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"nodes": points})
}

func (s *Server) nodeHistory(c *fiber.Ctx) error {
	page, size, err := s.pageParams(c)
	if err != nil {
		return err
	}

	res, err := s.svc.PointHistory(c.UserContext(), c.Params("id"), page, size)
	if err != nil {
		return err
	}
	res.Messages = render(res.Messages, c.Query("format"))
	return c.JSON(res)
}

func (s *Server) agora(c *fiber.Ctx) error {
	page, size, err := s.pageParams(c)
	if err != nil {
		return err
	}
	round, err := optionalInt(c, "round_num")
	if err != nil {
		return err
	}

	res, err := s.svc.Agora(c.UserContext(), round, page, size)
	if err != nil {
		return err
	}
	res.Messages = render(res.Messages, c.Query("format"))
	return c.JSON(res)
}

func (s *Server) pageParams(c *fiber.Ctx) (int, int, error) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	size, err := intQuery(c, "page_size", s.cfg.DefaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	return page, size, nil
}

func intQuery(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.InvalidArgument("parse query", "%s must be an integer, got %q", key, raw)
	}
	return n, nil
}

func optionalInt(c *fiber.Ctx, key string) (*int, error) {
	if c.Query(key) == "" {
		return nil, nil
	}
	n, err := intQuery(c, key, 0)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// render returns a copy of msgs with markdown content turned into HTML when
// format asks for it.
func render(msgs []core.Message, format string) []core.Message {
	if format != formatHTML {
		return msgs
	}
	out := make([]core.Message, len(msgs))
	for i, m := range msgs {
		m.Content = conv.MarkdownToHTML([]byte(m.Content))
		out[i] = m
	}
	return out
}
