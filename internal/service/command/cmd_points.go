package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sandevgo/agora/internal/agora"
	"github.com/sandevgo/agora/internal/core"
)

type PointsCommand struct {
	svc       *agora.Service
	formatter *ResponseFormatter
}

func NewPointsCommand(svc *agora.Service) *PointsCommand {
	return &PointsCommand{svc: svc, formatter: NewResponseFormatter()}
}

func (c *PointsCommand) Name() string {
	return "points"
}

func (c *PointsCommand) Description() string {
	return "List discussion points, optionally of one round"
}

func (c *PointsCommand) Execute(ctx context.Context, args []string) (string, error) {
	var round *int
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return c.formatter.Usage("/points [round]"), nil
		}
		round = &n
	}

	points, err := c.svc.ListPoints(ctx, round)
	if err != nil {
		return "", err
	}
	if len(points) == 0 {
		return c.formatter.Info("No points yet"), nil
	}

	items := make([]string, 0, len(points))
	for i, p := range points {
		mark := "💬"
		if p.Status == core.StatusResolved {
			mark = "✅"
		}
		items = append(items, fmt.Sprintf("%d. %s %s  (+%d / -%d, %d msgs)", i+1, mark, p.Content, p.Agreements, p.Disagreements, p.Messages))
	}
	return c.formatter.Combine(c.formatter.Info("Discussion Points"), c.formatter.List(items)), nil
}
