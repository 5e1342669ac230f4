package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sandevgo/agora/internal/agora"
)

const historyPageSize = 5

type HistoryCommand struct {
	svc       *agora.Service
	formatter *ResponseFormatter
}

func NewHistoryCommand(svc *agora.Service) *HistoryCommand {
	return &HistoryCommand{svc: svc, formatter: NewResponseFormatter()}
}

func (c *HistoryCommand) Name() string {
	return "history"
}

func (c *HistoryCommand) Description() string {
	return "Show messages of a point by its number in /points"
}

func (c *HistoryCommand) Execute(ctx context.Context, args []string) (string, error) {
	usage := c.formatter.Usage("/history <point number> [page]")
	if len(args) == 0 {
		return usage, nil
	}

	idx, err := strconv.Atoi(args[0])
	if err != nil || idx < 1 {
		return usage, nil
	}
	page := 1
	if len(args) > 1 {
		if page, err = strconv.Atoi(args[1]); err != nil {
			return usage, nil
		}
	}

	points, err := c.svc.ListPoints(ctx, nil)
	if err != nil {
		return "", err
	}
	if idx > len(points) {
		return "", fmt.Errorf("there are only %d points", len(points))
	}
	point := points[idx-1]

	res, err := c.svc.PointHistory(ctx, point.ID, page, historyPageSize)
	if err != nil {
		return "", err
	}

	sections := []string{c.formatter.Info(point.Content)}
	for _, m := range res.Messages {
		sections = append(sections, c.formatter.Quote(fmt.Sprintf("%s · round %d · %s", m.Model, m.RoundNum, m.Stance), m.Content))
	}
	sections = append(sections, fmt.Sprintf("_page %d of %d_", res.Pagination.Page, max(res.Pagination.TotalPages, 1)))
	return c.formatter.Combine(sections...), nil
}
