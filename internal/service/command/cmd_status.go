package command

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sandevgo/agora/internal/agora"
)

type StatusCommand struct {
	svc       *agora.Service
	formatter *ResponseFormatter
}

func NewStatusCommand(svc *agora.Service) *StatusCommand {
	return &StatusCommand{svc: svc, formatter: NewResponseFormatter()}
}

func (c *StatusCommand) Name() string {
	return "status"
}

func (c *StatusCommand) Description() string {
	return "Show debate progress"
}

func (c *StatusCommand) Execute(ctx context.Context, _ []string) (string, error) {
	info, err := c.svc.Debug(ctx)
	if err != nil {
		return "", err
	}

	messages, failures := 0, 0
	for _, n := range info.MessagesPerRound {
		messages += n
	}
	for _, n := range info.FailuresPerRound {
		failures += n
	}

	return c.formatter.Combine(
		c.formatter.Info("Debate Status"),
		c.formatter.Label("Round", fmt.Sprintf("%d / %d", info.LatestRound, info.MaxRounds))+
			c.formatter.Label("Points", fmt.Sprintf("%d (%d resolved)", info.Points, info.Resolved))+
			c.formatter.Label("Messages", strconv.Itoa(messages))+
			c.formatter.Label("Failed calls", strconv.Itoa(failures)),
	), nil
}
