package command

import "github.com/sandevgo/agora/internal/agora"

func NewCommands(svc *agora.Service) []Command {
	return []Command{
		NewStatusCommand(svc),
		NewPointsCommand(svc),
		NewHistoryCommand(svc),
	}
}
