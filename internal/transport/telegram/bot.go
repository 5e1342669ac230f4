package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/agora/internal/agora"
	"github.com/sandevgo/agora/internal/config"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/service/command"
	"github.com/sandevgo/agora/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

// Bot answers read commands from the owner and posts a digest of every
// committed round to the configured chat.
type Bot struct {
	bot    *tele.Bot
	cfg    *config.TelegramConfig
	router *command.Router
	digest *Digest
	bus    core.EventBus
	sender *sender
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	svc *agora.Service,
	bus core.EventBus,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:    b,
		cfg:    cfg,
		router: command.New(command.NewCommands(svc)),
		digest: NewDigest(svc),
		bus:    bus,
		sender: newSender(b),
	}

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Middleware: Only allow the owner
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Sender().ID != cfg.OwnerID {
				return nil // Ignore unauthorized users
			}
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Int64("chat", b.cfg.ChatID).Msg("starting telegram bot")

	if b.bus != nil {
		if err := b.bus.Subscribe(ctx, func(ev core.RoundCommitted) { b.announce(ctx, ev) }); err != nil {
			return fmt.Errorf("failed to subscribe to rounds: %w", err)
		}
	}

	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) announce(ctx context.Context, ev core.RoundCommitted) {
	logger := log.FromCtx(ctx)

	md, err := b.digest.Render(ctx, ev)
	if err != nil {
		logger.Error().Err(err).Int("round", ev.RoundNum).Msg("failed to render round digest")
		return
	}
	if err := b.sender.sendMarkdown(ctx, tele.ChatID(b.cfg.ChatID), md, true); err != nil {
		logger.Error().Err(err).Int("round", ev.RoundNum).Msg("failed to announce round")
	}
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)

	out, ok := b.router.Execute(ctx, c.Text())
	if !ok {
		out, _ = b.router.Execute(ctx, "/help")
	}
	return b.sender.sendMarkdown(ctx, c.Chat(), out, false)
}
