package llm

import (
	"context"
	"errors"

	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/pkg/conv"
	"github.com/sandevgo/agora/pkg/log"
	"github.com/sandevgo/agora/pkg/retry"
)

var errEmptyReply = errors.New("empty reply")

// Thinker adapts a chat backend to a debate participant with a persona.
type Thinker struct {
	name     string
	persona  string
	provider core.AIProvider
	retrier  *retry.Retrier
}

func NewThinker(name, persona string, provider core.AIProvider, retrier *retry.Retrier) *Thinker {
	if retrier == nil {
		retrier = retry.NewDefaultRetrier()
	}
	return &Thinker{
		name:     name,
		persona:  persona,
		provider: provider,
		retrier:  retrier,
	}
}

func (t *Thinker) Name() string {
	return t.name
}

// Respond retries transient backend failures until ctx expires. Client
// errors are not retried.
func (t *Thinker) Respond(ctx context.Context, prompt string) (string, error) {
	op := "thinker " + t.name

	history := make([]core.ChatMessage, 0, 2)
	if t.persona != "" {
		history = append(history, core.ChatMessage{Role: core.RoleSystem, Content: t.persona})
	}
	history = append(history, core.ChatMessage{Role: core.RoleUser, Content: prompt})

	var text string
	err := t.retrier.Do(ctx, func() error {
		reply, err := t.provider.Chat(ctx, history)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(err)
			}
			var se *StatusError
			if errors.As(err, &se) && !se.Retryable() {
				return retry.Permanent(err)
			}
			log.FromCtx(ctx).Debug().Err(err).Str("thinker", t.name).Msg("chat attempt failed")
			return err
		}

		text = conv.NormalizeText(reply.Content)
		if text == "" {
			return errEmptyReply
		}
		return nil
	})

	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "", core.Timeout(op, err)
	default:
		return "", core.Backend(op, err)
	}
}
