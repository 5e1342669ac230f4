package orchestrator

import (
	"context"
	"errors"
	"sync"
)

// Runner drives the debate as a long-running service.
type Runner struct {
	o      *Orchestrator
	thesis string

	once sync.Once
	done chan struct{}
}

func NewRunner(o *Orchestrator, thesis string) *Runner {
	return &Runner{
		o:      o,
		thesis: thesis,
		done:   make(chan struct{}),
	}
}

// Start replays the round log and runs rounds until the debate finishes.
// It blocks for the lifetime of the debate.
func (r *Runner) Start(ctx context.Context) error {
	defer r.once.Do(func() { close(r.done) })

	if err := r.o.Start(ctx, r.thesis); err != nil {
		// stopped before the debate got going
		if errors.Is(err, ErrStopped) || ctx.Err() != nil {
			return nil
		}
		return err
	}
	return r.o.Run(ctx)
}

// Shutdown stops the debate and waits for a commit in progress to finish.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.o.Stop()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
