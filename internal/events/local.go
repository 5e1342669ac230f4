package events

import (
	"context"
	"errors"
	"sync"

	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/pkg/log"
)

const subscriberBuffer = 16

var ErrClosed = errors.New("event bus closed")

type subscriber struct {
	ch   chan core.RoundCommitted
	done chan struct{}
}

// LocalBus delivers round notifications inside the process. Each subscriber
// has its own buffer, a slow one misses events instead of stalling the
// publisher.
type LocalBus struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
	wg     sync.WaitGroup
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[*subscriber]struct{})}
}

func (b *LocalBus) Publish(ctx context.Context, ev core.RoundCommitted) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			log.FromCtx(ctx).Warn().Int("round", ev.RoundNum).Msg("subscriber buffer full, dropping round event")
		}
	}
	return nil
}

// Subscribe calls fn for every published event until ctx is done or the bus
// is closed.
func (b *LocalBus) Subscribe(ctx context.Context, fn func(core.RoundCommitted)) error {
	if fn == nil {
		return errors.New("subscriber callback required")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	s := &subscriber{
		ch:   make(chan core.RoundCommitted, subscriberBuffer),
		done: make(chan struct{}),
	}
	b.subs[s] = struct{}{}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		defer b.remove(s)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case ev := <-s.ch:
				fn(ev)
			}
		}
	}()
	return nil
}

func (b *LocalBus) remove(s *subscriber) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for s := range b.subs {
		close(s.done)
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
