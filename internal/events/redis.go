package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/pkg/log"
)

// RedisBus carries round notifications between processes over a pub/sub
// channel, so an API process sees rounds committed by the debate process.
type RedisBus struct {
	rdb     *goredis.Client
	channel string
}

func NewRedisBus(ctx context.Context, url, channel string) (*RedisBus, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{rdb: rdb, channel: channel}, nil
}

func (b *RedisBus) Publish(ctx context.Context, ev core.RoundCommitted) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, fn func(core.RoundCommitted)) error {
	if fn == nil {
		return errors.New("subscriber callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				ev, err := decode(m.Payload)
				if err != nil {
					log.FromCtx(ctx).Warn().Err(err).Msg("bad round event payload")
					continue
				}
				fn(ev)
			}
		}
	}()

	return nil
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

func decode(payload string) (core.RoundCommitted, error) {
	var ev core.RoundCommitted
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return core.RoundCommitted{}, err
	}
	if ev.RoundNum < 1 {
		return core.RoundCommitted{}, fmt.Errorf("invalid round %d", ev.RoundNum)
	}
	return ev, nil
}
