package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sandevgo/agora/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan core.RoundCommitted) core.RoundCommitted {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for round event")
		return core.RoundCommitted{}
	}
}

func TestLocalBus_FanOut(t *testing.T) {
	ctx := context.Background()
	bus := NewLocalBus()
	defer bus.Close()

	a, b := make(chan core.RoundCommitted, 1), make(chan core.RoundCommitted, 1)
	require.NoError(t, bus.Subscribe(ctx, func(ev core.RoundCommitted) { a <- ev }))
	require.NoError(t, bus.Subscribe(ctx, func(ev core.RoundCommitted) { b <- ev }))

	require.NoError(t, bus.Publish(ctx, core.RoundCommitted{RoundNum: 3, Messages: 2}))
	assert.Equal(t, 3, receive(t, a).RoundNum)
	assert.Equal(t, 2, receive(t, b).Messages)
}

func TestLocalBus_UnsubscribeOnCancel(t *testing.T) {
	bus := NewLocalBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, bus.Subscribe(ctx, func(core.RoundCommitted) {}))
	cancel()

	assert.Eventually(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return len(bus.subs) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestLocalBus_Closed(t *testing.T) {
	ctx := context.Background()
	bus := NewLocalBus()
	require.NoError(t, bus.Subscribe(ctx, func(core.RoundCommitted) {}))
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(ctx, core.RoundCommitted{RoundNum: 1}), ErrClosed)
	assert.ErrorIs(t, bus.Subscribe(ctx, func(core.RoundCommitted) {}), ErrClosed)
}

func TestDecode(t *testing.T) {
	ev, err := decode(`{"round_num":4,"messages":3,"resolved":["p1"]}`)
	require.NoError(t, err)
	assert.Equal(t, core.RoundCommitted{RoundNum: 4, Messages: 3, Resolved: []string{"p1"}}, ev)

	_, err = decode(`{"round_num":0}`)
	assert.Error(t, err)
	_, err = decode(`not json`)
	assert.Error(t, err)
}

func TestRedisBus(t *testing.T) {
	url := os.Getenv("AGORA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("AGORA_TEST_REDIS_URL not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, err := NewRedisBus(ctx, url, "agora:test:"+t.Name())
	require.NoError(t, err)
	defer bus.Close()

	got := make(chan core.RoundCommitted, 1)
	require.NoError(t, bus.Subscribe(ctx, func(ev core.RoundCommitted) { got <- ev }))
	require.NoError(t, bus.Publish(ctx, core.RoundCommitted{RoundNum: 7}))
	assert.Equal(t, 7, receive(t, got).RoundNum)
}
