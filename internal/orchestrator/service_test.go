package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/sandevgo/agora/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_RunsUntilMaxRounds(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRounds = 2
	env := newEnv(t, cfg, []core.Thinker{says("a", "Perhaps."), says("b", "Perhaps.")})
	r := NewRunner(env.orch, thesis)

	require.NoError(t, r.Start(context.Background()))

	latest, err := env.log.LatestRound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, latest)
	assert.NoError(t, r.Shutdown(context.Background()))
}

func TestRunner_ShutdownStopsDebate(t *testing.T) {
	block := &fakeThinker{name: "slow", respond: func(ctx context.Context, _ int) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	env := newEnv(t, testConfig(), []core.Thinker{block})
	r := NewRunner(env.orch, thesis)

	errc := make(chan error, 1)
	go func() { errc <- r.Start(context.Background()) }()

	require.Eventually(t, func() bool { return block.calls.Load() > 0 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	assert.NoError(t, <-errc)
	assert.Equal(t, StateStopped, env.orch.State())
}
