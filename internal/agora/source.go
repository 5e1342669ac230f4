package agora

import (
	"context"
	"fmt"
	"sync"

	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/discussion"
)

// Source hands out committed, read-only chain snapshots.
type Source interface {
	Snapshot(ctx context.Context) (*discussion.Chain, error)
}

// Snapshotter is implemented by the orchestrator.
type Snapshotter interface {
	Snapshot() *discussion.Chain
}

type liveSource struct {
	s Snapshotter
}

// Live serves snapshots straight from the process that runs the debate.
func Live(s Snapshotter) Source {
	return liveSource{s: s}
}

func (l liveSource) Snapshot(context.Context) (*discussion.Chain, error) {
	return l.s.Snapshot(), nil
}

// ReplaySource rebuilds the chain from the round log whenever a newer round
// has been committed. It serves readers running outside the debate process.
type ReplaySource struct {
	rounds core.RoundLog
	opts   []discussion.Option

	mu     sync.Mutex
	latest int
	chain  *discussion.Chain
}

func NewReplaySource(rounds core.RoundLog, opts ...discussion.Option) *ReplaySource {
	return &ReplaySource{
		rounds: rounds,
		opts:   opts,
		latest: -1,
	}
}

func (r *ReplaySource) Snapshot(ctx context.Context) (*discussion.Chain, error) {
	latest, err := r.rounds.LatestRound(ctx)
	if err != nil {
		return nil, core.Persistence("latest round", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if latest == r.latest && r.chain != nil {
		return r.chain, nil
	}

	recs, err := r.rounds.LoadRounds(ctx)
	if err != nil {
		return nil, core.Persistence("load rounds", err)
	}

	chain := discussion.New(r.opts...)
	for _, rec := range recs {
		if err := chain.Apply(rec); err != nil {
			return nil, fmt.Errorf("failed to replay round %d: %w", rec.RoundNum, err)
		}
	}

	r.chain = chain
	r.latest = chain.CurrentRound()
	return chain, nil
}
