package core

import "context"

// RoundLog is the append-only durable log of committed rounds.
type RoundLog interface {
	AppendRound(ctx context.Context, rec RoundRecord) error
	LoadRounds(ctx context.Context) ([]RoundRecord, error)
	LatestRound(ctx context.Context) (int, error)
}

// MemoryStore archives MemoryRecords by point id. Get returns ErrNotFound
// for points without a record.
type MemoryStore interface {
	Get(ctx context.Context, pointID string) (MemoryRecord, error)
	Put(ctx context.Context, pointID string, rec MemoryRecord) error
}

// RoundCommitted is published after a round becomes visible to readers.
type RoundCommitted struct {
	RoundNum int      `json:"round_num"`
	Messages int      `json:"messages"`
	Failures int      `json:"failures"`
	Resolved []string `json:"resolved,omitempty"`
	Created  []string `json:"created,omitempty"`
}

// EventBus fans round commit notifications out to subscribers.
type EventBus interface {
	Publish(ctx context.Context, ev RoundCommitted) error
	Subscribe(ctx context.Context, fn func(RoundCommitted)) error
	Close() error
}
