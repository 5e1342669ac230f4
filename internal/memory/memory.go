package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/pkg/log"
)

// Memory assembles per-point prompt context and keeps memory records current.
type Memory struct {
	store      core.MemoryStore
	builder    *Builder
	summarizer *Summarizer
}

func NewMemory(store core.MemoryStore, builder *Builder, summarizer *Summarizer) *Memory {
	return &Memory{
		store:      store,
		builder:    builder,
		summarizer: summarizer,
	}
}

// Context builds the prompt context for point. A point that already has
// messages but no memory record is logged and gets an empty summary.
func (m *Memory) Context(ctx context.Context, point core.DiscussionPoint, messages []core.Message, round int) PromptContext {
	rec := m.record(ctx, point.ID, len(messages) > 0)
	return m.builder.BuildContext(point, messages, rec, round)
}

// Update writes the next memory record for point after round committed.
func (m *Memory) Update(ctx context.Context, point core.DiscussionPoint, messages []core.Message, round int) error {
	prev := m.record(ctx, point.ID, false)
	window := m.builder.BuildContext(point, messages, prev, round).Seqs()
	next := m.summarizer.Next(prev, point.ID, round, messages, window, time.Now().UTC())

	if err := m.store.Put(ctx, point.ID, next); err != nil {
		return fmt.Errorf("failed to put memory record for %s: %w", point.ID, err)
	}
	return nil
}

func (m *Memory) record(ctx context.Context, pointID string, expected bool) core.MemoryRecord {
	logger := log.FromCtx(ctx)

	rec, err := m.store.Get(ctx, pointID)
	switch {
	case err == nil:
		return rec
	case errors.Is(err, core.ErrNotFound):
		if expected {
			logger.Error().Str("point_id", pointID).Msg("memory record missing for live point")
		}
	default:
		logger.Warn().Err(err).Str("point_id", pointID).Msg("failed to load memory record")
	}
	return core.MemoryRecord{PointID: pointID}
}
