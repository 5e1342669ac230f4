package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/agora/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	recs   map[string]core.MemoryRecord
	getErr error
}

func newMapStore() *mapStore {
	return &mapStore{recs: make(map[string]core.MemoryRecord)}
}

func (s *mapStore) Get(_ context.Context, pointID string) (core.MemoryRecord, error) {
	if s.getErr != nil {
		return core.MemoryRecord{}, s.getErr
	}
	rec, ok := s.recs[pointID]
	if !ok {
		return core.MemoryRecord{}, core.NotFound("get memory", "point %s", pointID)
	}
	return rec, nil
}

func (s *mapStore) Put(_ context.Context, pointID string, rec core.MemoryRecord) error {
	s.recs[pointID] = rec
	return nil
}

func messages(n, round int) []core.Message {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]core.Message, n)
	for i := range out {
		out[i] = core.Message{
			Seq:       int64(i + 1),
			PointID:   "p1",
			Model:     "m",
			Content:   strings.Repeat("x", 10),
			Stance:    core.StanceNeutral,
			RoundNum:  round,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}

var testPoint = core.DiscussionPoint{ID: "p1", Content: "Can AI create its own religion?", RoundNum: 1}

func TestBuildContext_WindowMostRecentFirst(t *testing.T) {
	b := NewBuilder(3, 0, CharCounter{})
	pc := b.BuildContext(testPoint, messages(5, 1), core.MemoryRecord{Summary: "earlier"}, 2)

	assert.Equal(t, []int64{5, 4, 3}, pc.Seqs())
	assert.Equal(t, "earlier", pc.Summary)
	assert.Equal(t, 2, pc.RoundNum)
}

func TestBuildContext_BudgetDropsOldestWhole(t *testing.T) {
	msgs := messages(4, 1)
	line := CharCounter{}.Count(windowLine(msgs[0]))

	b := NewBuilder(10, 2*line+line/2, CharCounter{})
	pc := b.BuildContext(testPoint, msgs, core.MemoryRecord{}, 2)

	assert.Equal(t, []int64{4, 3}, pc.Seqs())
	assert.Equal(t, 2*line, pc.Used)
	for _, m := range pc.Window {
		assert.Equal(t, strings.Repeat("x", 10), m.Content)
	}
}

func TestBuildContext_Deterministic(t *testing.T) {
	b := NewBuilder(4, 200, CharCounter{})
	msgs := messages(6, 1)
	rec := core.MemoryRecord{Summary: "- r1 m (agree): yes."}

	first := b.BuildContext(testPoint, msgs, rec, 2)
	second := b.BuildContext(testPoint, msgs, rec, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, first.Prompt(), second.Prompt())
}

func TestPrompt_Sections(t *testing.T) {
	b := NewBuilder(2, 0, CharCounter{})
	pc := b.BuildContext(testPoint, messages(1, 1), core.MemoryRecord{Summary: "so far"}, 2)
	prompt := pc.Prompt()

	assert.Contains(t, prompt, "Can AI create its own religion?")
	assert.Contains(t, prompt, "### Summary of earlier rounds\nso far")
	assert.Contains(t, prompt, "[m, round 1]")
	assert.Contains(t, prompt, "I agree / I disagree / I propose")
}

func TestSummarizer_Next(t *testing.T) {
	s := NewSummarizer(0, CharCounter{})
	msgs := []core.Message{
		{Seq: 1, Model: "gpt", Stance: core.StanceAgree, RoundNum: 1, Content: "I agree. Machines can ritualize."},
		{Seq: 2, Model: "claude", Stance: core.StanceNeutral, RoundNum: 2, Content: "Perhaps. Faith needs doubt."},
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rec := s.Next(core.MemoryRecord{}, "p1", 1, msgs, []int64{1}, now)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, "- r1 gpt (agree): I agree.", rec.Summary)

	rec = s.Next(rec, "p1", 2, msgs, []int64{2, 1}, now)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, "- r1 gpt (agree): I agree.\n- r2 claude (neutral): Perhaps.", rec.Summary)
	assert.Equal(t, []int64{2, 1}, rec.WindowSeqs)
	assert.Equal(t, 2, rec.UpdatedRound)
}

func TestSummarizer_BudgetDropsOldestLines(t *testing.T) {
	s := NewSummarizer(50, CharCounter{})
	prev := core.MemoryRecord{Version: 3, Summary: "- r1 a (agree): first line here.\n- r2 b (agree): second."}
	msgs := []core.Message{{Model: "c", Stance: core.StanceDisagree, RoundNum: 3, Content: "No."}}

	rec := s.Next(prev, "p1", 3, msgs, nil, time.Time{})
	assert.Equal(t, "- r2 b (agree): second.\n- r3 c (disagree): No.", rec.Summary)
	assert.LessOrEqual(t, len(rec.Summary)+1, 50)
}

func TestMemory_ContextAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	m := NewMemory(store, NewBuilder(6, 0, CharCounter{}), NewSummarizer(0, CharCounter{}))

	// no record and no messages yet: empty summary
	pc := m.Context(ctx, testPoint, nil, 1)
	assert.Empty(t, pc.Summary)
	assert.Empty(t, pc.Window)

	msgs := messages(2, 1)
	msgs[0].Content = "I agree. More text."
	require.NoError(t, m.Update(ctx, testPoint, msgs, 1))

	rec := store.recs["p1"]
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, []int64{2, 1}, rec.WindowSeqs)

	pc = m.Context(ctx, testPoint, msgs, 2)
	assert.Equal(t, rec.Summary, pc.Summary)
}

func TestMemory_MissingRecordFallsBack(t *testing.T) {
	ctx := context.Background()
	store := newMapStore()
	store.getErr = errors.New("disk on fire")
	m := NewMemory(store, NewBuilder(6, 0, CharCounter{}), NewSummarizer(0, CharCounter{}))

	pc := m.Context(ctx, testPoint, messages(1, 1), 2)
	assert.Empty(t, pc.Summary)
	assert.Len(t, pc.Window, 1)

	store.getErr = nil
	pc = m.Context(ctx, testPoint, messages(1, 1), 2)
	assert.Empty(t, pc.Summary)
}

func TestSentences(t *testing.T) {
	text := "Is a ritual without belief empty? I think so.\n\nBut what of habit? - Can code pray?"
	assert.Equal(t, "Is a ritual without belief empty?", FirstSentence(text))
	assert.Equal(t, []string{
		"Is a ritual without belief empty?",
		"But what of habit?",
		"Can code pray?",
	}, Questions(text))
	assert.Empty(t, FirstSentence("   "))
}

func TestNewCounter(t *testing.T) {
	c, err := NewCounter("")
	require.NoError(t, err)
	assert.Equal(t, UnitChars, c.Unit())
	assert.Equal(t, 5, c.Count("héllo"))

	_, err = NewCounter("bytes")
	assert.Error(t, err)
}
