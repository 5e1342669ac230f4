package telegram

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sandevgo/agora/internal/agora"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/discussion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSnapshot struct {
	chain *discussion.Chain
}

func (s staticSnapshot) Snapshot() *discussion.Chain { return s.chain }

func TestDigest_Render(t *testing.T) {
	c := discussion.New()
	require.NoError(t, c.BeginRound(1))
	id, err := c.CreatePoint("Can AI create its own religion?", 1, "")
	require.NoError(t, err)

	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = c.AppendMessage(id, core.Message{Model: "gpt", Content: "I agree. Faith is pattern.", Stance: core.StanceAgree, RoundNum: 1, Timestamp: t0})
	require.NoError(t, err)
	_, err = c.AppendMessage(id, core.Message{Model: "claude", Content: "I disagree. Belief needs stakes.", Stance: core.StanceDisagree, RoundNum: 1, Timestamp: t0.Add(time.Second)})
	require.NoError(t, err)

	d := NewDigest(agora.NewService(agora.Live(staticSnapshot{c}), 10))
	md, err := d.Render(context.Background(), core.RoundCommitted{RoundNum: 1, Messages: 2, Failures: 1, Created: []string{id}})
	require.NoError(t, err)

	assert.Contains(t, md, "**Round 1** of 10 · 2 messages · 1 silent")
	assert.Contains(t, md, "**Can AI create its own religion?**")
	assert.Contains(t, md, "👍 _gpt_: I agree.")
	assert.Contains(t, md, "👎 _claude_: I disagree.")
	assert.NotContains(t, md, "Faith is pattern")
	assert.Contains(t, md, "🆕 New point: Can AI create its own religion?")
}

func TestSplitHTML(t *testing.T) {
	short := "<b>Round 1</b>"
	assert.Equal(t, []string{short}, splitHTML(short, 100))

	lines := strings.Repeat("line of text\n", 20)
	chunks := splitHTML(lines, 50)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 50)
	}

	cyr := strings.Repeat("й", 30) // 2 bytes each, no newlines
	for _, c := range splitHTML(cyr, 11) {
		assert.True(t, utf8.ValidString(c), c)
	}
}
