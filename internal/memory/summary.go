package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/agora/internal/core"
)

// Summarizer folds each round's messages into a rolling summary: one line per
// message holding its opening sentence. Oldest lines are dropped once the
// summary exceeds the budget.
type Summarizer struct {
	budget  int
	counter Counter
}

func NewSummarizer(budget int, counter Counter) *Summarizer {
	if counter == nil {
		counter = CharCounter{}
	}
	return &Summarizer{budget: budget, counter: counter}
}

// Next returns the record that follows prev after round. Only messages of
// that round are folded in, so replaying a round never duplicates lines.
func (s *Summarizer) Next(prev core.MemoryRecord, pointID string, round int, messages []core.Message, window []int64, now time.Time) core.MemoryRecord {
	var lines []string
	if prev.Summary != "" {
		lines = strings.Split(prev.Summary, "\n")
	}

	for _, m := range messages {
		if m.RoundNum != round {
			continue
		}
		gist := FirstSentence(m.Content)
		if gist == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- r%d %s (%s): %s", round, m.Model, m.Stance, gist))
	}

	lines = s.fit(lines)

	return core.MemoryRecord{
		PointID:      pointID,
		Version:      prev.Version + 1,
		Summary:      strings.Join(lines, "\n"),
		WindowSeqs:   window,
		UpdatedRound: round,
		UpdatedAt:    now,
	}
}

func (s *Summarizer) fit(lines []string) []string {
	if s.budget <= 0 {
		return lines
	}
	total := 0
	for _, l := range lines {
		total += s.counter.Count(l) + 1
	}
	for len(lines) > 0 && total > s.budget {
		total -= s.counter.Count(lines[0]) + 1
		lines = lines[1:]
	}
	return lines
}
