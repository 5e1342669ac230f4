package memory

import (
	"fmt"
	"strings"

	"github.com/sandevgo/agora/internal/core"
)

// PromptContext is everything a thinker sees about one point. Window holds
// the selected messages, most recent first.
type PromptContext struct {
	PointID  string
	Point    string
	RoundNum int
	Window   []core.Message
	Summary  string
	Used     int
	Unit     string
}

type Builder struct {
	window  int
	budget  int
	counter Counter
}

// NewBuilder keeps at most window messages whose rendered size stays within
// budget units of counter. A budget <= 0 disables the bound.
func NewBuilder(window, budget int, counter Counter) *Builder {
	if counter == nil {
		counter = CharCounter{}
	}
	return &Builder{window: window, budget: budget, counter: counter}
}

// BuildContext assembles the context for point from its log (oldest first)
// and memory record. When the window is over budget the oldest messages are
// dropped whole.
func (b *Builder) BuildContext(point core.DiscussionPoint, messages []core.Message, rec core.MemoryRecord, round int) PromptContext {
	pc := PromptContext{
		PointID:  point.ID,
		Point:    point.Content,
		RoundNum: round,
		Summary:  rec.Summary,
		Unit:     b.counter.Unit(),
	}

	start := 0
	if b.window > 0 && len(messages) > b.window {
		start = len(messages) - b.window
	}
	recent := messages[start:]

	for i := len(recent) - 1; i >= 0; i-- {
		n := b.counter.Count(windowLine(recent[i]))
		if b.budget > 0 && pc.Used+n > b.budget {
			break
		}
		pc.Used += n
		pc.Window = append(pc.Window, recent[i])
	}

	return pc
}

// Seqs returns the sequence numbers of the window, most recent first.
func (pc PromptContext) Seqs() []int64 {
	out := make([]int64, len(pc.Window))
	for i, m := range pc.Window {
		out[i] = m.Seq
	}
	return out
}

// Prompt renders the user turn sent to every thinker for this point.
func (pc PromptContext) Prompt() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### Discussion point (round %d)\n%s\n", pc.RoundNum, pc.Point)

	if pc.Summary != "" {
		sb.WriteString("\n### Summary of earlier rounds\n")
		sb.WriteString(pc.Summary)
		sb.WriteString("\n")
	}

	if len(pc.Window) > 0 {
		sb.WriteString("\n### Latest contributions (most recent first)\n")
		for _, m := range pc.Window {
			sb.WriteString(windowLine(m))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n### Your turn\n")
	sb.WriteString("Start with a clear position (I agree / I disagree / I propose), then argue it. ")
	sb.WriteString("If the point raises a deeper question worth its own debate, state it as a single sentence ending with '?'.\n")

	return sb.String()
}

func windowLine(m core.Message) string {
	return fmt.Sprintf("- [%s, round %d] %s", m.Model, m.RoundNum, m.Content)
}
