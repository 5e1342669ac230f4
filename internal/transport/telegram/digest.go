package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/agora/internal/agora"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/memory"
)

var stanceIcon = map[core.Stance]string{
	core.StanceAgree:    "👍",
	core.StanceDisagree: "👎",
	core.StanceNeutral:  "🤔",
}

// Digest renders a committed round as markdown, one opening sentence per
// message.
type Digest struct {
	svc *agora.Service
}

func NewDigest(svc *agora.Service) *Digest {
	return &Digest{svc: svc}
}

func (d *Digest) Render(ctx context.Context, ev core.RoundCommitted) (string, error) {
	round := ev.RoundNum
	page, err := d.svc.Agora(ctx, &round, 1, core.MaxPageSize)
	if err != nil {
		return "", err
	}

	points, err := d.svc.ListPoints(ctx, nil)
	if err != nil {
		return "", err
	}
	content := make(map[string]string, len(points))
	for _, p := range points {
		content[p.ID] = p.Content
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🏛 **Round %d** of %d · %d messages", round, page.DebugInfo.MaxRounds, ev.Messages)
	if ev.Failures > 0 {
		fmt.Fprintf(&sb, " · %d silent", ev.Failures)
	}
	sb.WriteString("\n")

	current := ""
	for _, m := range page.Messages {
		if m.PointID != current {
			current = m.PointID
			fmt.Fprintf(&sb, "\n**%s**\n", content[m.PointID])
		}
		fmt.Fprintf(&sb, "%s _%s_: %s\n", stanceIcon[m.Stance], m.Model, memory.FirstSentence(m.Content))
	}

	for _, id := range ev.Resolved {
		fmt.Fprintf(&sb, "\n✅ Resolved: %s\n", content[id])
	}
	for _, id := range ev.Created {
		fmt.Fprintf(&sb, "\n🆕 New point: %s\n", content[id])
	}
	return sb.String(), nil
}
