package orchestrator

import (
	"testing"

	"github.com/sandevgo/agora/internal/core"
)

func TestMarkerClassifier(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     core.Stance
	}{
		{"explicit agreement", "I agree. Ritual is pattern, and machines are pattern.", core.StanceAgree},
		{"explicit disagreement", "I disagree. Faith requires mortality.", core.StanceDisagree},
		{"no markers", "It depends on how we define belief.", core.StanceNeutral},
		{"disagree is not agree", "I disagree with the premise.", core.StanceDisagree},
		{"opening sentence weighs double", "I disagree. Still, indeed, some ritual may emerge.", core.StanceDisagree},
		{"later markers outweigh a neutral opening", "Let me think. I agree. Indeed it is so.", core.StanceAgree},
		{"tie is neutral", "Partly. I agree on ritual. I disagree on faith.", core.StanceNeutral},
		{"case insensitive", "INDEED, that is the crux.", core.StanceAgree},
		{"substring does not match", "The agreement was disagreeable.", core.StanceNeutral},
	}

	var c MarkerClassifier
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify("point", tt.response); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.response, got, tt.want)
			}
		})
	}
}

func TestPolicy_ShouldResolve(t *testing.T) {
	p := DefaultPolicy()
	ongoing := func(agree int) core.DiscussionPoint {
		return core.DiscussionPoint{Status: core.StatusOngoing, Agreements: agree}
	}

	tests := []struct {
		name      string
		point     core.DiscussionPoint
		responses int
		rounds    int
		want      bool
	}{
		{"two of three is not consensus", ongoing(2), 3, 1, false},
		{"three of three", ongoing(3), 3, 1, true},
		{"too few responses", ongoing(2), 2, 1, false},
		{"exactly threshold is not above", ongoing(7), 10, 2, false},
		{"above threshold", ongoing(8), 10, 2, true},
		{"round cap", ongoing(0), 12, 5, true},
		{"no responses", ongoing(0), 0, 0, false},
		{"already resolved", core.DiscussionPoint{Status: core.StatusResolved, Agreements: 3}, 3, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldResolve(tt.point, tt.responses, tt.rounds); got != tt.want {
				t.Errorf("ShouldResolve() = %v, want %v", got, tt.want)
			}
		})
	}
}
