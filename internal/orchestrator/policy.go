package orchestrator

import "github.com/sandevgo/agora/internal/core"

// Policy decides when a point is settled.
type Policy struct {
	MinResponses   int
	Threshold      float64
	MaxPointRounds int
}

func DefaultPolicy() Policy {
	return Policy{
		MinResponses:   3,
		Threshold:      0.7,
		MaxPointRounds: 5,
	}
}

// ShouldResolve reports whether point resolves given the number of responses
// it has received overall and the number of rounds it has been discussed in.
// Consensus needs at least MinResponses and an agreement share strictly above
// Threshold.
func (p Policy) ShouldResolve(point core.DiscussionPoint, responses, rounds int) bool {
	if point.Status == core.StatusResolved {
		return false
	}
	if p.MaxPointRounds > 0 && rounds >= p.MaxPointRounds {
		return true
	}
	if responses < 1 || responses < p.MinResponses {
		return false
	}
	return float64(point.Agreements)/float64(responses) > p.Threshold
}
