package orchestrator

import (
	"regexp"

	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/memory"
)

// Classifier decides the stance of a response toward the point it answers.
type Classifier interface {
	Classify(point, response string) core.Stance
}

var (
	agreeMarkers = regexp.MustCompile(`(?i)\b(i agree|agreed|i concur|i support|i accept|indeed|exactly|absolutely|you are right|that is right|well said)\b`)

	disagreeMarkers = regexp.MustCompile(`(?i)\b(i disagree|disagree|i object|i reject|i doubt|i am not convinced|i'm not convinced|on the contrary|not true|that is wrong|i challenge|i dispute)\b`)
)

// MarkerClassifier scores explicit position markers. Markers in the opening
// sentence count twice; the higher score wins and ties are neutral.
type MarkerClassifier struct{}

func (MarkerClassifier) Classify(_ string, response string) core.Stance {
	opening := memory.FirstSentence(response)

	agree := len(agreeMarkers.FindAllStringIndex(response, -1)) +
		len(agreeMarkers.FindAllStringIndex(opening, -1))
	disagree := len(disagreeMarkers.FindAllStringIndex(response, -1)) +
		len(disagreeMarkers.FindAllStringIndex(opening, -1))

	switch {
	case agree > disagree:
		return core.StanceAgree
	case disagree > agree:
		return core.StanceDisagree
	default:
		return core.StanceNeutral
	}
}
