package training

import (
	"strings"

	"github.com/celerix-dev/labcheck/pkg/schema"
)

type Verdict = schema.Verdict

const (
	VerdictPass = schema.VerdictPass
	VerdictFail = schema.VerdictFail
)

// Evaluate scores the answers, keyed by question id, against the questions.
// Missing or blank answers count as non-matches.
func Evaluate(answers map[string]string, questions []Question) (score, total int) {
	for _, q := range questions {
		ans, ok := answers[q.ID()]
		answered := ok && strings.TrimSpace(ans) != ""
		score += q.Score(ans, answered)
	}
	return score, len(questions)
}

// Grade passes a submission scoring at least 80% of the total.
func Grade(score, total int) Verdict {
	// score >= total*0.8, kept in integers to stay exact
	if 5*score >= 4*total {
		return VerdictPass
	}
	return VerdictFail
}
