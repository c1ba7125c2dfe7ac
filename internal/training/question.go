// Package training scores quiz submissions and maintains the per-subject validity window.
package training

import (
	"slices"
	"strings"
)

// Kind is the type of a question.
type Kind string

const (
	KindFillInBlank    Kind = "fill_in_the_blank"
	KindMultipleChoice Kind = "multiple_choice"
	KindSubjective     Kind = "subjective"
)

// Question is one scorable item of the bank.
type Question interface {
	ID() string
	Kind() Kind
	Prompt() string
	// Asset is an optional illustration reference, empty when there is none.
	Asset() string
	// Score returns 1 for a matching answer and 0 otherwise. An unanswered question
	// never matches.
	Score(answer string, answered bool) int
}

type base struct {
	id     string
	prompt string
	asset  string
}

func (b base) ID() string     { return b.id }
func (b base) Prompt() string { return b.prompt }
func (b base) Asset() string  { return b.asset }

// FillInBlank matches the canonical answer exactly, case included.
type FillInBlank struct {
	base
	answer string
}

func (FillInBlank) Kind() Kind { return KindFillInBlank }

func (q FillInBlank) Score(answer string, answered bool) int {
	if answered && answer == q.answer {
		return 1
	}
	return 0
}

// MultipleChoice matches when the selected option is one of the offered options and
// equals the canonical one.
type MultipleChoice struct {
	base
	options []string
	answer  string
}

func (MultipleChoice) Kind() Kind { return KindMultipleChoice }

// Options returns the offered options in display order.
func (q MultipleChoice) Options() []string {
	return slices.Clone(q.options)
}

func (q MultipleChoice) Score(answer string, answered bool) int {
	if !answered || !slices.Contains(q.options, answer) {
		return 0
	}
	if answer == q.answer {
		return 1
	}
	return 0
}

// KeywordCoverage awards the point when at least half of the keywords appear in the
// lower-cased free-text answer. The half is compared as a real number, so with five
// keywords three hits are needed.
type KeywordCoverage struct {
	base
	keywords []string
}

func (KeywordCoverage) Kind() Kind { return KindSubjective }

// Keywords returns the lower-cased keyword set.
func (q KeywordCoverage) Keywords() []string {
	return slices.Clone(q.keywords)
}

func (q KeywordCoverage) Score(answer string, answered bool) int {
	if !answered {
		return 0
	}
	text := strings.ToLower(answer)
	var hits int
	for _, kw := range q.keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	// hits >= len/2 without rounding
	if 2*hits >= len(q.keywords) {
		return 1
	}
	return 0
}
