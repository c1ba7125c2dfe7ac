package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

// ErrBankMissing is returned when the configured question bank file does not exist.
var ErrBankMissing = errors.New("question bank not found")

// QuestionSpec is the serialized form of a question.
type QuestionSpec struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Prompt   string   `json:"prompt"`
	Answer   string   `json:"answer,omitempty"`
	Options  []string `json:"options,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Image    string   `json:"image,omitempty"`
}

// Build validates s and returns the matching Question.
func (s QuestionSpec) Build() (Question, error) {
	if s.ID == "" {
		return nil, errors.New("question id cannot be empty")
	}
	b := base{id: s.ID, prompt: s.Prompt, asset: s.Image}
	switch s.Kind {
	case KindFillInBlank:
		if s.Answer == "" {
			return nil, fmt.Errorf("question %s: missing answer", s.ID)
		}
		return FillInBlank{base: b, answer: s.Answer}, nil
	case KindMultipleChoice:
		if len(s.Options) == 0 {
			return nil, fmt.Errorf("question %s: no options", s.ID)
		}
		if !slices.Contains(s.Options, s.Answer) {
			return nil, fmt.Errorf("question %s: answer %q is not one of the options", s.ID, s.Answer)
		}
		return MultipleChoice{base: b, options: slices.Clone(s.Options), answer: s.Answer}, nil
	case KindSubjective:
		if len(s.Keywords) == 0 {
			return nil, fmt.Errorf("question %s: no keywords", s.ID)
		}
		kws := make([]string, len(s.Keywords))
		for i, k := range s.Keywords {
			if strings.TrimSpace(k) == "" {
				return nil, fmt.Errorf("question %s: empty keyword", s.ID)
			}
			kws[i] = strings.ToLower(k)
		}
		return KeywordCoverage{base: b, keywords: kws}, nil
	default:
		return nil, fmt.Errorf("question %s: unknown kind %q", s.ID, s.Kind)
	}
}

// Bank is the ordered, static set of questions of the exam.
type Bank struct {
	questions []Question
}

// NewBank builds a bank from specs. Question ids must be unique.
func NewBank(specs []QuestionSpec) (*Bank, error) {
	if len(specs) == 0 {
		return nil, errors.New("question bank is empty")
	}
	seen := make(map[string]struct{}, len(specs))
	qs := make([]Question, 0, len(specs))
	for _, s := range specs {
		if _, ok := seen[s.ID]; ok {
			return nil, fmt.Errorf("duplicate question id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		q, err := s.Build()
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return &Bank{questions: qs}, nil
}

// LoadBank reads a JSON array of QuestionSpec.
func LoadBank(path string) (*Bank, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBankMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	var specs []QuestionSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse question bank %s: %w", path, err)
	}
	return NewBank(specs)
}

// Questions returns the questions in exam order.
func (b *Bank) Questions() []Question {
	return append([]Question(nil), b.questions...)
}

// Len returns the number of questions.
func (b *Bank) Len() int {
	return len(b.questions)
}

// PublicQuestion is a question as shown to the examinee, without its solution.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Kind    Kind     `json:"kind"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Image   string   `json:"image,omitempty"`
}

// Public returns the bank stripped of answers and keywords.
func (b *Bank) Public() []PublicQuestion {
	out := make([]PublicQuestion, len(b.questions))
	for i, q := range b.questions {
		pq := PublicQuestion{ID: q.ID(), Kind: q.Kind(), Prompt: q.Prompt(), Image: q.Asset()}
		if mc, ok := q.(MultipleChoice); ok {
			pq.Options = mc.Options()
		}
		out[i] = pq
	}
	return out
}

// DefaultBank returns the lab HSE level 3 exam.
func DefaultBank() *Bank {
	b, err := NewBank(defaultSpecs)
	if err != nil {
		panic(err)
	}
	return b
}

var defaultSpecs = []QuestionSpec{
	{
		ID:     "emergency-call",
		Kind:   KindFillInBlank,
		Prompt: "Emergency Call(紧急电话) example xxxx-xxxx",
		Answer: "6767-6119",
	},
	{
		ID:     "first-aid-call",
		Kind:   KindFillInBlank,
		Prompt: "First aid call(急救电话) example xxxx-xxxx",
		Answer: "6767-6120",
	},
	{
		ID:      "drill-torque",
		Kind:    KindMultipleChoice,
		Prompt:  "手枪钻的推荐使用扭矩是多少?What's the Drill machine's reference torque?",
		Options: []string{"3~4", "5~6", "7~8", "9~10"},
		Answer:  "5~6",
	},
	{
		ID:      "ert-member",
		Kind:    KindMultipleChoice,
		Prompt:  "实验室ERT成员有哪些?Who is LAB ERT member?",
		Options: []string{"Li Yichang", "Jiao Haibin", "Tan Jiawei", "Wei Wei"},
		Answer:  "Jiao Haibin",
	},
	{
		ID:      "near-miss-efms",
		Kind:    KindMultipleChoice,
		Prompt:  "Near miss是否可以通过eFMS上报?Whether Near miss can report through eFMS?",
		Options: []string{"Yes", "No"},
		Answer:  "Yes",
	},
	{
		ID:      "electrical-risk",
		Kind:    KindMultipleChoice,
		Prompt:  "下图是否存在电气安全风险?Whether the below picture has the electrical risk?",
		Options: []string{"Yes", "No"},
		Answer:  "Yes",
		Image:   "1.jpg",
	},
	{
		ID:       "first-aid-vs-injury",
		Kind:     KindSubjective,
		Prompt:   "列出急救事故和伤害事故的区别List the distinguish between First Aid and Injury",
		Keywords: []string{"a", "b", "c", "d", "e"},
	},
	{
		ID:       "lab-hazards",
		Kind:     KindSubjective,
		Prompt:   "实验室有哪些危险源(列出至少3项)What are the lab hazards (List at least 3 items)",
		Keywords: []string{"a", "b", "c", "d", "e"},
	},
}
