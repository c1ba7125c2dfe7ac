package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/labcheck/internal/engine"
	"github.com/celerix-dev/labcheck/internal/roster"
	"github.com/celerix-dev/labcheck/pkg/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownSubject is returned when a roster is configured and does not list the subject.
	ErrUnknownSubject = errors.New("subject is not on the roster")
	// ErrInvalidSubmission is returned for submissions without a subject.
	ErrInvalidSubmission = errors.New("invalid submission")
)

type (
	Submission = schema.Submission
	Outcome    = schema.Outcome
)

// Directory resolves subjects to roster members.
type Directory interface {
	Lookup(name string) (roster.Member, bool)
}

// Notifier receives the lapse notices of a submission.
type Notifier interface {
	Notify(ctx context.Context, notices []schema.LapseNotice) error
}

// Tracker is the single writer of the record store.
type Tracker struct {
	mu       sync.Mutex
	store    engine.RecordStore
	bank     *Bank
	dir      Directory
	notifier Notifier
	now      func() time.Time
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithDirectory validates subjects against a roster and resolves notice e-mails.
func WithDirectory(d Directory) Option {
	return func(t *Tracker) { t.dir = d }
}

// WithNotifier sets the receiver of lapse notices.
func WithNotifier(n Notifier) Option {
	return func(t *Tracker) { t.notifier = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker over store scoring against bank.
func NewTracker(store engine.RecordStore, bank *Bank, opts ...Option) *Tracker {
	t := &Tracker{store: store, bank: bank, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Bank returns the question bank submissions are scored against.
func (t *Tracker) Bank() *Bank {
	return t.bank
}

// Submit scores the submission and applies it: the store is loaded, every record decays
// to now, the subject's record is replaced and the set is saved, all under one lock.
// Lapse notices are sent after the lock is released; a failed notification is logged
// and does not fail the submission.
func (t *Tracker) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	sub.Subject = strings.TrimSpace(sub.Subject)
	if sub.Subject == "" {
		return Outcome{}, fmt.Errorf("%w: subject cannot be empty", ErrInvalidSubmission)
	}
	if t.dir != nil {
		m, ok := t.dir.Lookup(sub.Subject)
		if !ok {
			return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownSubject, sub.Subject)
		}
		if sub.Department == "" {
			sub.Department = m.Department
		}
	}

	score, total := Evaluate(sub.Answers, t.bank.Questions())
	verdict := Grade(score, total)

	out, err := t.apply(sub, score, verdict)
	if err != nil {
		return Outcome{}, err
	}
	out.Total = total

	log.Info().
		Str("subject", sub.Subject).
		Int("score", score).
		Int("total", total).
		Str("verdict", string(verdict)).
		Int("validDays", out.Record.RemainingDays).
		Int("lapsed", len(out.Lapsed)).
		Msg("training submission recorded")

	if len(out.Lapsed) > 0 && t.notifier != nil {
		if err := t.notifier.Notify(ctx, out.Lapsed); err != nil {
			log.Error().Err(err).Int("notices", len(out.Lapsed)).Msg("failed to send lapse notices")
		}
	}
	return out, nil
}

func (t *Tracker) apply(sub Submission, score int, verdict Verdict) (Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	records, err := t.store.LoadAll()
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load records: %w", err)
	}
	now := t.now()

	before := make(map[string]schema.Status, len(records))
	for _, r := range records {
		before[r.Subject] = r.WithStatus().Status
	}

	records = RecomputeAll(records, now)
	idx := -1
	for i, r := range records {
		if r.Subject == sub.Subject {
			idx = i
			break
		}
	}
	var prior *schema.TrainingRecord
	if idx >= 0 {
		prior = &records[idx]
	}
	rec := NextValidity(prior, sub.Subject, sub.Department, score, verdict, now)
	if idx >= 0 {
		records[idx] = rec
	} else {
		records = append(records, rec)
	}

	if err := t.store.SaveAll(records); err != nil {
		return Outcome{}, fmt.Errorf("failed to save records: %w", err)
	}

	out := Outcome{Score: score, Verdict: verdict, Record: rec}
	for _, r := range records {
		prev, ok := before[r.Subject]
		if ok && prev == schema.StatusNormal && r.Status == schema.StatusWarning {
			out.Lapsed = append(out.Lapsed, t.notice(r, now))
		}
	}
	return out, nil
}

func (t *Tracker) notice(r schema.TrainingRecord, now time.Time) schema.LapseNotice {
	n := schema.LapseNotice{
		ID:            uuid.New().String(),
		Subject:       r.Subject,
		Department:    r.Department,
		RemainingDays: r.RemainingDays,
		At:            now,
	}
	if t.dir != nil {
		if m, ok := t.dir.Lookup(r.Subject); ok {
			n.Email = m.Email
		}
	}
	return n
}

// Records returns every record decayed to now. Nothing is written back.
func (t *Tracker) Records() ([]schema.TrainingRecord, error) {
	records, err := t.store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return RecomputeAll(records, t.now()), nil
}

// Record returns one subject's record decayed to now, or engine.ErrRecordNotFound.
func (t *Tracker) Record(subject string) (schema.TrainingRecord, error) {
	records, err := t.Records()
	if err != nil {
		return schema.TrainingRecord{}, err
	}
	return engine.Find(records, subject)
}

// Warnings returns the records in WARNING state as of now.
func (t *Tracker) Warnings() ([]schema.TrainingRecord, error) {
	records, err := t.Records()
	if err != nil {
		return nil, err
	}
	out := []schema.TrainingRecord{}
	for _, r := range records {
		if r.Status == schema.StatusWarning {
			out = append(out, r)
		}
	}
	return out, nil
}
