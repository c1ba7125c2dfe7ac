package training

import (
	"time"

	"github.com/celerix-dev/labcheck/pkg/schema"
)

const day = 24 * time.Hour

// GrantDays is the validity granted by a passed exam.
const GrantDays = schema.MaxValidityDays

func elapsedDays(from, now time.Time) int {
	d := now.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / day)
}

func clampDays(d int) int {
	return min(schema.MaxValidityDays, max(0, d))
}

// Decay deducts the whole days elapsed since the record's decay anchor and advances the
// anchor by the same number of days, so the fractional remainder carries over to the
// next recompute.
func Decay(rec schema.TrainingRecord, now time.Time) schema.TrainingRecord {
	days := elapsedDays(rec.LastEvaluatedAt, now)
	rec.RemainingDays = clampDays(rec.RemainingDays - days)
	if days > 0 {
		rec.LastEvaluatedAt = rec.LastEvaluatedAt.Add(time.Duration(days) * day)
	}
	return rec.WithStatus()
}

// RecomputeAll applies Decay to every record. It runs on every submission, for all
// subjects, as part of the same write.
func RecomputeAll(records []schema.TrainingRecord, now time.Time) []schema.TrainingRecord {
	out := make([]schema.TrainingRecord, len(records))
	for i, r := range records {
		out[i] = Decay(r, now)
	}
	return out
}

// NextValidity computes the subject's record after an evaluation at now. Without a prior
// record the window starts at GrantDays on PASS and 0 on FAIL; with one, the prior window
// first decays by the elapsed whole days and then receives the grant, capped at the
// maximum.
func NextValidity(
	prior *schema.TrainingRecord,
	subject, department string,
	score int,
	verdict Verdict,
	now time.Time,
) schema.TrainingRecord {
	grant := 0
	if verdict == VerdictPass {
		grant = GrantDays
	}
	if prior == nil {
		return schema.TrainingRecord{
			Subject:         subject,
			Department:      department,
			LastScore:       score,
			LastEvaluatedAt: now,
			RemainingDays:   grant,
		}.WithStatus()
	}
	next := Decay(*prior, now)
	next.RemainingDays = clampDays(next.RemainingDays + grant)
	next.LastScore = score
	next.LastEvaluatedAt = now
	if next.Department == "" {
		next.Department = department
	}
	return next.WithStatus()
}
