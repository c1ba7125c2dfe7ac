package engine

import (
	"fmt"

	"github.com/celerix-dev/labcheck/pkg/schema"
	"github.com/rs/zerolog/log"
)

// Migrate copies every record of src into dst. Records of dst whose subject is not in
// src are kept. This works for:
// - Workbook -> SQLite (the upgrade)
// - SQLite -> Workbook (the export for spreadsheet users)
func Migrate(src, dst RecordStore) error {
	incoming, err := src.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to read source records: %w", err)
	}
	existing, err := dst.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to read destination records: %w", err)
	}

	pos := make(map[string]int, len(existing))
	merged := make([]schema.TrainingRecord, 0, len(existing)+len(incoming))
	for _, r := range existing {
		pos[r.Subject] = len(merged)
		merged = append(merged, r)
	}
	var replaced int
	for _, r := range incoming {
		if i, ok := pos[r.Subject]; ok {
			merged[i] = r
			replaced++
			continue
		}
		pos[r.Subject] = len(merged)
		merged = append(merged, r)
	}

	if err := dst.SaveAll(merged); err != nil {
		return fmt.Errorf("failed to write destination records: %w", err)
	}
	log.Info().
		Int("copied", len(incoming)).
		Int("replaced", replaced).
		Int("total", len(merged)).
		Msg("records migrated")
	return nil
}
