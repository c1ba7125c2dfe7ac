package engine

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/celerix-dev/labcheck/pkg/schema"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// TimeLayout is the cell format of the time column.
const TimeLayout = "2006-01-02 15:04:05"

const recordsSheet = "Sheet1"

var workbookColumns = []string{"name", "department", "score", "time", "valid_days", "status"}

// WorkbookStore keeps the records in a single-sheet .xlsx workbook, one row per subject.
type WorkbookStore struct {
	Path string
	// Location is the zone of the wall-clock time cells. Defaults to time.Local.
	Location *time.Location
	mu       sync.Mutex // Protects concurrent writes to the filesystem
}

// NewWorkbookStore initializes a workbook store, creating its directory.
func NewWorkbookStore(path string) (*WorkbookStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, unavailable("failed to create data directory", err)
	}
	return &WorkbookStore{Path: path, Location: time.Local}, nil
}

func (w *WorkbookStore) location() *time.Location {
	if w.Location == nil {
		return time.Local
	}
	return w.Location
}

// LoadAll reads every row. A missing workbook loads as an empty set and blank rows are
// ignored. Any other row that cannot be parsed fails the load with ErrStoreUnavailable,
// since the next SaveAll would otherwise drop it. The status column is ignored and
// derived again from valid_days.
func (w *WorkbookStore) LoadAll() ([]schema.TrainingRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := excelize.OpenFile(w.Path)
	if errors.Is(err, os.ErrNotExist) {
		return []schema.TrainingRecord{}, nil
	}
	if err != nil {
		return nil, unavailable("failed to open workbook", err)
	}
	defer f.Close()

	// raw values keep date cells as serial numbers instead of their display format
	rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, unavailable("failed to read workbook", err)
	}
	if len(rows) == 0 {
		return []schema.TrainingRecord{}, nil
	}

	cols := headerIndex(rows[0])
	for _, c := range workbookColumns[:5] {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: workbook %s has no %q column", ErrStoreUnavailable, w.Path, c)
		}
	}

	loc := w.location()
	records := make([]schema.TrainingRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec, err := parseRow(row, cols, loc)
		if err != nil {
			log.Error().Err(err).Str("file", w.Path).Int("row", i+2).Msg("unreadable record row")
			return nil, fmt.Errorf("%w: workbook %s row %d: %w", ErrStoreUnavailable, w.Path, i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// SaveAll writes the set to a temporary workbook in the same directory and renames it
// over Path.
func (w *WorkbookStore) SaveAll(records []schema.TrainingRecord) error {
	if err := checkRecords(records); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	loc := w.location()
	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, len(workbookColumns))
	for i, c := range workbookColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(recordsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range records {
		r = r.WithStatus()
		row := []any{
			r.Subject,
			r.Department,
			r.LastScore,
			r.LastEvaluatedAt.In(loc).Format(TimeLayout),
			r.RemainingDays,
			string(r.Status),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(recordsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write record %s: %w", r.Subject, err)
		}
	}

	// 1. Write to a temporary file in the same directory
	tmp, err := os.CreateTemp(filepath.Dir(w.Path), ".records-*.xlsx")
	if err != nil {
		return unavailable("failed to create temporary workbook", err)
	}
	tmpPath := tmp.Name()
	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return unavailable("failed to write workbook", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return unavailable("failed to write workbook", err)
	}

	// 2. Atomic rename: readers see either the old workbook or the new one
	if err := os.Rename(tmpPath, w.Path); err != nil {
		os.Remove(tmpPath)
		return unavailable("failed to replace workbook", err)
	}
	return nil
}

func (w *WorkbookStore) Close() error {
	return nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cellAt(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseRow(row []string, cols map[string]int, loc *time.Location) (schema.TrainingRecord, error) {
	rec := schema.TrainingRecord{
		Subject:    cellAt(row, cols, "name"),
		Department: cellAt(row, cols, "department"),
	}
	if rec.Subject == "" {
		return rec, errors.New("empty name")
	}
	var err error
	if rec.LastScore, err = parseWhole(cellAt(row, cols, "score")); err != nil {
		return rec, fmt.Errorf("invalid score: %w", err)
	}
	if rec.RemainingDays, err = parseWhole(cellAt(row, cols, "valid_days")); err != nil {
		return rec, fmt.Errorf("invalid valid_days: %w", err)
	}
	if rec.LastEvaluatedAt, err = parseTime(cellAt(row, cols, "time"), loc); err != nil {
		return rec, err
	}
	return rec.WithStatus(), nil
}

// parseWhole accepts integers and integral floats such as "365.0", which pandas writes
// for numeric columns that once held a missing value.
func parseWhole(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole number: %q", s)
	}
	return int(f), nil
}

var timeLayouts = []string{TimeLayout, "2006-01-02T15:04:05", "2006-01-02"}

// parseTime reads a wall-clock time in loc, an RFC 3339 time, or an Excel date serial.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && !math.IsInf(serial, 0) {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			t = t.Round(time.Second)
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}
