package engine

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/celerix-dev/labcheck/pkg/schema"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS training_records (
	subject       TEXT PRIMARY KEY,
	department    TEXT NOT NULL DEFAULT '',
	score         INTEGER NOT NULL,
	evaluated_at  TEXT NOT NULL,
	valid_days    INTEGER NOT NULL,
	status        TEXT NOT NULL,
	position      INTEGER NOT NULL
);
`

// SQLiteStore keeps the records in the training_records table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens a SQLite database and creates the table.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, unavailable("open db", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, unavailable("pragma", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, unavailable("migrate", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadAll() ([]schema.TrainingRecord, error) {
	rows, err := s.db.Query(
		`SELECT subject, department, score, evaluated_at, valid_days
		 FROM training_records ORDER BY position`,
	)
	if err != nil {
		return nil, unavailable("query records", err)
	}
	defer rows.Close()

	records := []schema.TrainingRecord{}
	for rows.Next() {
		var (
			rec schema.TrainingRecord
			at  string
		)
		if err := rows.Scan(&rec.Subject, &rec.Department, &rec.LastScore, &at, &rec.RemainingDays); err != nil {
			return nil, unavailable("scan record", err)
		}
		t, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("record %s: invalid evaluated_at %q: %w", rec.Subject, at, err)
		}
		rec.LastEvaluatedAt = t
		records = append(records, rec.WithStatus())
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate records", err)
	}
	return records, nil
}

// SaveAll replaces the table contents inside one transaction.
func (s *SQLiteStore) SaveAll(records []schema.TrainingRecord) error {
	if err := checkRecords(records); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM training_records`); err != nil {
		return unavailable("clear records", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO training_records
		 (subject, department, score, evaluated_at, valid_days, status, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return unavailable("prepare insert", err)
	}
	defer stmt.Close()

	for i, r := range records {
		r = r.WithStatus()
		_, err := stmt.Exec(
			r.Subject, r.Department, r.LastScore,
			r.LastEvaluatedAt.UTC().Format(time.RFC3339Nano),
			r.RemainingDays, string(r.Status), i,
		)
		if err != nil {
			return unavailable("insert record "+r.Subject, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
