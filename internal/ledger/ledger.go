// Package ledger records the outcome of every cleaned file in a SQLite
// database so a batch run can be audited afterwards.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"scanclean/internal/cleaning"
)

const schema = `
CREATE TABLE IF NOT EXISTS clean_files (
	"run_id" TEXT NOT NULL,
	"source" TEXT NOT NULL,
	"cleaned_csv" TEXT,
	"array_path" TEXT,
	"rows_in" INTEGER,
	"rows_out" INTEGER,
	"reference_triples" INTEGER,
	"repaired" INTEGER,
	"unresolved" INTEGER,
	"status" TEXT NOT NULL,
	"error" TEXT,
	"processed_at" TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS clean_stages (
	"run_id" TEXT NOT NULL,
	"source" TEXT NOT NULL,
	"stage" TEXT NOT NULL,
	"dropped" INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clean_files_run ON clean_files(run_id);
CREATE INDEX IF NOT EXISTS idx_clean_stages_run ON clean_stages(run_id, source);
`

// Status values stored in clean_files.status.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one file's outcome.
type Entry struct {
	Source      string
	CleanedCSV  string
	ArrayPath   string
	Stats       cleaning.Stats
	Err         error
	ProcessedAt time.Time
}

// FileRow is a clean_files row read back from the database.
type FileRow struct {
	RunID      string
	Source     string
	CleanedCSV string
	RowsIn     int
	RowsOut    int
	Repaired   int
	Unresolved int
	Status     string
	Error      string
}

// Ledger appends entries for one run.
type Ledger struct {
	db    *sql.DB
	runID string
	mu    sync.Mutex
}

// Open creates or opens the database at path and starts a new run.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger %s: %w", path, err)
	}
	return &Ledger{db: db, runID: uuid.NewString()}, nil
}

// RunID identifies the rows written by this Ledger.
func (l *Ledger) RunID() string { return l.runID }

// Record stores e and its per-stage drop counts in one transaction.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	status, errText := StatusOK, ""
	if e.Err != nil {
		status, errText = StatusFailed, e.Err.Error()
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO clean_files
		(run_id, source, cleaned_csv, array_path, rows_in, rows_out, reference_triples, repaired, unresolved, status, error, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.runID, e.Source, e.CleanedCSV, e.ArrayPath,
		e.Stats.RowsIn, e.Stats.RowsOut, e.Stats.ReferenceTriples,
		e.Stats.Repair.Repaired, e.Stats.Repair.Unresolved,
		status, errText, e.ProcessedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record %s: %w", e.Source, err)
	}
	if len(e.Stats.Stages) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO clean_stages (run_id, source, stage, dropped) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, s := range e.Stats.Stages {
			if _, err := stmt.ExecContext(ctx, l.runID, e.Source, s.Stage, s.Dropped); err != nil {
				return fmt.Errorf("record stage %s for %s: %w", s.Stage, e.Source, err)
			}
		}
	}
	return tx.Commit()
}

// Files returns this run's clean_files rows ordered by source.
func (l *Ledger) Files(ctx context.Context) ([]FileRow, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT run_id, source, COALESCE(cleaned_csv, ''), rows_in, rows_out, repaired, unresolved, status, COALESCE(error, '')
		FROM clean_files WHERE run_id = ? ORDER BY source`, l.runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FileRow
	for rows.Next() {
		var r FileRow
		if err := rows.Scan(&r.RunID, &r.Source, &r.CleanedCSV, &r.RowsIn, &r.RowsOut, &r.Repaired, &r.Unresolved, &r.Status, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StageDrops returns the per-stage drop counts recorded for source in this run.
func (l *Ledger) StageDrops(ctx context.Context, source string) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT stage, dropped FROM clean_stages WHERE run_id = ? AND source = ?`, l.runID, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, err
		}
		out[stage] = n
	}
	return out, rows.Err()
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}
