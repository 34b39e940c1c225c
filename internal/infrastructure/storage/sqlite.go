package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"MarketMonitor/internal/domain"
	"MarketMonitor/internal/ports"
)

// SQLiteStore is the default file-backed dedupe store.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.FilingStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database file and ensures the
// schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY under the one-writer pipeline.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.ensureTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS processed_filings (
			accession_number TEXT PRIMARY KEY,
			cik              TEXT,
			form_type        TEXT,
			filing_date      TEXT,
			processed_at     TEXT
		);
		CREATE TABLE IF NOT EXISTS alerts_sent (
			accession_number TEXT PRIMARY KEY,
			sent_at          TEXT,
			impact_level     TEXT,
			meta             TEXT
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}
	return nil
}

// IsProcessed reports whether a processed record exists for the filing.
func (s *SQLiteStore) IsProcessed(ctx context.Context, accessionNumber string) (bool, error) {
	query, args, err := sq.Select("1").
		From("processed_filings").
		Where(sq.Eq{"accession_number": accessionNumber}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts the processed record; repeats are silent no-ops.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, accessionNumber, cik, formType, filingDate string) error {
	query, args, err := sq.Insert("processed_filings").
		Options("OR IGNORE").
		Columns("accession_number", "cik", "form_type", "filing_date", "processed_at").
		Values(accessionNumber, cik, formType, filingDate, time.Now().UTC().Format(time.RFC3339)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert processed %s: %w", accessionNumber, err)
	}
	return nil
}

// HasAlert reports whether an alert record exists for the filing.
func (s *SQLiteStore) HasAlert(ctx context.Context, accessionNumber string) (bool, error) {
	query, args, err := sq.Select("1").
		From("alerts_sent").
		Where(sq.Eq{"accession_number": accessionNumber}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query alerts: %w", err)
	}
	return true, nil
}

// MarkAlertSent inserts the alert record; repeats are silent no-ops.
func (s *SQLiteStore) MarkAlertSent(ctx context.Context, accessionNumber string, level domain.ImpactLevel, meta map[string]string) error {
	blob, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	query, args, err := sq.Insert("alerts_sent").
		Options("OR IGNORE").
		Columns("accession_number", "sent_at", "impact_level", "meta").
		Values(accessionNumber, time.Now().UTC().Format(time.RFC3339), string(level), string(blob)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert alert %s: %w", accessionNumber, err)
	}
	return nil
}

// Close releases the underlying database. Safe to call multiple times.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
