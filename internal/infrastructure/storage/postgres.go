package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"MarketMonitor/internal/domain"
	"MarketMonitor/internal/ports"
)

// PostgresStore persists dedupe state in Postgres for deployments that
// outgrow the single SQLite file.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.FilingStore = (*PostgresStore)(nil)

// OpenPostgres connects using the DSN and ensures the schema exists.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
	if err := s.ensureTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS processed_filings (
			accession_number TEXT PRIMARY KEY,
			cik              TEXT,
			form_type        TEXT,
			filing_date      TEXT,
			processed_at     TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS alerts_sent (
			accession_number TEXT PRIMARY KEY,
			sent_at          TIMESTAMPTZ,
			impact_level     TEXT,
			meta             JSONB
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure tables: %w", err)
	}
	return nil
}

// IsProcessed reports whether a processed record exists for the filing.
func (s *PostgresStore) IsProcessed(ctx context.Context, accessionNumber string) (bool, error) {
	query, args, err := s.builder.Select("1").
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

// MarkProcessed inserts the processed record; the unique-constraint insert
// with DO NOTHING folds duplicates into the idempotent no-op path.
func (s *PostgresStore) MarkProcessed(ctx context.Context, accessionNumber, cik, formType, filingDate string) error {
	query, args, err := s.builder.Insert("processed_filings").
		Columns("accession_number", "cik", "form_type", "filing_date", "processed_at").
		Values(accessionNumber, cik, formType, filingDate, time.Now().UTC()).
		Suffix("ON CONFLICT (accession_number) DO NOTHING").
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
func (s *PostgresStore) HasAlert(ctx context.Context, accessionNumber string) (bool, error) {
	query, args, err := s.builder.Select("1").
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
func (s *PostgresStore) MarkAlertSent(ctx context.Context, accessionNumber string, level domain.ImpactLevel, meta map[string]string) error {
	blob, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	query, args, err := s.builder.Insert("alerts_sent").
		Columns("accession_number", "sent_at", "impact_level", "meta").
		Values(accessionNumber, time.Now().UTC(), string(level), string(blob)).
		Suffix("ON CONFLICT (accession_number) DO NOTHING").
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
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
