package ports

import (
	"context"
	"time"

	"MarketMonitor/internal/domain"
)

// FilingSource yields candidate filings for a registrant, newest first.
type FilingSource interface {
	FetchFilings(ctx context.Context, cik string) ([]domain.Filing, error)
}

// TextExtractor fetches a filing document and returns bounded plain text.
type TextExtractor interface {
	Extract(ctx context.Context, docURL string) (string, error)
}

// Classifier turns filing text into a structured impact judgement.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.ImpactAssessment, error)
}

// Notifier delivers a rendered alert to the configured recipients.
type Notifier interface {
	Send(ctx context.Context, subject, body string, recipients []string) error
}

// FilingStore is the durable write-once record of processed filings and sent
// alerts. Mark operations are idempotent inserts; a second call with the same
// accession number is a silent no-op.
type FilingStore interface {
	IsProcessed(ctx context.Context, accessionNumber string) (bool, error)
	MarkProcessed(ctx context.Context, accessionNumber, cik, formType, filingDate string) error
	HasAlert(ctx context.Context, accessionNumber string) (bool, error)
	MarkAlertSent(ctx context.Context, accessionNumber string, level domain.ImpactLevel, meta map[string]string) error
	Close() error
}

// Scheduler controls when poll passes execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
