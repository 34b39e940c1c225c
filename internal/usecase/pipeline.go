package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"MarketMonitor/internal/alerting"
	"MarketMonitor/internal/domain"
	"MarketMonitor/internal/ports"
	"MarketMonitor/internal/prefilter"
)

// PipelineDeps wires all driven adapters into the monitoring pipeline.
type PipelineDeps struct {
	Source     ports.FilingSource
	Extractor  ports.TextExtractor
	Classifier ports.Classifier
	Notifier   ports.Notifier
	Store      ports.FilingStore
	Filter     *prefilter.Filter
	Thresholds prefilter.Thresholds
	Policy     alerting.Policy
	Companies  []domain.Company
	Recipients []string
	Logger     *slog.Logger
}

// Pipeline drives each tracked company's filings through fetch, filter,
// classification, alerting, and the dedupe store.
type Pipeline struct {
	source     ports.FilingSource
	extractor  ports.TextExtractor
	classifier ports.Classifier
	notifier   ports.Notifier
	store      ports.FilingStore
	filter     *prefilter.Filter
	thresholds prefilter.Thresholds
	policy     alerting.Policy
	companies  []domain.Company
	recipients []string
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:     deps.Source,
		extractor:  deps.Extractor,
		classifier: deps.Classifier,
		notifier:   deps.Notifier,
		store:      deps.Store,
		filter:     deps.Filter,
		thresholds: deps.Thresholds,
		policy:     deps.Policy,
		companies:  deps.Companies,
		recipients: deps.Recipients,
		logger:     deps.Logger,
	}
}

// RunOnce executes one poll pass over all tracked companies. A failure in one
// company is logged and never aborts the others; per-filing failures are data,
// not errors.
func (p *Pipeline) RunOnce(ctx context.Context) {
	for _, company := range p.companies {
		if err := p.ProcessCompany(ctx, company); err != nil {
			p.logger.Error("company processing failed",
				"symbol", company.Symbol, "cik", company.CIK, "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// ProcessCompany walks the company's filings newest to oldest, stopping at
// the first already-processed filing: the feed is ordered, so everything
// older is guaranteed already seen.
func (p *Pipeline) ProcessCompany(ctx context.Context, company domain.Company) error {
	log := p.logger.With("symbol", company.Symbol, "cik", company.CIK)
	log.Info("checking filings")

	filings, err := p.source.FetchFilings(ctx, company.CIK)
	if err != nil {
		return fmt.Errorf("fetch filings: %w", err)
	}

	for _, filing := range filings {
		processed, err := p.store.IsProcessed(ctx, filing.AccessionNumber)
		if err != nil {
			return fmt.Errorf("check processed %s: %w", filing.AccessionNumber, err)
		}
		if processed {
			log.Debug("already processed, stopping scan", "accession", filing.AccessionNumber)
			break
		}

		if err := p.processFiling(ctx, log, company, filing); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return nil
}

// processFiling runs one filing through the stage sequence. Only storage
// failures propagate; every per-stage failure resolves to skip-and-retry or
// record-and-continue.
func (p *Pipeline) processFiling(ctx context.Context, log *slog.Logger, company domain.Company, filing domain.Filing) error {
	acc := filing.AccessionNumber

	text, err := p.extractor.Extract(ctx, filing.PrimaryDocURL)
	if err != nil {
		// Transient fetch failure: leave the filing unrecorded so the
		// next poll retries it.
		log.Warn("fetch/extract failed, will retry next poll", "accession", acc, "error", err)
		return nil
	}

	if !p.filter.Accept(text, p.thresholds.MinChars(filing.FormType)) {
		log.Info("prefilter rejected filing", "accession", acc, "form", filing.FormType)
		return p.markProcessed(ctx, company, filing)
	}

	log.Debug("text accepted", "accession", acc, "hash", prefilter.Hash(text)[:10])

	assessment, err := p.classifier.Classify(ctx, text)
	if err != nil {
		// Discard rather than retry indefinitely: the loop must always
		// make forward progress.
		log.Warn("classification failed, recording as processed", "accession", acc, "error", err)
		return p.markProcessed(ctx, company, filing)
	}

	if p.policy.ShouldAlert(assessment) {
		if err := p.maybeAlert(ctx, log, company, filing, assessment); err != nil {
			return err
		}
	} else {
		log.Info("no alert", "accession", acc, "impact", assessment.ImpactLevel)
	}

	return p.markProcessed(ctx, company, filing)
}

// maybeAlert sends at most one alert per filing. Delivery failure is logged
// and absorbed; the filing still becomes processed, so the alert attempt is
// not repeated.
func (p *Pipeline) maybeAlert(ctx context.Context, log *slog.Logger, company domain.Company, filing domain.Filing, assessment domain.ImpactAssessment) error {
	acc := filing.AccessionNumber

	sent, err := p.store.HasAlert(ctx, acc)
	if err != nil {
		return fmt.Errorf("check alert %s: %w", acc, err)
	}
	if sent {
		log.Debug("alert already sent", "accession", acc)
		return nil
	}

	subject, body := alerting.Format(company.Symbol, filing, assessment)
	if err := p.notifier.Send(ctx, subject, body, p.recipients); err != nil {
		log.Error("alert delivery failed", "accession", acc, "error", err)
		return nil
	}

	level := assessment.ImpactLevel
	if level == "" {
		level = domain.ImpactNone
	}
	if err := p.store.MarkAlertSent(ctx, acc, level, map[string]string{"symbol": company.Symbol}); err != nil {
		return fmt.Errorf("record alert %s: %w", acc, err)
	}
	log.Info("alert sent", "accession", acc, "impact", level)
	return nil
}

func (p *Pipeline) markProcessed(ctx context.Context, company domain.Company, filing domain.Filing) error {
	err := p.store.MarkProcessed(ctx, filing.AccessionNumber, company.CIK, filing.FormType, filing.FilingDate)
	if err != nil {
		return fmt.Errorf("mark processed %s: %w", filing.AccessionNumber, err)
	}
	return nil
}
