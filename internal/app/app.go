package app

import (
	"context"
	"fmt"
	"log/slog"

	"MarketMonitor/internal/alerting"
	"MarketMonitor/internal/config"
	"MarketMonitor/internal/domain"
	"MarketMonitor/internal/infrastructure/edgar"
	"MarketMonitor/internal/infrastructure/email"
	"MarketMonitor/internal/infrastructure/llm"
	"MarketMonitor/internal/infrastructure/scheduler"
	"MarketMonitor/internal/infrastructure/storage"
	"MarketMonitor/internal/logging"
	"MarketMonitor/internal/ports"
	"MarketMonitor/internal/prefilter"
	"MarketMonitor/internal/usecase"
)

// Application wires configuration to the pipeline and owns the store
// lifecycle.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    ports.FilingStore
	pipeline *usecase.Pipeline
}

// New builds a runnable application instance. Storage initialization is the
// only fatal failure; every other collaborator degrades per filing at run
// time.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := openStore(cfg.Database, baseLogger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	source := edgar.NewSource(nil, cfg.SEC, baseLogger.With("component", "edgar.source"))
	extractor := edgar.NewExtractor(nil, cfg.SEC.UserAgent, cfg.SEC.MaxFilingChars)
	classifier := llm.NewClient(cfg.LLM, baseLogger.With("component", "llm"))
	notifier := email.NewNotifier(cfg.SMTP)

	companies := make([]domain.Company, 0, len(cfg.Companies))
	for _, c := range cfg.Companies {
		companies = append(companies, domain.Company{Symbol: c.Symbol, CIK: c.CIK})
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Extractor:  extractor,
		Classifier: classifier,
		Notifier:   notifier,
		Store:      store,
		Filter:     prefilter.New(cfg.Prefilter.BoilerplatePhrases),
		Thresholds: prefilter.NewThresholds(cfg.Prefilter.DefaultMinChars, cfg.Prefilter.FormMinChars),
		Policy:     alerting.NewPolicy(cfg.Alerts.MinImpact),
		Companies:  companies,
		Recipients: cfg.SMTP.ToAddrs,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		pipeline: pipeline,
	}, nil
}

func openStore(cfg config.DatabaseConfig, logger *slog.Logger) (ports.FilingStore, error) {
	if cfg.DSN != "" {
		logger.Info("using postgres store")
		return storage.OpenPostgres(cfg.DSN)
	}
	logger.Info("using sqlite store", "path", cfg.Path)
	return storage.OpenSQLite(cfg.Path)
}

// Run performs a single poll pass and releases the store. Per-filing and
// per-company failures are logged, not returned; the pass itself always
// succeeds once storage is open.
func (a *Application) Run(ctx context.Context) error {
	defer a.closeStore()
	a.pipeline.RunOnce(ctx)
	return nil
}

// RunForever polls on the configured interval until the context is canceled.
func (a *Application) RunForever(ctx context.Context) error {
	defer a.closeStore()

	driver := scheduler.NewIntervalScheduler(a.cfg.Poll.IntervalDuration())
	sched := usecase.NewScheduler(driver, a.pipeline)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	return sched.Stop(context.Background())
}

// closeStore swallows close errors: shutdown must not fail the process.
func (a *Application) closeStore() {
	if err := a.store.Close(); err != nil {
		a.logger.Debug("store close", "error", err)
	}
}
