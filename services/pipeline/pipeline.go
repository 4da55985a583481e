package pipeline

import (
	"context"
	"fmt"
	"time"

	"coingecko_etl/models"
	"coingecko_etl/services/notifier"
	"coingecko_etl/services/runlog"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stage names reported on failure
const (
	StageFetch     = "fetch"
	StageTransform = "transform"
	StageLoad      = "load"
	StageNotify    = "notify"
)

// Fetcher pulls raw market records
type Fetcher interface {
	FetchTopCoins(ctx context.Context) ([]models.RawCoinRecord, error)
}

// Transformer normalizes a raw batch
type Transformer interface {
	Transform(raw []models.RawCoinRecord) ([]models.CoinRecord, error)
}

// Loader persists a normalized batch
type Loader interface {
	Load(ctx context.Context, records []models.CoinRecord) (int, error)
}

// Notifier evaluates alert rules for a loaded batch and sends the messages
type Notifier interface {
	Notify(ctx context.Context, records []models.CoinRecord, evaluatedAt time.Time) (notifier.Result, error)
}

// Pipeline runs fetch, transform, load and notify in sequence
type Pipeline struct {
	fetcher     Fetcher
	transformer Transformer
	loader      Loader
	notifier    Notifier
	recorder    runlog.Recorder
	now         func() time.Time
	logger      *zap.Logger
}

// New creates a pipeline. recorder may be nil.
func New(fetcher Fetcher, transformer Transformer, loader Loader, notifier Notifier, recorder runlog.Recorder, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		transformer: transformer,
		loader:      loader,
		notifier:    notifier,
		recorder:    recorder,
		now:         time.Now,
		logger:      logger,
	}
}

// Run executes one attempt. Any stage failure aborts the remaining stages and
// is returned wrapped with the stage name.
func (p *Pipeline) Run(ctx context.Context, attempt int) (models.RunReport, error) {
	started := p.now()
	report := models.RunReport{
		ID:        uuid.NewString(),
		Attempt:   attempt,
		StartedAt: started,
	}
	logger := p.logger.With(zap.String("run_id", report.ID), zap.Int("attempt", attempt))
	logger.Info("pipeline run started")

	err := p.run(ctx, &report)

	report.FinishedAt = p.now()
	if err != nil {
		report.Status = models.RunFailed
		report.Error = err.Error()
		logger.Error("pipeline run failed",
			zap.String("stage", report.Stage),
			zap.Error(err),
		)
	} else {
		report.Status = models.RunSucceeded
		logger.Info("pipeline run succeeded",
			zap.Int("loaded", report.Loaded),
			zap.Int("messages_sent", report.MessagesSent),
			zap.Duration("elapsed", report.Duration()),
		)
	}

	if p.recorder != nil {
		if recErr := p.recorder.Record(ctx, report); recErr != nil {
			logger.Warn("failed to record run", zap.Error(recErr))
		}
	}

	return report, err
}

func (p *Pipeline) run(ctx context.Context, report *models.RunReport) error {
	raw, err := p.fetcher.FetchTopCoins(ctx)
	if err != nil {
		return fail(report, StageFetch, err)
	}
	report.Fetched = len(raw)

	records, err := p.transformer.Transform(raw)
	if err != nil {
		return fail(report, StageTransform, err)
	}

	loaded, err := p.loader.Load(ctx, records)
	if err != nil {
		return fail(report, StageLoad, err)
	}
	report.Loaded = loaded

	result, err := p.notifier.Notify(ctx, records, p.now())
	report.PriceAlerts = result.PriceAlerts
	report.MarketCapAlerts = result.MarketCapAlerts
	report.MessagesSent = result.Sent
	if err != nil {
		return fail(report, StageNotify, err)
	}

	return nil
}

func fail(report *models.RunReport, stage string, err error) error {
	report.Stage = stage
	return fmt.Errorf("%s stage: %w", stage, err)
}
