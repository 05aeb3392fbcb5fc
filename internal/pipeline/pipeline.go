package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/climate-risk-engine/internal/domain"
	"github.com/couchcryptid/climate-risk-engine/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw requests from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawMessage, error)
}

// Transformer converts a raw request into a serialized assessment.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawMessage) (domain.OutputMessage, error)
}

// BatchLoader writes multiple assessments to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, msgs []domain.OutputMessage) error
}

// Pipeline consumes risk requests, assesses them, and publishes the reports.
//
// Offsets are committed for published requests and for requests that failed
// assessment; a failed publish commits nothing so the batch can be redelivered.
type Pipeline struct {
	extractor BatchExtractor
	assessor  Transformer
	publisher BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	batchSize int
	ready     atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		assessor:  t,
		publisher: l,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has published at least one batch.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not published any assessments yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled. Extract and
// publish failures back off exponentially; a successful extract resets the delay.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	delay := initialBackoff
	for ctx.Err() == nil {
		err := p.runBatch(ctx, &delay)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		p.logger.Error("batch failed, backing off", "error", err, "backoff", delay)
		if !retry.SleepWithContext(ctx, delay) {
			break
		}
		delay = retry.NextBackoff(delay, maxBackoff)
	}

	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// runBatch performs one extract, assess, publish, commit cycle. A returned
// error asks the caller to back off before the next cycle.
func (p *Pipeline) runBatch(ctx context.Context, delay *time.Duration) error {
	start := time.Now()

	requests, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(requests) == 0 {
		return nil
	}
	*delay = initialBackoff

	p.metrics.MessagesConsumed.Add(float64(len(requests)))
	p.metrics.BatchSize.Observe(float64(len(requests)))

	reports, assessed, skipped := p.assessBatch(ctx, requests)
	p.commit(ctx, skipped)

	if len(reports) == 0 {
		p.logger.Debug("batch produced no assessments", "requests", len(requests))
		return nil
	}

	if err := p.publisher.LoadBatch(ctx, reports); err != nil {
		return err
	}
	p.metrics.MessagesProduced.Add(float64(len(reports)))
	p.commit(ctx, assessed)

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Debug("batch published", "assessed", len(assessed), "skipped", len(skipped))
	return nil
}

// assessBatch runs every request through the transformer. It returns the
// reports and their source messages, plus the messages that failed.
func (p *Pipeline) assessBatch(ctx context.Context, requests []domain.RawMessage) ([]domain.OutputMessage, []domain.RawMessage, []domain.RawMessage) {
	reports := make([]domain.OutputMessage, 0, len(requests))
	assessed := make([]domain.RawMessage, 0, len(requests))
	var skipped []domain.RawMessage

	for _, raw := range requests {
		out, err := p.assessor.Transform(ctx, raw)
		if err != nil {
			msg := "assessment failed, skipping request"
			if errors.Is(err, ErrInvalidRequest) {
				msg = "invalid risk request, skipping message"
			}
			p.logger.Warn(msg,
				"error", err,
				"key", string(raw.Key),
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			skipped = append(skipped, raw)
			continue
		}
		reports = append(reports, out)
		assessed = append(assessed, raw)
	}
	return reports, assessed, skipped
}

// commit acknowledges each message that carries a commit callback.
func (p *Pipeline) commit(ctx context.Context, msgs []domain.RawMessage) {
	for _, raw := range msgs {
		if raw.Commit == nil {
			continue
		}
		if err := raw.Commit(ctx); err != nil {
			p.logger.Warn("commit offset failed", "error", err,
				"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
		}
	}
}
