package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"poi_ingest/internal/adapters/observability"
	"poi_ingest/internal/domain"
)

type IngestionService struct {
	open      domain.SourceOpener
	batches   *BatchProcessor
	status    domain.StatusStore // optional
	limiter   *rate.Limiter      // optional
	batchSize int
}

type IngestOptions struct {
	BatchSize     int     // default batch size when a job does not carry one
	BatchesPerSec float64 // 0 disables throttling
}

func NewIngestionService(o domain.SourceOpener, r domain.POIRepository, s domain.StatusStore, opts IngestOptions) *IngestionService {
	svc := &IngestionService{
		open:      o,
		batches:   NewBatchProcessor(r),
		status:    s,
		batchSize: opts.BatchSize,
	}
	if opts.BatchesPerSec > 0 {
		svc.limiter = rate.NewLimiter(rate.Limit(opts.BatchesPerSec), 1)
	}
	return svc
}

// ImportFile streams every batch of job's file through the batch processor.
// Batches are sequential; ctx is checked between batches only. Batches
// persisted before a failure stay persisted.
func (s *IngestionService) ImportFile(ctx context.Context, job domain.ImportJob) (sum domain.FileSummary, err error) {
	l := log.With().Str("job", job.ID).Str("path", job.Path).Str("format", string(job.Format)).Logger()
	s.markStart(ctx, job.ID)
	defer func() {
		s.markFinish(ctx, job.ID, err)
		if err != nil {
			observability.ObserveJob(string(job.Format), "failed")
			l.Error().Err(err).Int("batches", sum.Batches).Int("persisted", sum.Persisted).Msg("import failed")
			return
		}
		observability.ObserveJob(string(job.Format), "succeeded")
		l.Info().
			Int("records", sum.Records).
			Int("persisted", sum.Persisted).
			Int("rejected", sum.Rejected).
			Msg("import ok")
	}()

	size := job.BatchSize
	if size <= 0 {
		size = s.batchSize
	}
	r, err := s.open.Open(job.Path, job.Format, size)
	if err != nil {
		return sum, fmt.Errorf("open %s: %w", job.Path, err)
	}
	defer r.Close()

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		batch, err := r.Next()
		if errors.Is(err, io.EOF) {
			return sum, nil
		}
		if err != nil {
			return sum, fmt.Errorf("read %s: %w", job.Path, err)
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return sum, err
			}
		}

		res, err := s.batches.Process(ctx, job.Format, batch)
		sum.Add(res)
		s.markBatch(ctx, job.ID, res)
		if err != nil {
			return sum, fmt.Errorf("%s batch %d: %w", job.Path, n, err)
		}
		l.Debug().Int("batch", n).Int("accepted", res.Accepted).Int("rejected", res.Rejected()).Msg("batch done")
	}
}

// status updates are best-effort: a broken status store must not fail imports

func (s *IngestionService) markStart(ctx context.Context, id string) {
	if s.status == nil {
		return
	}
	if err := s.status.Start(ctx, id); err != nil {
		log.Warn().Err(err).Str("job", id).Msg("status start failed")
	}
}

func (s *IngestionService) markBatch(ctx context.Context, id string, b domain.BatchResult) {
	if s.status == nil {
		return
	}
	if err := s.status.AddBatch(ctx, id, b); err != nil {
		log.Warn().Err(err).Str("job", id).Msg("status batch failed")
	}
}

func (s *IngestionService) markFinish(ctx context.Context, id string, runErr error) {
	if s.status == nil {
		return
	}
	// a cancelled job still gets its final state recorded
	if err := s.status.Finish(context.WithoutCancel(ctx), id, runErr); err != nil {
		log.Warn().Err(err).Str("job", id).Msg("status finish failed")
	}
}
