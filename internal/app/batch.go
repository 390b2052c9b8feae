package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"poi_ingest/internal/adapters/observability"
	"poi_ingest/internal/domain"
)

// BatchProcessor normalizes one batch and persists what survived.
type BatchProcessor struct {
	repo domain.POIRepository
}

func NewBatchProcessor(r domain.POIRepository) *BatchProcessor {
	return &BatchProcessor{repo: r}
}

// Process never fails because of a bad record; the only error it returns is
// the repository's, wrapped in domain.ErrPersist. Nothing is retried here.
func (p *BatchProcessor) Process(ctx context.Context, format domain.Format, batch []domain.RawRecord) (domain.BatchResult, error) {
	start := time.Now()
	res := domain.BatchResult{Records: len(batch)}

	accepted := make([]domain.POI, 0, len(batch))
	for _, rec := range batch {
		poi, err := Normalize(rec)
		if err != nil {
			reason := domain.RejectReasonOf(err)
			if res.RejectedBy == nil {
				res.RejectedBy = make(map[domain.RejectReason]int)
			}
			res.RejectedBy[reason]++
			observability.ObserveRejection(string(format), string(reason))
			log.Warn().
				Str("format", string(format)).
				Int("record", rec.Index).
				Str("reason", string(reason)).
				Err(err).
				Msg("skipping record")
			continue
		}
		accepted = append(accepted, poi)
	}
	res.Accepted = len(accepted)

	if len(accepted) == 0 {
		observability.ObserveBatch(string(format), 0, nil, time.Since(start))
		return res, nil
	}

	ids, err := p.repo.InsertBatch(ctx, accepted)
	observability.ObserveBatch(string(format), len(ids), err, time.Since(start))
	if err != nil {
		return res, fmt.Errorf("%w: %d records: %w", domain.ErrPersist, len(accepted), err)
	}
	res.IDs = ids
	return res, nil
}
