package domain

import "context"

type POIRepository interface {
	// InsertBatch stores every record in one call and returns the assigned
	// external ids in input order. Nothing from the batch is stored on error.
	InsertBatch(ctx context.Context, pois []POI) ([]int64, error)

	FindByInternalID(ctx context.Context, internalID string) ([]POI, error)
	Count(ctx context.Context) (int64, error)
}

// JobRunner executes import jobs. Delivery semantics belong to the runner.
type JobRunner interface {
	Submit(ctx context.Context, job ImportJob) error
}

// StatusStore keeps per-job progress for operators.
type StatusStore interface {
	Accept(ctx context.Context, job ImportJob) error
	Start(ctx context.Context, jobID string) error
	AddBatch(ctx context.Context, jobID string, b BatchResult) error
	Finish(ctx context.Context, jobID string, runErr error) error
	Get(ctx context.Context, jobID string) (ImportStatus, error)
}

// BatchReader yields raw records of one file in bounded batches; Next
// returns io.EOF when the file is exhausted.
type BatchReader interface {
	Next() ([]RawRecord, error)
	Close() error
}

type SourceOpener interface {
	Open(path string, format Format, batchSize int) (BatchReader, error)
}
