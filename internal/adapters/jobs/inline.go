package jobs

import (
	"context"
	"fmt"

	"poi_ingest/internal/domain"
)

// Inline runs each job inside Submit. A job that runs and fails comes back
// from Submit wrapped in domain.ErrJobFailed.
type Inline struct {
	exec    ExecFunc
	results []Result
}

func NewInline(exec ExecFunc) *Inline { return &Inline{exec: exec} }

func (r *Inline) Submit(ctx context.Context, job domain.ImportJob) error {
	sum, err := r.exec(ctx, job)
	r.results = append(r.results, Result{Job: job, Summary: sum, Err: err})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrJobFailed, err)
	}
	return nil
}

func (r *Inline) Results() []Result { return r.results }

var _ domain.JobRunner = (*Inline)(nil)
