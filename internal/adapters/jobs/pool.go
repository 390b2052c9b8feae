// Package jobs holds the JobRunner implementations: an in-process bounded
// pool, an inline runner and a durable SQLite-backed queue.
package jobs

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"poi_ingest/internal/domain"
)

// ExecFunc runs one import job to completion.
type ExecFunc func(ctx context.Context, job domain.ImportJob) (domain.FileSummary, error)

type Result struct {
	Job     domain.ImportJob
	Summary domain.FileSummary
	Err     error
}

// Pool runs jobs on goroutines, at most size at a time. Submit blocks while
// the pool is full.
type Pool struct {
	exec ExecFunc
	sem  *semaphore.Weighted
	wg   sync.WaitGroup

	mu      sync.Mutex
	results []Result
}

func NewPool(size int, exec ExecFunc) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{exec: exec, sem: semaphore.NewWeighted(int64(size))}
}

func (p *Pool) Submit(ctx context.Context, job domain.ImportJob) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		sum, err := p.exec(ctx, job)
		p.mu.Lock()
		p.results = append(p.results, Result{Job: job, Summary: sum, Err: err})
		p.mu.Unlock()
	}()
	return nil
}

// Wait blocks until every submitted job has finished and returns their
// results in completion order.
func (p *Pool) Wait() []Result {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, len(p.results))
	copy(out, p.results)
	return out
}

var _ domain.JobRunner = (*Pool)(nil)
