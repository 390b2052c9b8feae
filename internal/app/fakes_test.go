package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"poi_ingest/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu     sync.Mutex
	rows   []domain.POI
	calls  int
	nextID int64
	err    error
}

func (f *fakeRepo) InsertBatch(ctx context.Context, pois []domain.POI) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]int64, len(pois))
	for i, p := range pois {
		f.nextID++
		p.ExternalID = f.nextID
		ids[i] = p.ExternalID
		f.rows = append(f.rows, p)
	}
	return ids, nil
}

func (f *fakeRepo) FindByInternalID(ctx context.Context, id string) ([]domain.POI, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.POI
	for _, p := range f.rows {
		if p.InternalID == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRepo) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

type fakeStatus struct {
	mu      sync.Mutex
	events  []string
	batches int
	final   map[string]error
	err     error
}

func (s *fakeStatus) record(ev string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *fakeStatus) Accept(ctx context.Context, job domain.ImportJob) error {
	return s.record("accept:" + job.Path)
}
func (s *fakeStatus) Start(ctx context.Context, id string) error { return s.record("start") }
func (s *fakeStatus) AddBatch(ctx context.Context, id string, b domain.BatchResult) error {
	s.mu.Lock()
	s.batches++
	s.mu.Unlock()
	return s.record("batch")
}
func (s *fakeStatus) Finish(ctx context.Context, id string, runErr error) error {
	s.mu.Lock()
	if s.final == nil {
		s.final = map[string]error{}
	}
	s.final[id] = runErr
	s.mu.Unlock()
	return s.record("finish")
}
func (s *fakeStatus) Get(ctx context.Context, id string) (domain.ImportStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.final[id]; !ok {
		return domain.ImportStatus{}, domain.ErrNotFound
	}
	return domain.ImportStatus{JobID: id, State: domain.JobSucceeded}, nil
}

type fakeRunner struct {
	mu      sync.Mutex
	jobs    []domain.ImportJob
	failFor map[string]bool // by path
	ranFail map[string]bool // by path: accepted, ran, failed
}

func (r *fakeRunner) Submit(ctx context.Context, job domain.ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFor[job.Path] {
		return errors.New("queue full")
	}
	if r.ranFail[job.Path] {
		r.jobs = append(r.jobs, job)
		return fmt.Errorf("%w: bad rows", domain.ErrJobFailed)
	}
	r.jobs = append(r.jobs, job)
	return nil
}
