package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poi_ingest/internal/domain"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	var running, peak int32
	exec := func(ctx context.Context, job domain.ImportJob) (domain.FileSummary, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		if job.ID == "bad" {
			return domain.FileSummary{}, errors.New("boom")
		}
		return domain.FileSummary{Persisted: 1}, nil
	}

	p := NewPool(2, exec)
	for _, id := range []string{"a", "b", "bad", "c", "d"} {
		require.NoError(t, p.Submit(context.Background(), domain.ImportJob{ID: id}))
	}
	res := p.Wait()

	require.Len(t, res, 5)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	failed := 0
	for _, r := range res {
		if r.Err != nil {
			failed++
			assert.Equal(t, "bad", r.Job.ID)
		}
	}
	assert.Equal(t, 1, failed)
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	p := NewPool(1, func(ctx context.Context, job domain.ImportJob) (domain.FileSummary, error) {
		<-block
		return domain.FileSummary{}, nil
	})
	require.NoError(t, p.Submit(context.Background(), domain.ImportJob{ID: "first"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, domain.ImportJob{ID: "second"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	assert.Len(t, p.Wait(), 1)
}

func TestInline_ReturnsJobError(t *testing.T) {
	boom := errors.New("boom")
	r := NewInline(func(ctx context.Context, job domain.ImportJob) (domain.FileSummary, error) {
		if job.ID == "bad" {
			return domain.FileSummary{}, boom
		}
		return domain.FileSummary{Records: 3}, nil
	})
	require.NoError(t, r.Submit(context.Background(), domain.ImportJob{ID: "ok"}))
	err := r.Submit(context.Background(), domain.ImportJob{ID: "bad"})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, domain.ErrJobFailed)
	require.Len(t, r.Results(), 2)
	assert.Equal(t, 3, r.Results()[0].Summary.Records)
	assert.Same(t, boom, r.Results()[1].Err)
}

func TestImportFileTaskConfig(t *testing.T) {
	cfg := DefaultQueueConfig()
	cfg.Path = filepath.Join(t.TempDir(), "tasks.db")
	cfg.MaxAttempts = 4
	q, err := OpenQueue(cfg, nil)
	require.NoError(t, err)
	defer q.Close()

	c := ImportFileTask{}.Config()
	assert.Equal(t, "import_file", c.Name)
	assert.Equal(t, 4, c.MaxAttempts)
	assert.Equal(t, cfg.TaskTimeout, c.Timeout)
	assert.NotNil(t, c.Retention)
}

func TestQueue_SubmitAndConsume(t *testing.T) {
	cfg := DefaultQueueConfig()
	cfg.Path = filepath.Join(t.TempDir(), "tasks.db")
	cfg.Workers = 1

	got := make(chan domain.ImportJob, 1)
	q, err := OpenQueue(cfg, func(ctx context.Context, job domain.ImportJob) (domain.FileSummary, error) {
		got <- job
		return domain.FileSummary{}, nil
	})
	require.NoError(t, err)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	job := domain.ImportJob{ID: "j-1", Path: "/data/pois.csv", Format: domain.FormatTabular, BatchSize: 10}
	require.NoError(t, q.Submit(ctx, job))

	select {
	case j := <-got:
		assert.Equal(t, job, j)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed within timeout")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, q.Stop(stopCtx))
}

func TestQueue_StopWithoutStart(t *testing.T) {
	cfg := DefaultQueueConfig()
	cfg.Path = filepath.Join(t.TempDir(), "tasks.db")
	q, err := OpenQueue(cfg, nil)
	require.NoError(t, err)
	defer q.Close()
	assert.True(t, q.Stop(context.Background()))
}
