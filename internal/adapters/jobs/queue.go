package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"

	"poi_ingest/internal/domain"
)

type QueueConfig struct {
	Path            string // sqlite file holding the task tables
	Workers         int
	MaxAttempts     int
	Backoff         time.Duration
	TaskTimeout     time.Duration
	ReleaseAfter    time.Duration
	CleanupInterval time.Duration
	Retention       time.Duration
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Path:            "poi-tasks.db",
		Workers:         2,
		MaxAttempts:     1,
		Backoff:         30 * time.Second,
		TaskTimeout:     30 * time.Minute,
		ReleaseAfter:    time.Hour,
		CleanupInterval: time.Hour,
		Retention:       24 * time.Hour,
	}
}

// ImportFileTask is the persisted form of one ImportJob.
type ImportFileTask struct {
	Job domain.ImportJob `json:"job"`
}

// backlite reads queue settings off the task value, so the client's config
// is published here when the queue is opened.
var (
	taskCfgMu sync.RWMutex
	taskCfg   = DefaultQueueConfig()
)

func (t ImportFileTask) Config() backlite.QueueConfig {
	taskCfgMu.RLock()
	c := taskCfg
	taskCfgMu.RUnlock()
	return backlite.QueueConfig{
		Name:        "import_file",
		MaxAttempts: c.MaxAttempts,
		Backoff:     c.Backoff,
		Timeout:     c.TaskTimeout,
		Retention: &backlite.Retention{
			Duration:   c.Retention,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// Queue is a durable JobRunner. Producers only Submit; the worker process
// also calls Start to consume.
type Queue struct {
	client *backlite.Client
	db     *sql.DB
	cfg    QueueConfig

	mu      sync.Mutex
	started bool
}

// OpenQueue opens (and installs, if needed) the task database and registers
// the import queue. exec may be nil on the producer side; such a queue must
// not be started.
func OpenQueue(cfg QueueConfig, exec ExecFunc) (*Queue, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	taskCfgMu.Lock()
	taskCfg = cfg
	taskCfgMu.Unlock()

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal=WAL&_timeout=5000&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open task db: %w", err)
	}
	db.SetMaxOpenConns(cfg.Workers + 5)
	db.SetMaxIdleConns(cfg.Workers + 2)
	db.SetConnMaxLifetime(time.Hour)

	client, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          taskLogger{},
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("task client: %w", err)
	}
	if err := client.Install(); err != nil {
		db.Close()
		return nil, fmt.Errorf("install task schema: %w", err)
	}

	client.Register(backlite.NewQueue(importProcessor(exec)))
	return &Queue{client: client, db: db, cfg: cfg}, nil
}

func importProcessor(exec ExecFunc) backlite.QueueProcessor[ImportFileTask] {
	return func(ctx context.Context, t ImportFileTask) error {
		if exec == nil {
			return errors.New("import queue has no executor")
		}
		sum, err := exec(ctx, t.Job)
		if err != nil {
			return fmt.Errorf("import %s: %w", t.Job.Path, err)
		}
		log.Info().
			Str("job", t.Job.ID).
			Int("persisted", sum.Persisted).
			Int("rejected", sum.Rejected).
			Msg("task done")
		return nil
	}
}

func (q *Queue) Submit(ctx context.Context, job domain.ImportJob) error {
	if _, err := q.client.Add(ImportFileTask{Job: job}).Ctx(ctx).Save(); err != nil {
		return fmt.Errorf("enqueue %s: %w", job.Path, err)
	}
	return nil
}

// Start begins consuming. Calling it more than once is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	log.Info().Int("workers", q.cfg.Workers).Str("db", q.cfg.Path).Msg("task queue started")
	q.client.Start(ctx)
}

// Stop waits for running tasks until ctx expires; false means some were cut off.
func (q *Queue) Stop(ctx context.Context) bool {
	q.mu.Lock()
	started := q.started
	q.mu.Unlock()
	if !started {
		return true
	}
	ok := q.client.Stop(ctx)
	if ok {
		log.Info().Msg("task queue stopped")
	} else {
		log.Warn().Msg("task queue stopped with tasks still running")
	}
	return ok
}

func (q *Queue) Close() error { return q.db.Close() }

var _ domain.JobRunner = (*Queue)(nil)

// taskLogger routes backlite's key/value logs through zerolog.
type taskLogger struct{}

func (taskLogger) Info(msg string, params ...any) {
	log.Debug().Str("component", "backlite").Fields(params).Msg(msg)
}

func (taskLogger) Error(msg string, params ...any) {
	log.Error().Str("component", "backlite").Fields(params).Msg(msg)
}
