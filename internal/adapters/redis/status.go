package redisad

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"poi_ingest/internal/adapters/observability"
	"poi_ingest/internal/domain"
)

const (
	keyPrefix      = "import:"
	rejectedPrefix = "rejected:"
)

// StatusStore keeps one hash per import job. Counters are HINCRBY'd so
// several writers never lose updates; every write refreshes the TTL.
type StatusStore struct {
	c   *redis.Client
	ttl time.Duration
	now func() time.Time
}

func New(addr, pass string, db int, ttl time.Duration) *StatusStore {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), ttl)
}

func NewWithClient(c *redis.Client, ttl time.Duration) *StatusStore {
	return &StatusStore{c: c, ttl: ttl, now: time.Now}
}

func (s *StatusStore) Ping(ctx context.Context) error { return s.c.Ping(ctx).Err() }

func (s *StatusStore) Close() error { return s.c.Close() }

func key(id string) string { return keyPrefix + id }

func (s *StatusStore) Accept(ctx context.Context, job domain.ImportJob) error {
	return s.write(ctx, job.ID, "accept", func(p redis.Pipeliner, k string) {
		p.HSet(ctx, k,
			"job_id", job.ID,
			"path", job.Path,
			"format", string(job.Format),
			"state", string(domain.JobAccepted),
		)
	})
}

func (s *StatusStore) Start(ctx context.Context, id string) error {
	return s.write(ctx, id, "start", func(p redis.Pipeliner, k string) {
		p.HSet(ctx, k, "job_id", id, "state", string(domain.JobRunning))
	})
}

func (s *StatusStore) AddBatch(ctx context.Context, id string, b domain.BatchResult) error {
	return s.write(ctx, id, "batch", func(p redis.Pipeliner, k string) {
		p.HIncrBy(ctx, k, "batches", 1)
		p.HIncrBy(ctx, k, "records", int64(b.Records))
		p.HIncrBy(ctx, k, "accepted", int64(b.Accepted))
		p.HIncrBy(ctx, k, "persisted", int64(len(b.IDs)))
		p.HIncrBy(ctx, k, "rejected", int64(b.Rejected()))
		for r, n := range b.RejectedBy {
			p.HIncrBy(ctx, k, rejectedPrefix+string(r), int64(n))
		}
	})
}

func (s *StatusStore) Finish(ctx context.Context, id string, runErr error) error {
	state, msg := domain.JobSucceeded, ""
	if runErr != nil {
		state, msg = domain.JobFailed, runErr.Error()
	}
	return s.write(ctx, id, "finish", func(p redis.Pipeliner, k string) {
		p.HSet(ctx, k, "job_id", id, "state", string(state), "error", msg)
	})
}

func (s *StatusStore) write(ctx context.Context, id, event string, fn func(redis.Pipeliner, string)) error {
	k := key(id)
	_, err := s.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		fn(p, k)
		p.HSet(ctx, k, "updated_at", s.now().Unix())
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		observability.ObserveStatus("redis", "error")
		return fmt.Errorf("status %s %s: %w", event, id, err)
	}
	observability.ObserveStatus("redis", event)
	return nil
}

func (s *StatusStore) Get(ctx context.Context, id string) (domain.ImportStatus, error) {
	m, err := s.c.HGetAll(ctx, key(id)).Result()
	if err != nil {
		observability.ObserveStatus("redis", "error")
		return domain.ImportStatus{}, fmt.Errorf("status get %s: %w", id, err)
	}
	observability.ObserveStatus("redis", "get")
	if len(m) == 0 {
		return domain.ImportStatus{}, domain.ErrNotFound
	}

	st := domain.ImportStatus{
		JobID:     m["job_id"],
		Path:      m["path"],
		Format:    domain.Format(m["format"]),
		State:     domain.JobState(m["state"]),
		Error:     m["error"],
		UpdatedAt: atoi64(m["updated_at"]),
		Summary: domain.FileSummary{
			Batches:   atoi(m["batches"]),
			Records:   atoi(m["records"]),
			Accepted:  atoi(m["accepted"]),
			Persisted: atoi(m["persisted"]),
			Rejected:  atoi(m["rejected"]),
		},
	}
	for f, v := range m {
		if r, ok := strings.CutPrefix(f, rejectedPrefix); ok {
			if st.Summary.RejectedBy == nil {
				st.Summary.RejectedBy = map[domain.RejectReason]int{}
			}
			st.Summary.RejectedBy[domain.RejectReason(r)] = atoi(v)
		}
	}
	return st, nil
}

func atoi(s string) int { return int(atoi64(s)) }

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

var _ domain.StatusStore = (*StatusStore)(nil)
