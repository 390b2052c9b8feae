package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"poi_ingest/internal/adapters/observability"
	"poi_ingest/internal/domain"
)

// UnknownPolicy decides what happens to files whose format cannot be told.
type UnknownPolicy string

const (
	UnknownSkip UnknownPolicy = "skip" // log and move on
	UnknownFail UnknownPolicy = "fail" // refuse the whole dispatch
)

func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch p := UnknownPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", UnknownSkip:
		return UnknownSkip, nil
	case UnknownFail:
		return p, nil
	}
	return "", fmt.Errorf("unknown-file policy %q: want skip or fail", s)
}

type DispatchOptions struct {
	Unknown      UnknownPolicy
	SniffContent bool // classify unknown extensions by their first byte
	BatchSize    int
}

type Dispatcher struct {
	runner domain.JobRunner
	status domain.StatusStore // optional
	opts   DispatchOptions
	newID  func() string
}

func NewDispatcher(r domain.JobRunner, s domain.StatusStore, opts DispatchOptions) *Dispatcher {
	if opts.Unknown == "" {
		opts.Unknown = UnknownSkip
	}
	return &Dispatcher{runner: r, status: s, opts: opts, newID: uuid.NewString}
}

type FileOutcome struct {
	Path   string        `json:"path"`
	Format domain.Format `json:"format"`
	JobID  string        `json:"job_id"`
	Err    error         `json:"-"`
}

type DispatchReport struct {
	Submitted []FileOutcome `json:"submitted"`
	Failed    []FileOutcome `json:"failed,omitempty"`
	Skipped   []string      `json:"skipped,omitempty"`
}

func (r DispatchReport) OK() bool { return len(r.Failed) == 0 }

// Dispatch submits one job per recognized file. Jobs are independent: a
// submit failure for one file is recorded and the rest still go out.
func (d *Dispatcher) Dispatch(ctx context.Context, paths []string) (DispatchReport, error) {
	var (
		report DispatchReport
		jobs   []domain.ImportJob
	)
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		f := d.classify(p)
		if f == "" {
			report.Skipped = append(report.Skipped, p)
			observability.ObserveJob("unrecognized", "skipped")
			log.Info().Str("path", p).Msg("unrecognized file format, skipping")
			continue
		}
		jobs = append(jobs, domain.ImportJob{Path: p, Format: f, BatchSize: d.opts.BatchSize})
	}
	if len(report.Skipped) > 0 && d.opts.Unknown == UnknownFail {
		return report, fmt.Errorf("%w: %s", domain.ErrUnrecognizedFormat, strings.Join(report.Skipped, ", "))
	}

	for _, job := range jobs {
		job.ID = d.newID()
		if d.status != nil {
			if err := d.status.Accept(ctx, job); err != nil {
				log.Warn().Err(err).Str("job", job.ID).Msg("status accept failed")
			}
		}
		out := FileOutcome{Path: job.Path, Format: job.Format, JobID: job.ID}
		if err := d.runner.Submit(ctx, job); err != nil {
			out.Err = err
			report.Failed = append(report.Failed, out)
			if errors.Is(err, domain.ErrJobFailed) {
				// ran in Submit; the job already counted and finished itself
				log.Debug().Err(err).Str("job", job.ID).Msg("job ran and failed")
				continue
			}
			observability.ObserveJob(string(job.Format), "submit_failed")
			log.Error().Err(err).Str("job", job.ID).Str("path", job.Path).Msg("submit failed")
			if d.status != nil {
				if ferr := d.status.Finish(ctx, job.ID, err); ferr != nil {
					log.Warn().Err(ferr).Str("job", job.ID).Msg("status finish failed")
				}
			}
			continue
		}
		report.Submitted = append(report.Submitted, out)
		observability.ObserveJob(string(job.Format), "submitted")
	}
	return report, nil
}

func (d *Dispatcher) classify(path string) domain.Format {
	if f := Classify(path); f != "" {
		return f
	}
	if d.opts.SniffContent {
		return sniff(path)
	}
	return ""
}

// Classify maps a file extension to its format, or "" when unknown.
func Classify(path string) domain.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return domain.FormatTabular
	case ".json":
		return domain.FormatDocument
	case ".xml":
		return domain.FormatTree
	}
	return ""
}

// sniff looks at the first significant byte of the file.
func sniff(path string) domain.Format {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return ""
	}
	head = bytes.TrimSpace(bytes.TrimPrefix(head[:n], []byte("\xef\xbb\xbf")))
	if len(head) == 0 {
		return ""
	}
	switch head[0] {
	case '[', '{':
		return domain.FormatDocument
	case '<':
		return domain.FormatTree
	}
	return ""
}
