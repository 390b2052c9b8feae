package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"poi_ingest/internal/adapters/jobs"
	"poi_ingest/internal/adapters/observability"
	"poi_ingest/internal/adapters/readers"
	"poi_ingest/internal/app"
	"poi_ingest/internal/domain"
	"poi_ingest/internal/shared"
)

type importFlags struct {
	inline    bool
	queue     bool
	workers   int
	batchSize int
	unknown   string
	sniff     bool
}

func newImportCommand(stdout io.Writer) *cobra.Command {
	var f importFlags
	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import one or more files.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := shared.Load()
			if cmd.Flags().Changed("workers") {
				cfg.Workers = f.workers
			}
			if cmd.Flags().Changed("batch-size") {
				cfg.BatchSize = f.batchSize
			}
			if cmd.Flags().Changed("unknown") {
				cfg.UnknownPolicy = f.unknown
			}
			if cmd.Flags().Changed("sniff") {
				cfg.SniffContent = f.sniff
			}
			if f.inline && f.queue {
				return fmt.Errorf("--inline and --queue are mutually exclusive")
			}
			return runImport(cmd.Context(), cfg, f, args, stdout)
		},
	}
	cmd.Flags().BoolVar(&f.inline, "inline", false, "run each file synchronously, one after another")
	cmd.Flags().BoolVar(&f.queue, "queue", false, "enqueue jobs for the worker instead of running them here")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "files imported concurrently (INGEST_WORKERS)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "records per persisted batch (INGEST_BATCH_SIZE)")
	cmd.Flags().StringVar(&f.unknown, "unknown", "", "unrecognized files: skip or fail (INGEST_UNKNOWN_POLICY)")
	cmd.Flags().BoolVar(&f.sniff, "sniff", false, "classify unknown extensions by content (INGEST_SNIFF_CONTENT)")
	return cmd
}

func runImport(ctx context.Context, cfg shared.Config, f importFlags, paths []string, out io.Writer) error {
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}
	policy, err := app.ParseUnknownPolicy(cfg.UnknownPolicy)
	if err != nil {
		return err
	}

	status := shared.OpenStatus(ctx, cfg)
	dispatchOpts := app.DispatchOptions{Unknown: policy, SniffContent: cfg.SniffContent, BatchSize: cfg.BatchSize}

	if f.queue {
		q, err := jobs.OpenQueue(queueConfig(cfg), nil)
		if err != nil {
			return err
		}
		defer q.Close()
		rep, err := app.NewDispatcher(q, status, dispatchOpts).Dispatch(ctx, paths)
		if err != nil {
			return err
		}
		return report(out, rep, nil)
	}

	repo, closeStore, err := shared.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := app.NewIngestionService(readers.Opener{CSVDelimiter: cfg.CSVDelimiter}, repo, status,
		app.IngestOptions{BatchSize: cfg.BatchSize, BatchesPerSec: cfg.BatchesPerSec})

	log.Info().Int("files", len(paths)).Int("workers", cfg.Workers).Bool("inline", f.inline).Msg("ingestor starting")

	if f.inline {
		r := jobs.NewInline(svc.ImportFile)
		rep, err := app.NewDispatcher(r, status, dispatchOpts).Dispatch(ctx, paths)
		if err != nil {
			return err
		}
		return report(out, rep, r.Results())
	}

	pool := jobs.NewPool(cfg.Workers, svc.ImportFile)
	rep, err := app.NewDispatcher(pool, status, dispatchOpts).Dispatch(ctx, paths)
	results := pool.Wait()
	if err != nil {
		return err
	}
	return report(out, rep, results)
}

func queueConfig(cfg shared.Config) jobs.QueueConfig {
	qc := jobs.DefaultQueueConfig()
	qc.Path = cfg.QueueDBPath
	qc.Workers = cfg.QueueWorkers
	qc.MaxAttempts = cfg.QueueMaxAttempts
	qc.TaskTimeout = cfg.QueueTaskTimeout
	qc.Backoff = cfg.QueueBackoff
	return qc
}

// report prints one row per file. results is nil in queue mode, where
// acceptance by the queue is success.
func report(out io.Writer, rep app.DispatchReport, results []jobs.Result) error {
	byJob := make(map[string]jobs.Result, len(results))
	for _, r := range results {
		byJob[r.Job.ID] = r
	}

	ok := rep.OK()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tFORMAT\tPATH\tOUTCOME\tRECORDS\tSTORED\tREJECTED")
	row := func(o app.FileOutcome, outcome string, s domain.FileSummary) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n", o.JobID, o.Format, o.Path, outcome, s.Records, s.Persisted, s.Rejected)
	}
	for _, o := range rep.Submitted {
		if results == nil {
			row(o, "queued", domain.FileSummary{})
			continue
		}
		r := byJob[o.JobID]
		if r.Err != nil {
			ok = false
			row(o, "failed: "+r.Err.Error(), r.Summary)
			continue
		}
		row(o, "ok", r.Summary)
	}
	for _, o := range rep.Failed {
		s := byJob[o.JobID].Summary
		row(o, "failed: "+o.Err.Error(), s)
	}
	for _, p := range rep.Skipped {
		fmt.Fprintf(tw, "-\t-\t%s\tskipped: unrecognized format\t\t\t\n", p)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !ok {
		return errFailed
	}
	fmt.Fprintln(out, "All files imported successfully")
	return nil
}
