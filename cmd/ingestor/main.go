package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// errFailed marks a run whose problems were already reported; main exits 1
// without printing it again.
var errFailed = errors.New("import failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "ingestor",
		Short: "Load point-of-interest files (csv, json, xml) into the record store.",
		Long: `Load point-of-interest files into the record store.

Each file becomes one import job. By default jobs run in-process on a
bounded pool; --queue hands them to the durable queue consumed by the
worker instead. Settings come from the environment (see internal/shared)
and selected flags override them.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rc.AddCommand(newImportCommand(stdout))
	rc.AddCommand(newStatusCommand(stdout))
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}
