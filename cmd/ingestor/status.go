package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"poi_ingest/internal/app"
	"poi_ingest/internal/shared"
)

func newStatusCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Print the recorded status of an import job as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := shared.Load()
			st := shared.OpenStatus(cmd.Context(), cfg)
			if st == nil {
				return errors.New("status tracking needs a reachable REDIS_ADDR")
			}
			s, err := app.NewQueryService(nil, st).ImportStatus(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("job %s: %w", args[0], err)
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}
}
