package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clipnetic/clipnetic/internal/pipeline"
	"github.com/clipnetic/clipnetic/internal/usecase"
)

func newProcessCmd(a *app) *cobra.Command {
	var (
		outDir         string
		uploadedFileID string
	)
	cmd := &cobra.Command{
		Use:   "process <s3_key>",
		Short: "Run one request locally and print its manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, a.cfg.Pipeline.RequestBudget)
			defer cancel()

			uc, err := pipeline.Build(ctx, a.cfg, a.log, nil)
			if err != nil {
				return err
			}
			_, m, err := pipeline.RunOnce(ctx, uc, usecase.Request{
				SourceKey:      args[0],
				UploadedFileID: uploadedFileID,
			}, outDir, a.log)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), m)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "out", "Directory for the run's manifest.json")
	cmd.Flags().StringVar(&uploadedFileID, "uploaded-file-id", "", "Opaque id echoed in the manifest")
	return cmd
}
