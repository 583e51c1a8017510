package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdenham/microblog/internal/job"
)

// newWorkerCmd creates the worker command, which consumes the job queue.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background job worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			worker := job.NewWorker(
				app.queue,
				app.registry,
				app.taskRecords,
				app.feed,
				job.WorkerConfig{
					Count:        app.cfg.Worker.Count,
					PollInterval: app.cfg.Worker.PollInterval,
					StaleAfter:   app.cfg.Worker.StaleAfter,
				},
				app.logger,
			)

			if err := worker.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
