package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pulseline/pulseline-server/pkg/bootstrap"
)

func workerCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the enrichment queue worker",
		Long: `Claim pending queue entries and compute derived features for each
activity. Runs until interrupted; transient failures are retried with
exponential backoff, permanent ones are marked failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := bootstrap.NewService(ctx, "worker")
			if err != nil {
				return err
			}
			defer svc.Close()

			w := svc.NewWorker()
			if once {
				n, err := w.RunOnce(ctx)
				if err != nil {
					return err
				}
				svc.Logger.Info("Batch processed", "entries", n)
				return nil
			}
			return w.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "process one batch and exit")
	return cmd
}
