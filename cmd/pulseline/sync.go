package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pulseline/pulseline-server/pkg/bootstrap"
	"github.com/pulseline/pulseline-server/pkg/infrastructure/fitdir"
	"github.com/pulseline/pulseline-server/pkg/syncer"
)

func syncCmd() *cobra.Command {
	var (
		dir     string
		athlete string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Ingest FIT files from a directory",
		Long: `Fetch every FIT file in the directory, decode the streams, skip
duplicates and enqueue the new activities for enrichment. Safe to re-run over
the same directory: already-ingested files are skipped by name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := bootstrap.NewService(cmd.Context(), "sync")
			if err != nil {
				return err
			}
			defer svc.Close()

			source := fitdir.New(dir, svc.Logger.With("component", "fitdir"))
			orch := syncer.NewOrchestrator(source, svc.Store, svc.Cache, syncer.Config{
				MaxAttempts: svc.Config.MaxAttempts,
			}, svc.Logger.With("component", "syncer"))

			summary, err := orch.Run(cmd.Context(), athlete)
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			fmt.Printf("Fetched:    %d\n", summary.Fetched)
			fmt.Printf("Inserted:   %s\n", color.New(color.FgGreen).Sprintf("%d", summary.Inserted))
			fmt.Printf("Duplicates: %s\n", color.New(color.FgYellow).Sprintf("%d", summary.Duplicates))
			fmt.Printf("Failed:     %s\n", color.New(color.FgRed).Sprintf("%d", summary.Failed))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "directory containing .fit files")
	cmd.Flags().StringVar(&athlete, "athlete", "", "athlete id to ingest for")
	cmd.MarkFlagRequired("athlete")
	return cmd
}
