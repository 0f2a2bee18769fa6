package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pulseline/pulseline-server/pkg/bootstrap"
	"github.com/pulseline/pulseline-server/pkg/domain/activity"
	"github.com/pulseline/pulseline-server/pkg/domain/file_generators"
)

func exportCmd() *cobra.Command {
	var (
		activityID string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an ingested activity back to a FIT file",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := bootstrap.NewService(cmd.Context(), "export")
			if err != nil {
				return err
			}
			defer svc.Close()

			act, err := svc.Store.GetActivity(cmd.Context(), activityID)
			if err != nil {
				return err
			}
			if act == nil {
				return fmt.Errorf("activity %s not found", activityID)
			}
			cs, err := svc.Store.GetStream(cmd.Context(), act.StreamRef)
			if err != nil {
				return err
			}
			if cs == nil {
				return fmt.Errorf("stream %s not found", act.StreamRef)
			}

			data, err := file_generators.GenerateFitFile(act, cs)
			if err != nil {
				return fmt.Errorf("failed to generate FIT file: %w", err)
			}
			if out == "" {
				out = activityID + ".fit"
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			fmt.Printf("wrote %s activity to %s (%d bytes, %d samples)\n",
				activity.FriendlyName(act.Type), out, len(data), len(cs.Samples))
			return nil
		},
	}

	cmd.Flags().StringVar(&activityID, "activity", "", "activity id to export")
	cmd.Flags().StringVar(&out, "out", "", "output path (defaults to <activity>.fit)")
	cmd.MarkFlagRequired("activity")
	return cmd
}
