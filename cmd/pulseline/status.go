package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pulseline/pulseline-server/pkg/bootstrap"
	"github.com/pulseline/pulseline-server/pkg/queue"
)

func statusCmd() *cobra.Command {
	var showFailed bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show enrichment queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := bootstrap.NewService(cmd.Context(), "status")
			if err != nil {
				return err
			}
			defer svc.Close()

			statuses := []struct {
				status queue.Status
				c      *color.Color
			}{
				{queue.StatusPending, color.New(color.FgYellow)},
				{queue.StatusInProgress, color.New(color.FgCyan)},
				{queue.StatusDone, color.New(color.FgGreen)},
				{queue.StatusFailed, color.New(color.FgRed)},
			}

			var failed []*queue.Entry
			for _, s := range statuses {
				entries, err := svc.Store.ListEntries(cmd.Context(), s.status)
				if err != nil {
					return fmt.Errorf("failed to list %s entries: %w", s.status, err)
				}
				fmt.Printf("%s\t%d\n", s.c.Sprint(string(s.status)), len(entries))
				if s.status == queue.StatusFailed {
					failed = entries
				}
			}

			if showFailed && len(failed) > 0 {
				fmt.Println()
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tACTIVITY\tATTEMPTS\tLAST ERROR")
				for _, e := range failed {
					fmt.Fprintf(w, "%d\t%s\t%d/%d\t%s\n", e.ID, e.ActivityID, e.Attempts, e.MaxAttempts, e.LastError)
				}
				w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFailed, "failed", false, "list failed entries with their last error")
	return cmd
}
