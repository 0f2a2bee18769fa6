package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulseline/pulseline-server/pkg/bootstrap"
)

func loadsCmd() *cobra.Command {
	var (
		athlete string
		from    string
		to      string
	)

	cmd := &cobra.Command{
		Use:   "loads",
		Short: "Show daily training loads for an athlete",
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDay, err := time.ParseInLocation("2006-01-02", from, time.UTC)
			if err != nil {
				return fmt.Errorf("invalid --from date: %w", err)
			}
			toDay, err := time.ParseInLocation("2006-01-02", to, time.UTC)
			if err != nil {
				return fmt.Errorf("invalid --to date: %w", err)
			}

			svc, err := bootstrap.NewService(cmd.Context(), "loads")
			if err != nil {
				return err
			}
			defer svc.Close()

			loads, err := svc.Store.ListTrainingLoads(cmd.Context(), athlete, fromDay, toDay)
			if err != nil {
				return fmt.Errorf("failed to list training loads: %w", err)
			}
			if len(loads) == 0 {
				fmt.Println("no training loads in range")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tTRIMP\tCTL\tATL\tTSB\tRHR DELTA")
			for _, l := range loads {
				rhr := "-"
				if l.RHRDelta != nil {
					rhr = fmt.Sprintf("%+.1f", *l.RHRDelta)
				}
				fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.1f\t%+.1f\t%s\n",
					l.Date.Format("2006-01-02"), l.TRIMP, l.CTL, l.ATL, l.TSB, rhr)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&athlete, "athlete", "", "athlete id")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	cmd.MarkFlagRequired("athlete")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}
