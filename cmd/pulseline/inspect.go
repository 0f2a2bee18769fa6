package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulseline/pulseline-server/pkg/domain/stream"
)

type channelStats struct {
	name  string
	count int
	min   float64
	max   float64
	sum   float64
}

func newChannelStats(name string) *channelStats {
	return &channelStats{name: name, min: math.MaxFloat64, max: -math.MaxFloat64}
}

func (cs *channelStats) update(v float64) {
	cs.count++
	cs.sum += v
	if v < cs.min {
		cs.min = v
	}
	if v > cs.max {
		cs.max = v
	}
}

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file.fit>",
		Short: "Summarize the channels of a FIT file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fa, err := stream.ParseFitFile(data)
			if err != nil {
				return err
			}

			stats := []*channelStats{
				newChannelStats("elevation_m"),
				newChannelStats("heart_rate_bpm"),
				newChannelStats("power_w"),
				newChannelStats("cadence_rpm"),
			}
			var positioned int
			for _, r := range fa.Records {
				if r.LatSemicircle != nil && r.LonSemicircle != nil {
					positioned++
				}
				for i, v := range []*float64{r.ElevationM, r.HeartRateBPM, r.PowerW, r.CadenceRPM} {
					if v != nil {
						stats[i].update(*v)
					}
				}
			}

			first := fa.Records[0].Timestamp
			last := fa.Records[len(fa.Records)-1].Timestamp
			fmt.Printf("sport:    %s\n", fa.Sport)
			fmt.Printf("records:  %d (%d with position)\n", len(fa.Records), positioned)
			fmt.Printf("span:     %s .. %s\n\n", first.Format("2006-01-02 15:04:05"), last.Format("15:04:05"))

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL\tCOUNT\tMIN\tMAX\tMEAN")
			for _, s := range stats {
				if s.count == 0 {
					fmt.Fprintf(w, "%s\t0\t-\t-\t-\n", s.name)
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f\t%.1f\n",
					s.name, s.count, s.min, s.max, s.sum/float64(s.count))
			}
			return w.Flush()
		},
	}
	return cmd
}
