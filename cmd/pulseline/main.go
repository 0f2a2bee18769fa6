package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pulseline",
		Short: "Pulseline - activity ingestion and enrichment pipeline",
		Long: `Pulseline ingests activities from external sources, decodes their sensor
streams into a canonical form, filters duplicates and derives per-segment and
per-day training metrics through a durable enrichment queue.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(loadsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(inspectCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
