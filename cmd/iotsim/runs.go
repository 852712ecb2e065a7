package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/iotsim-core/migrations"

	"github.com/nerrad567/iotsim-core/internal/infrastructure/config"
	"github.com/nerrad567/iotsim-core/internal/infrastructure/database"
	"github.com/nerrad567/iotsim-core/internal/runstore"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Long:  `Runs lists the run history from the SQLite run store, newest first.`,
	RunE:  listRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func listRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Read-only listing

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	runs, err := runstore.New(db).ListRuns(ctx, runsLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tSTATUS\tSTARTED\tDELIVERY\tLATENCY_MS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.Scenario,
			run.Status,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			formatRatio(run.DeliveryRatio),
			formatLatency(run.AvgLatencyMS),
		)
	}
	return w.Flush()
}

// formatRatio renders a delivery ratio, or "-" while the run is unfinished.
func formatRatio(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

func formatLatency(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
