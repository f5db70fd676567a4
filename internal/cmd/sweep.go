package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iocgate/iocgate/internal/core/engine"
	"github.com/iocgate/iocgate/internal/observability"
	"github.com/iocgate/iocgate/internal/output"
)

var (
	sweepHorizonDays int
	sweepOutput      string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a one-shot retention sweep",
	Long: `Delete expired cache entries and daily quota counters older than the
retention horizon. Monthly counters are always retained.

The serve command runs the same sweep periodically; this command exists for
cron-style deployments and manual cleanup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		format, err := output.ParseFormat(sweepOutput)
		if err != nil {
			return err
		}

		horizon := sweepHorizonDays
		if horizon <= 0 {
			horizon = cfg.Retention.HorizonDays
		}

		sweeper := &engine.Sweeper{
			Store:       db,
			HorizonDays: horizon,
		}

		started := time.Now()
		report, err := sweeper.Sweep(cmd.Context())
		if err != nil {
			observability.CLILogger.Error("Retention sweep failed",
				zap.Duration("elapsed", time.Since(started)),
				zap.Error(err))
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(map[string]any{
				"cache_rows":   report.CacheRows,
				"counter_rows": report.CounterRows,
				"horizon_days": horizon,
				"elapsed":      report.Elapsed.String(),
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		fmt.Printf("Swept %d cache row(s) and %d counter row(s) (horizon %dd, %s)\n",
			report.CacheRows, report.CounterRows, horizon, report.Elapsed.Round(time.Millisecond))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().IntVar(&sweepHorizonDays, "horizon-days", 0, "Retention horizon in days (default from config)")
	sweepCmd.Flags().StringVar(&sweepOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
