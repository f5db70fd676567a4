package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/iocgate/iocgate/internal/core"
	"github.com/iocgate/iocgate/internal/output"
)

var statsOutput string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show current usage against the quota ceilings",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(statsOutput)
		if err != nil {
			return err
		}

		db, cfg, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		now := time.Now().UTC()
		ctx := cmd.Context()

		globalDaily, err := db.CounterValue(ctx, core.ScopeGlobalDaily, "", core.DayBucket(now))
		if err != nil {
			return err
		}
		globalMonthly, err := db.CounterValue(ctx, core.ScopeGlobalMonthly, "", core.MonthBucket(now))
		if err != nil {
			return err
		}
		liveEntries, totalEntries, err := db.CachedAnalysisCount(ctx)
		if err != nil {
			return err
		}

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(map[string]any{
				"queries_today":        globalDaily,
				"queries_this_month":   globalMonthly,
				"global_daily_limit":   cfg.Quota.GlobalDaily,
				"global_monthly_limit": cfg.Quota.GlobalMonthly,
				"cache_entries_live":   liveEntries,
				"cache_entries_total":  totalEntries,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(payload))
			return nil
		}

		usage := output.RenderUsage([]output.UsageRow{
			{Label: "global daily", Count: globalDaily, Limit: cfg.Quota.GlobalDaily},
			{Label: "global monthly", Count: globalMonthly, Limit: cfg.Quota.GlobalMonthly},
		})

		lines := []string{
			"Usage " + core.DayBucket(now),
			"",
			usage,
			"",
			fmt.Sprintf("cache: %d live / %d total entries", liveEntries, totalEntries),
			fmt.Sprintf("daily reset in %.1fh", core.HoursUntilReset(now)),
		}
		fmt.Print(ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsOutput, "output-format", string(output.FormatTable), "Output format: table|json")
}
