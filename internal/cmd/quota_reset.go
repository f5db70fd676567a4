package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iocgate/iocgate/internal/core/store"
	"github.com/iocgate/iocgate/internal/output"
)

var (
	quotaResetAll    bool
	quotaResetScope  string
	quotaResetClient string
	quotaResetYes    bool
	quotaResetDryRun bool
	quotaResetOutput string
	quotaResetOut    string
	quotaResetOutDir string
)

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored quota counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(quotaResetOutput)
		if err != nil {
			return err
		}

		query := store.CounterQuery{
			All:       quotaResetAll,
			Scope:     strings.TrimSpace(quotaResetScope),
			ClientKey: strings.TrimSpace(quotaResetClient),
		}
		if err := query.Validate(); err != nil {
			return err
		}

		if query.All && !quotaResetYes && !quotaResetDryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		matched, err := db.CountCounters(cmd.Context(), query)
		if err != nil {
			return err
		}

		outPath := strings.TrimSpace(quotaResetOut)
		outDir := strings.TrimSpace(quotaResetOutDir)
		if outPath != "" && outDir != "" {
			return fmt.Errorf("--out and --out-dir are mutually exclusive")
		}
		ext := outputExtension(format)
		if outDir != "" {
			var err error
			outDir, err = ensureOutDir(outDir)
			if err != nil {
				return err
			}
			outPath = filepath.Join(outDir, fmt.Sprintf("quota.reset.%s", ext))
		}
		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if quotaResetDryRun {
			return writeQuotaResetResult(format, sink.writer, matched, 0, true)
		}

		deleted, err := db.ResetCounters(cmd.Context(), query)
		if err != nil {
			return err
		}

		return writeQuotaResetResult(format, sink.writer, matched, deleted, false)
	},
}

func writeQuotaResetResult(format output.Format, w io.Writer, matched int, deleted int64, dryRun bool) error {
	result := map[string]any{
		"matched": matched,
		"deleted": deleted,
		"dry_run": dryRun,
	}

	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	if dryRun {
		_, err := fmt.Fprintf(w, "Would delete %d quota counter(s)\n", matched)
		return err
	}
	_, err := fmt.Fprintf(w, "Deleted %d/%d quota counter(s)\n", deleted, matched)
	return err
}

func init() {
	quotaResetCmd.Flags().BoolVar(&quotaResetAll, "all", false, "Reset all counters")
	quotaResetCmd.Flags().StringVar(&quotaResetScope, "scope", "", "Reset counters for a scope (per_client, global_daily, global_monthly)")
	quotaResetCmd.Flags().StringVar(&quotaResetClient, "client", "", "Reset counters for a client address")
	quotaResetCmd.Flags().BoolVar(&quotaResetYes, "yes", false, "Confirm destructive reset")
	quotaResetCmd.Flags().BoolVar(&quotaResetDryRun, "dry-run", false, "Show what would be deleted")
	quotaResetCmd.Flags().StringVar(&quotaResetOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	quotaResetCmd.Flags().StringVar(&quotaResetOut, "out", "", "Write output to a file (default stdout)")
	quotaResetCmd.Flags().StringVar(&quotaResetOutDir, "out-dir", "", "Write output to a directory")
}
