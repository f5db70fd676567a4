package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iocgate/iocgate/internal/core/store"
	"github.com/iocgate/iocgate/internal/output"
)

var (
	quotaListOutput string
	quotaListOut    string
	quotaListOutDir string
	quotaListAll    bool
	quotaListScope  string
	quotaListClient string
)

var quotaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored quota counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(quotaListOutput)
		if err != nil {
			return err
		}

		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		query := store.CounterQuery{
			All:       quotaListAll,
			Scope:     strings.TrimSpace(quotaListScope),
			ClientKey: strings.TrimSpace(quotaListClient),
		}
		if !query.All && query.Scope == "" && query.ClientKey == "" {
			query.All = true
		}

		entries, err := db.ListCounters(cmd.Context(), query)
		if err != nil {
			return err
		}

		outPath := strings.TrimSpace(quotaListOut)
		outDir := strings.TrimSpace(quotaListOutDir)
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
			outPath = filepath.Join(outDir, fmt.Sprintf("quota.list.%s", ext))
		}

		sink, err := openSink(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(sink.writer, string(payload))
			return err
		}

		if len(entries) == 0 {
			_, err := fmt.Fprintln(sink.writer, "(no stored quota counters)")
			return err
		}

		_, err = fmt.Fprintln(sink.writer, output.RenderCounters(entries))
		return err
	},
}

func init() {
	quotaListCmd.Flags().StringVar(&quotaListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	quotaListCmd.Flags().StringVar(&quotaListOut, "out", "", "Write output to a file (default stdout)")
	quotaListCmd.Flags().StringVar(&quotaListOutDir, "out-dir", "", "Write output to a directory")
	quotaListCmd.Flags().BoolVar(&quotaListAll, "all", false, "List all counters")
	quotaListCmd.Flags().StringVar(&quotaListScope, "scope", "", "List counters for a scope (per_client, global_daily, global_monthly)")
	quotaListCmd.Flags().StringVar(&quotaListClient, "client", "", "List counters for a client address")
}
