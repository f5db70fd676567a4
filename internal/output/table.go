package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/iocgate/iocgate/internal/core/store"
)

// RenderCounters renders counter rows as an ASCII table.
func RenderCounters(entries []store.CounterEntry) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Scope", "Client", "Bucket", "Count"})

	total := 0
	for _, entry := range entries {
		client := entry.ScopeKey
		if client == "" {
			client = "-"
		}
		t.AppendRow(table.Row{
			string(entry.Scope),
			client,
			entry.Bucket,
			entry.Count,
		})
		total += entry.Count
	}

	if len(entries) > 0 {
		t.AppendFooter(table.Row{"", "", "total", total})
	}

	return t.Render()
}

// UsageRow is one line of the usage stats table.
type UsageRow struct {
	Label string
	Count int
	Limit int
}

// RenderUsage renders usage rows with their configured ceilings.
func RenderUsage(rows []UsageRow) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Scope", "Used", "Limit", "Remaining"})

	for _, row := range rows {
		remaining := row.Limit - row.Count
		if remaining < 0 {
			remaining = 0
		}
		t.AppendRow(table.Row{
			row.Label,
			row.Count,
			row.Limit,
			fmt.Sprintf("%d", remaining),
		})
	}

	return t.Render()
}
