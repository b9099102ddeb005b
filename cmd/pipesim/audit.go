package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	persistlog "pipeworks/internal/persistence/log"
	"pipeworks/internal/sim/network"
)

var auditCmd = &cobra.Command{
	Use:   "audit <run-dir>",
	Short: "Summarize a run's compressed audit log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := persistlog.ReadAudit(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, row := range auditTotals(entries) {
			fmt.Fprintf(out, "%-16s %-12s units=%d items=%d\n", row.Action, row.Item, row.Units, row.Items)
		}
		return nil
	},
}

type auditRow struct {
	Action string
	Item   string
	Units  int
	Items  int
}

// auditTotals groups entries by action and item, sorted by both.
func auditTotals(entries []network.AuditEntry) []auditRow {
	type key struct{ action, item string }
	acc := map[key]*auditRow{}
	for _, e := range entries {
		k := key{e.Action, e.Item}
		r := acc[k]
		if r == nil {
			r = &auditRow{Action: e.Action, Item: e.Item}
			acc[k] = r
		}
		r.Units++
		r.Items += e.Count
	}
	out := make([]auditRow, 0, len(acc))
	for _, r := range acc {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return out[i].Item < out[j].Item
	})
	return out
}
