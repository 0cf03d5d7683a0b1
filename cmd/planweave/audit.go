package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/audit"
)

var (
	auditLimit int
	auditType  string
	auditRun   string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit trail",
	Long: `List recorded reconciliation decisions, newest first: fuzzy key
matches, duplicate merges, arbitration outcomes, lock activity, and bundle
writes.

Example:
  planweave audit --limit 20
  planweave audit --type arbitration`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		p := openProject()

		store, err := audit.Open(p.AuditPath())
		if err != nil {
			fatal("%v", err)
		}
		defer store.Close()

		events, err := store.Events(context.Background(), audit.Filter{
			RunID: auditRun,
			Type:  auditType,
			Limit: auditLimit,
		})
		if err != nil {
			fatal("%v", err)
		}

		if len(events) == 0 {
			fmt.Println("No audit events recorded")
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()
		for _, e := range events {
			line := fmt.Sprintf("%s  %-16s %s",
				gray(e.CreatedAt.Format("2006-01-02 15:04:05")), cyan(e.Type), e.Detail)
			if e.Actor != "" {
				line += gray("  [" + e.Actor + "]")
			}
			fmt.Println(line)
		}
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum number of events to show")
	auditCmd.Flags().StringVar(&auditType, "type", "", "Only show events of this type")
	auditCmd.Flags().StringVar(&auditRun, "run", "", "Only show events from this run ID")
	rootCmd.AddCommand(auditCmd)
}
