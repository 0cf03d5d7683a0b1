package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/audit"
	"github.com/planweave/planweave/internal/compare"
	"github.com/planweave/planweave/internal/match"
	"github.com/planweave/planweave/internal/report"
	"github.com/planweave/planweave/internal/storage"
)

var (
	compareFormat string
	compareOutput string
)

var compareCmd = &cobra.Command{
	Use:   "compare <reference> <candidate>",
	Short: "Detect semantic deviations between two bundles",
	Long: `Compare a reference bundle against a candidate bundle and report
deviations: missing entities, field mismatches, and structural problems,
each classified by severity.

Entities are matched by normalized key, so producers with different naming
conventions (041_checkout vs CHECKOUT-FLOW) compare cleanly. The report is
deterministic: unchanged inputs produce identical output.

Exit status is 0 when the comparison ran, even if deviations were found;
malformed input fails the command.

Example:
  planweave compare .planweave/bundle.yaml derived.yaml
  planweave compare a.yaml b.yaml --format json -o report.json`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		format, err := report.ParseFormat(compareFormat)
		if err != nil {
			fatal("%v", err)
		}

		ref, err := storage.LoadBundle(args[0])
		if err != nil {
			fatal("%v", err)
		}
		cand, err := storage.LoadBundle(args[1])
		if err != nil {
			fatal("%v", err)
		}

		devs, err := compare.NewDetector(match.Default()).Compare(ref, cand)
		if err != nil {
			fatal("%v", err)
		}

		r := report.NewDeviationReport(args[0], args[1], devs)

		out := os.Stdout
		if compareOutput != "" {
			f, err := os.Create(compareOutput)
			if err != nil {
				fatal("failed to create output file: %v", err)
			}
			defer f.Close()
			out = f
		}
		if err := r.Render(out, format); err != nil {
			fatal("failed to render report: %v", err)
		}

		recordCompare(args[0], args[1], r)

		if compareOutput != "" {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s Wrote %d deviation(s) to %s\n", green("✓"), len(devs), compareOutput)
		}
	},
}

// recordCompare writes a comparison summary to the audit trail when run
// inside a project; comparisons of arbitrary files outside a project are not
// audited.
func recordCompare(reference, candidate string, r *report.DeviationReport) {
	p, err := storage.DiscoverProject()
	if err != nil {
		return
	}
	rec, done := openRecorder(p)
	defer done()

	rec.Record(context.Background(), audit.Event{
		RunID: newRunID(),
		Type:  audit.EventCompare,
		Detail: fmt.Sprintf("compared %s against %s: %d deviation(s) (%d high, %d medium, %d low)",
			reference, candidate, len(r.Deviations), r.Counts.High, r.Counts.Medium, r.Counts.Low),
	})
}

func init() {
	compareCmd.Flags().StringVar(&compareFormat, "format", "markdown", "Report format: markdown, json, or yaml")
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "", "Write the report to a file instead of stdout")
	rootCmd.AddCommand(compareCmd)
}
