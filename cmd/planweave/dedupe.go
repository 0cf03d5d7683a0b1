package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/audit"
	"github.com/planweave/planweave/internal/lock"
	"github.com/planweave/planweave/internal/match"
	"github.com/planweave/planweave/internal/normalize"
	"github.com/planweave/planweave/internal/storage"
	"github.com/planweave/planweave/internal/types"
)

var (
	dedupeDryRun  bool
	dedupePersona string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Collapse duplicate entities within the project bundle",
	Long: `Find features and stories whose keys normalize to the same entity
and merge each group into one: the longer title wins, list fields are
unioned, confidence takes the maximum, and the draft flag survives only
when every duplicate was draft.

With --dry-run, reports what would be merged without writing anything.

Example:
  planweave dedupe --dry-run
  planweave dedupe --persona architect`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		p := openProject()

		b, err := storage.LoadBundle(p.BundlePath())
		if err != nil {
			fatal("%v", err)
		}

		rep := match.Default().Deduplicate(b)

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		if rep.FeaturesMerged == 0 && rep.StoriesMerged == 0 {
			fmt.Printf("%s No duplicate entities found\n", green("✓"))
			return
		}

		for _, m := range rep.Merges {
			marker := "exact"
			if m.Fuzzy {
				marker = "fuzzy"
			}
			fmt.Printf("  %s merged %q into %q (%s key match)\n", yellow("~"), m.Dropped, m.Kept, marker)
		}
		fmt.Printf("\n%d feature(s) and %d story(ies) merged\n", rep.FeaturesMerged, rep.StoriesMerged)

		if dedupeDryRun {
			fmt.Printf("%s Dry run: bundle not modified\n", yellow("!"))
			return
		}

		// Every surviving entity a merge touched counts as a write target
		// for the lock gate.
		mgr := lock.NewManager(p.LockPath())
		var touched []string
		for _, m := range rep.Merges {
			touched = append(touched, mergePath(b, m))
		}
		if err := mgr.Check(touched, types.Persona(dedupePersona)); err != nil {
			fatal("%v", err)
		}

		if err := storage.SaveBundle(p.BundlePath(), b); err != nil {
			fatal("%v", err)
		}

		rec, done := openRecorder(p)
		defer done()
		runID := newRunID()
		ctx := context.Background()
		for _, m := range rep.Merges {
			detail := fmt.Sprintf("merged duplicate %s %q into %q", m.Kind, m.Dropped, m.Kept)
			if m.Fuzzy {
				detail += " (fuzzy key match)"
			}
			rec.Record(ctx, audit.Event{
				RunID:  runID,
				Type:   audit.EventDuplicateMerge,
				Path:   mergePath(b, m),
				Detail: detail,
				Actor:  dedupePersona,
			})
		}

		fmt.Printf("%s Bundle updated\n", green("✓"))
	},
}

// mergePath locates the surviving entity of a merge note in the deduplicated
// bundle and returns its normalized section path.
func mergePath(b *types.Bundle, m match.MergeNote) string {
	if m.Kind == "feature" {
		return "features." + normalize.Key(m.Kept)
	}
	nk := normalize.Key(m.Kept)
	for _, f := range b.Features {
		for _, s := range f.Stories {
			if normalize.Key(s.Key) == nk {
				return "features." + normalize.Key(f.Key) + ".stories." + nk
			}
		}
	}
	return "features"
}

func init() {
	dedupeCmd.Flags().BoolVar(&dedupeDryRun, "dry-run", false, "Report duplicates without modifying the bundle")
	dedupeCmd.Flags().StringVar(&dedupePersona, "persona", "", "Persona performing the edit (for lock checks)")
	rootCmd.AddCommand(dedupeCmd)
}
