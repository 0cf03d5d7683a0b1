package main

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/advisor"
	"github.com/planweave/planweave/internal/audit"
	"github.com/planweave/planweave/internal/lock"
	"github.com/planweave/planweave/internal/match"
	"github.com/planweave/planweave/internal/merge"
	"github.com/planweave/planweave/internal/normalize"
	"github.com/planweave/planweave/internal/report"
	"github.com/planweave/planweave/internal/storage"
	"github.com/planweave/planweave/internal/types"
)

var (
	mergeStrategy       string
	mergeOutput         string
	mergeInteractive    bool
	mergeSuggest        bool
	mergePersona        string
	mergeOursManifest   string
	mergeTheirsManifest string
	mergeFormat         string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <base> <ours> <theirs>",
	Short: "Three-way merge of divergent plan bundles",
	Long: `Merge two divergent copies of a plan against their common ancestor.

Non-conflicting edits apply automatically: a leaf changed on one side takes
that side's value, and list fields merge by set semantics. Where both sides
changed the same leaf differently, the conflict arbiter decides:

  auto    resolve by declared section ownership, defer the rest (default)
  ours    take the ours-side value everywhere
  theirs  take the theirs-side value everywhere
  base    keep the common ancestor's value everywhere
  manual  defer every conflict

Deferred conflicts are resolved at the prompt with --interactive. Without
it, any deferred conflict fails the merge and nothing is written.

Ownership comes from each side's manifest (--ours-manifest and
--theirs-manifest, both defaulting to the project manifest).

Example:
  planweave merge base.yaml .planweave/bundle.yaml theirs.yaml -o merged.yaml
  planweave merge base.yaml ours.yaml theirs.yaml --strategy theirs
  planweave merge base.yaml ours.yaml theirs.yaml --interactive --suggest`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		strategy, err := merge.ParseStrategy(mergeStrategy)
		if err != nil {
			fatal("%v", err)
		}
		format, err := report.ParseFormat(mergeFormat)
		if err != nil {
			fatal("%v", err)
		}

		base, err := storage.LoadBundle(args[0])
		if err != nil {
			fatal("%v", err)
		}
		ours, err := storage.LoadBundle(args[1])
		if err != nil {
			fatal("%v", err)
		}
		theirs, err := storage.LoadBundle(args[2])
		if err != nil {
			fatal("%v", err)
		}

		p := openProject()
		oursOwners, err := loadOwnership(mergeOursManifest, p)
		if err != nil {
			fatal("%v", err)
		}
		theirsOwners, err := loadOwnership(mergeTheirsManifest, p)
		if err != nil {
			fatal("%v", err)
		}

		merged, conflicts, err := merge.NewEngine(match.Default()).Merge(base, ours, theirs, merge.Options{
			Strategy:     strategy,
			OursOwners:   oursOwners,
			TheirsOwners: theirsOwners,
		})
		if err != nil {
			fatal("%v", err)
		}

		rec, done := openRecorder(p)
		defer done()
		runID := newRunID()
		ctx := context.Background()

		if mergeInteractive && merge.CountDeferred(conflicts) > 0 {
			if err := resolveInteractively(ctx, merged, conflicts); err != nil {
				fatal("%v", err)
			}
		}

		for i := range conflicts {
			recordArbitration(ctx, rec, runID, &conflicts[i])
		}

		r := report.NewMergeReport(strategy, conflicts)
		if err := r.Render(os.Stdout, format); err != nil {
			fatal("failed to render merge report: %v", err)
		}

		if deferred := merge.CountDeferred(conflicts); deferred > 0 {
			fmt.Fprintf(os.Stderr, "Error: %d conflict(s) remain deferred; nothing was written\n", deferred)
			fmt.Fprintf(os.Stderr, "Re-run with --interactive, or pick a strategy (--strategy ours|theirs|base)\n")
			os.Exit(1)
		}

		// The lock pre-gate: the merge only writes sections it changed
		// relative to ours, and none of those may be locked by another
		// persona. A rejection happens before any byte is written.
		target := mergeOutput
		if target == "" {
			target = args[1]
		}
		mgr := lock.NewManager(p.LockPath())
		if err := mgr.Check(changedPaths(ours, merged), types.Persona(mergePersona)); err != nil {
			rec.Record(ctx, audit.Event{
				RunID: runID, Type: audit.EventLockDenied,
				Detail: fmt.Sprintf("merge write rejected: %v", err),
				Actor:  mergePersona,
			})
			fatal("%v", err)
		}

		if err := storage.SaveBundle(target, merged); err != nil {
			fatal("%v", err)
		}
		rec.Record(ctx, audit.Event{
			RunID: runID, Type: audit.EventBundleWrite,
			Detail: fmt.Sprintf("merged %s + %s (base %s) into %s with %d conflict(s)",
				args[1], args[2], args[0], target, len(conflicts)),
			Actor: mergePersona,
		})

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("\n%s Wrote merged bundle to %s\n", green("✓"), target)
	},
}

// loadOwnership reads a manifest's ownership map, falling back to the
// project manifest when no path is given.
func loadOwnership(path string, p storage.Project) (types.OwnershipMap, error) {
	if path == "" {
		path = p.ManifestPath()
	}
	m, err := storage.LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return m.Ownership(), nil
}

// resolveInteractively walks the deferred conflicts at a readline prompt.
func resolveInteractively(ctx context.Context, merged *types.Bundle, conflicts []merge.Conflict) error {
	var adv *advisor.Advisor
	if mergeSuggest {
		if !advisor.Enabled() {
			fmt.Fprintln(os.Stderr, "Warning: --suggest ignored: ANTHROPIC_API_KEY not set")
		} else {
			a, err := advisor.New()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: advisor unavailable: %v\n", err)
			} else {
				adv = a
			}
		}
	}

	prompt, err := newConflictPrompt()
	if err != nil {
		return fmt.Errorf("failed to open prompt: %w", err)
	}
	defer prompt.Close()

	for i := range conflicts {
		if !conflicts[i].Deferred {
			continue
		}
		if err := prompt.resolve(ctx, merged, &conflicts[i], adv); err != nil {
			return err
		}
	}
	return nil
}

func recordArbitration(ctx context.Context, rec audit.Recorder, runID string, c *merge.Conflict) {
	detail := fmt.Sprintf("conflict at %s", c.Path)
	if c.Deferred {
		detail += ": deferred"
	} else {
		detail += ": resolved by " + c.Resolution
	}
	rec.Record(ctx, audit.Event{
		RunID: runID, Type: audit.EventArbitration,
		Path: c.Path, Detail: detail,
		Actor: string(c.Strategy),
	})
}

// changedPaths lists the sections of merged that differ from ours. These are
// the sections a merge write actually touches, and therefore the lock gate's
// targets.
func changedPaths(ours, merged *types.Bundle) []string {
	var out []string

	if !reflect.DeepEqual(ours.Idea, merged.Idea) {
		out = append(out, "idea")
	}
	if ours.Metadata.Stage != merged.Metadata.Stage || ours.Metadata.Provenance != merged.Metadata.Provenance {
		out = append(out, "metadata")
	}
	// The clarification log is append-only and merges as a union, so the
	// merged log differs from ours exactly when it gained entries.
	if len(merged.Clarifications) != len(ours.Clarifications) {
		out = append(out, "clarifications")
	}

	oursByKey := make(map[string]*types.Feature, len(ours.Features))
	for i := range ours.Features {
		oursByKey[normalize.Key(ours.Features[i].Key)] = &ours.Features[i]
	}
	seen := make(map[string]bool, len(merged.Features))
	for i := range merged.Features {
		nk := normalize.Key(merged.Features[i].Key)
		seen[nk] = true
		if prev, ok := oursByKey[nk]; !ok || !reflect.DeepEqual(*prev, merged.Features[i]) {
			out = append(out, "features."+nk)
		}
	}
	for nk := range oursByKey {
		if !seen[nk] {
			out = append(out, "features."+nk)
		}
	}
	return out
}

func init() {
	mergeCmd.Flags().StringVar(&mergeStrategy, "strategy", "auto", "Conflict strategy: auto, ours, theirs, base, or manual")
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "Write the merged bundle here (default: overwrite the ours file)")
	mergeCmd.Flags().BoolVarP(&mergeInteractive, "interactive", "i", false, "Resolve deferred conflicts at a prompt")
	mergeCmd.Flags().BoolVar(&mergeSuggest, "suggest", false, "Show AI recommendations for deferred conflicts (requires ANTHROPIC_API_KEY)")
	mergeCmd.Flags().StringVar(&mergePersona, "persona", "", "Persona performing the merge (for lock checks)")
	mergeCmd.Flags().StringVar(&mergeOursManifest, "ours-manifest", "", "Manifest declaring ours-side ownership (default: project manifest)")
	mergeCmd.Flags().StringVar(&mergeTheirsManifest, "theirs-manifest", "", "Manifest declaring theirs-side ownership (default: project manifest)")
	mergeCmd.Flags().StringVar(&mergeFormat, "format", "markdown", "Conflict report format: markdown, json, or yaml")
	rootCmd.AddCommand(mergeCmd)
}
