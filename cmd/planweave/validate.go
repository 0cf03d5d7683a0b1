package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/normalize"
	"github.com/planweave/planweave/internal/storage"
	"github.com/planweave/planweave/internal/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate [bundle-file]",
	Short: "Validate a plan bundle",
	Long: `Validate a plan bundle against the schema rules: supported schema
version, confidence ranges, stage-dependent story requirements, and
normalized key uniqueness.

With no argument, validates the project's own bundle.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var path string
		if len(args) > 0 {
			path = args[0]
		} else {
			path = openProject().BundlePath()
		}

		b, err := storage.LoadBundle(path)
		if err != nil {
			fatal("%v", err)
		}

		// Duplicate normalized keys are fatal for a single bundle: run
		// 'planweave dedupe' to collapse them.
		if dups := duplicateKeys(b); len(dups) > 0 {
			for _, d := range dups {
				fmt.Fprintf(os.Stderr, "  %s\n", d)
			}
			fatal("%s has %d duplicate normalized key(s)", path, len(dups))
		}

		green := color.New(color.FgGreen).SprintFunc()
		stories := 0
		for _, f := range b.Features {
			stories += len(f.Stories)
		}
		fmt.Printf("%s %s is valid (%d features, %d stories, stage %s)\n",
			green("✓"), path, len(b.Features), stories, b.Metadata.Stage)
	},
}

// duplicateKeys lists feature and story keys that collide after
// normalization.
func duplicateKeys(b *types.Bundle) []string {
	var out []string

	features := make(map[string]string)
	for _, f := range b.Features {
		nk := normalize.Key(f.Key)
		if prev, ok := features[nk]; ok {
			out = append(out, fmt.Sprintf("features %q and %q share normalized key %q", prev, f.Key, nk))
			continue
		}
		features[nk] = f.Key

		stories := make(map[string]string)
		for _, s := range f.Stories {
			snk := normalize.Key(s.Key)
			if prev, ok := stories[snk]; ok {
				out = append(out, fmt.Sprintf("feature %q stories %q and %q share normalized key %q", f.Key, prev, s.Key, snk))
				continue
			}
			stories[snk] = s.Key
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
