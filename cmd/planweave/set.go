package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/audit"
	"github.com/planweave/planweave/internal/lock"
	"github.com/planweave/planweave/internal/merge"
	"github.com/planweave/planweave/internal/types"
)

var setPersona string

var setCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Edit a single field of the project bundle",
	Long: `Set one field of the bundle at a dot-addressed path. Feature and
story segments match by normalized key. Values are parsed by field type:
confidence as a float, draft as a bool, list fields as comma-separated
items.

The edit is lock-gated: it fails before writing if the path is inside a
section locked by another persona.

Example:
  planweave set features.checkout.confidence 0.8 --persona product
  planweave set features.checkout.outcomes "faster checkout, fewer drop-offs"`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		path, raw := args[0], args[1]

		p := openProject()

		if err := lock.NewManager(p.LockPath()).Check([]string{path}, types.Persona(setPersona)); err != nil {
			rec, done := openRecorder(p)
			rec.Record(context.Background(), audit.Event{
				RunID: newRunID(), Type: audit.EventLockDenied,
				Path: path, Detail: fmt.Sprintf("write rejected: %v", err), Actor: setPersona,
			})
			done()
			fatal("%v", err)
		}

		value, err := merge.ParseValue(path, raw)
		if err != nil {
			fatal("%v", err)
		}
		err = p.UpdateBundle(func(b *types.Bundle) error {
			return merge.SetPath(b, path, value)
		})
		if err != nil {
			fatal("%v", err)
		}

		rec, done := openRecorder(p)
		defer done()
		rec.Record(context.Background(), audit.Event{
			RunID: newRunID(), Type: audit.EventBundleWrite,
			Path: path, Detail: fmt.Sprintf("set %s = %v", path, value), Actor: setPersona,
		})

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Set %s\n", green("✓"), path)
	},
}

func init() {
	setCmd.Flags().StringVar(&setPersona, "persona", "", "Persona performing the edit (for lock checks)")
	rootCmd.AddCommand(setCmd)
}
