package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/types"
)

var clarifyPersona string

var clarifyCmd = &cobra.Command{
	Use:   "clarify <question> <answer>",
	Short: "Record a resolved ambiguity in the clarification log",
	Long: `Append a question-and-answer pair to the bundle's clarification log.
The log is append-only: entries are never edited or removed, so the record
of how ambiguities were resolved survives every merge.

Example:
  planweave clarify "Does checkout include guest users?" "Yes, without accounts" --persona product`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		p := openProject()

		entry := types.Clarification{
			ID:         uuid.NewString(),
			Question:   args[0],
			Answer:     args[1],
			Persona:    types.Persona(clarifyPersona),
			ResolvedAt: time.Now().UTC(),
		}

		var total int
		err := p.UpdateBundle(func(b *types.Bundle) error {
			b.AppendClarification(entry)
			total = len(b.Clarifications)
			return nil
		})
		if err != nil {
			fatal("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Recorded clarification %s (%d total)\n", green("✓"), entry.ID, total)
	},
}

func init() {
	clarifyCmd.Flags().StringVar(&clarifyPersona, "persona", "", "Persona recording the resolution")
	rootCmd.AddCommand(clarifyCmd)
}
