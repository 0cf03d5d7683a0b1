// Package main provides the planweave CLI: tooling for reconciling plan
// bundles produced by different collaborators and tools.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/audit"
	"github.com/planweave/planweave/internal/storage"
)

// Version is the current planweave CLI version.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "planweave",
	Short: "Plan bundle reconciliation for multi-author software plans",
	Long: `planweave keeps divergent copies of a software plan reconcilable.

It normalizes entity keys across producers' naming conventions, detects
semantic deviations between bundles, performs persona-aware three-way
merges, and gates writes on advisory section locks.`,
	Version: Version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// fatal prints an error the way every subcommand reports failure and exits.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// openProject discovers the project for the current directory or dies.
func openProject() storage.Project {
	p, err := storage.DiscoverProject()
	if err != nil {
		fatal("%v", err)
	}
	return p
}

// openRecorder opens the project's audit trail. A broken trail degrades to a
// no-op recorder with a warning rather than blocking the command.
func openRecorder(p storage.Project) (audit.Recorder, func()) {
	store, err := audit.Open(p.AuditPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: audit trail unavailable: %v\n", err)
		return audit.Nop{}, func() {}
	}
	return store, func() { store.Close() }
}

// newRunID generates the identifier grouping one invocation's audit events.
func newRunID() string {
	return uuid.NewString()
}
