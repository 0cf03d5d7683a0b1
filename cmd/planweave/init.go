package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init [project-name]",
	Short: "Initialize a planweave project in the current directory",
	Long: `Initialize a planweave project by creating a .planweave/ directory.

This creates:
  - .planweave/bundle.yaml (a starter draft bundle)
  - .planweave/manifest.yaml (personas and section ownership)

If no project name is provided, the current directory name is used.

Example:
  cd ~/myproject
  planweave init
  planweave init myapp`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}

		cwd, err := os.Getwd()
		if err != nil {
			fatal("failed to get current directory: %v", err)
		}

		p, err := storage.InitProject(cwd, name)
		if err != nil {
			fatal("%v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s Initialized planweave project\n\n", green("✓"))
		fmt.Printf("  Bundle:   %s\n", cyan(p.BundlePath()))
		fmt.Printf("  Manifest: %s\n", cyan(p.ManifestPath()))
		fmt.Println()
		fmt.Printf("%s Next steps:\n", gray("→"))
		fmt.Println("  1. Declare personas and ownership in the manifest")
		fmt.Println("  2. Add features to the bundle")
		fmt.Println("  3. Run 'planweave validate' to check it")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
