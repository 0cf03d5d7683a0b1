package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/audit"
	"github.com/planweave/planweave/internal/lock"
	"github.com/planweave/planweave/internal/types"
)

var (
	lockPersona   string
	unlockPersona string
	unlockForce   bool
)

var lockCmd = &cobra.Command{
	Use:   "lock <section-path>",
	Short: "Lock a bundle section for exclusive editing",
	Long: `Take an advisory lock on a bundle section, e.g. "features.checkout"
or "idea". While held, writes that touch the section by any other persona
are rejected; the lock never expires on its own.

Example:
  planweave lock features.checkout --persona architect`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if lockPersona == "" {
			fatal("--persona is required: locks are persona-scoped")
		}

		p := openProject()
		mgr := lock.NewManager(p.LockPath())

		l, err := mgr.Acquire(args[0], types.Persona(lockPersona), lock.DefaultHolder())
		if err != nil {
			fatal("%v", err)
		}

		rec, done := openRecorder(p)
		defer done()
		rec.Record(context.Background(), audit.Event{
			RunID: newRunID(), Type: audit.EventLockAcquired,
			Path: l.Path, Detail: "section locked", Actor: string(l.Persona),
		})

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Locked %s for persona %s\n", green("✓"), l.Path, l.Persona)
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <section-path>",
	Short: "Release a section lock",
	Long: `Release the lock on a section. Only the holding persona may release
it normally; --force releases anyone's lock, which is how an absent
collaborator's lock is cleared.

Example:
  planweave unlock features.checkout --persona architect
  planweave unlock features.checkout --force`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p := openProject()
		mgr := lock.NewManager(p.LockPath())

		actor := unlockPersona
		if unlockForce {
			released, err := mgr.ForceRelease(args[0])
			if err != nil {
				fatal("%v", err)
			}
			actor = "forced (was " + string(released.Persona) + ")"
		} else {
			if unlockPersona == "" {
				fatal("--persona is required unless --force is given")
			}
			if err := mgr.Release(args[0], types.Persona(unlockPersona)); err != nil {
				fatal("%v", err)
			}
		}

		rec, done := openRecorder(p)
		defer done()
		rec.Record(context.Background(), audit.Event{
			RunID: newRunID(), Type: audit.EventLockReleased,
			Path: args[0], Detail: "section unlocked", Actor: actor,
		})

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Unlocked %s\n", green("✓"), args[0])
	},
}

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "List held section locks",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		p := openProject()
		locks, err := lock.NewManager(p.LockPath()).List()
		if err != nil {
			fatal("%v", err)
		}

		if len(locks) == 0 {
			fmt.Println("No locks held")
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		for _, l := range locks {
			fmt.Printf("  %s  persona=%s holder=%s since=%s\n",
				cyan(l.Path), l.Persona, l.Holder, l.AcquiredAt.Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	lockCmd.Flags().StringVar(&lockPersona, "persona", "", "Persona acquiring the lock")
	unlockCmd.Flags().StringVar(&unlockPersona, "persona", "", "Persona releasing the lock")
	unlockCmd.Flags().BoolVar(&unlockForce, "force", false, "Release regardless of holder (administrative)")
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(locksCmd)
}
