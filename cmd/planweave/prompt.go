package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/planweave/planweave/internal/advisor"
	"github.com/planweave/planweave/internal/merge"
	"github.com/planweave/planweave/internal/types"
)

// conflictPrompt drives interactive resolution of deferred merge conflicts.
type conflictPrompt struct {
	rl *readline.Instance
}

func newConflictPrompt() (*conflictPrompt, error) {
	rl, err := readline.New("resolve> ")
	if err != nil {
		return nil, err
	}
	return &conflictPrompt{rl: rl}, nil
}

func (p *conflictPrompt) Close() error {
	return p.rl.Close()
}

// resolve shows one deferred conflict and loops until the operator settles
// or skips it. A skipped conflict stays deferred.
func (p *conflictPrompt) resolve(ctx context.Context, merged *types.Bundle, c *merge.Conflict, adv *advisor.Advisor) error {
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s Conflict at %s\n", yellow("!"), cyan(c.Path))
	fmt.Printf("  base:   %v\n", c.Base)
	fmt.Printf("  ours:   %v%s\n", c.Ours, ownerNote(c.OursOwner))
	fmt.Printf("  theirs: %v%s\n", c.Theirs, ownerNote(c.TheirsOwner))

	if adv != nil {
		if s, err := adv.Suggest(ctx, c); err != nil {
			fmt.Printf("  %s advisor unavailable: %v\n", gray("→"), err)
		} else {
			fmt.Printf("  %s advisor suggests %s: %s\n", gray("→"), s.Pick, s.Rationale)
		}
	}

	for {
		fmt.Println("  [o]urs  [t]heirs  [b]ase  [e]dit  [s]kip")
		line, err := p.rl.Readline()
		if err != nil {
			return fmt.Errorf("prompt aborted: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "o", "ours":
			return merge.ApplyResolution(merged, c, c.Ours)
		case "t", "theirs":
			return merge.ApplyResolution(merged, c, c.Theirs)
		case "b", "base":
			return merge.ApplyResolution(merged, c, c.Base)
		case "e", "edit":
			p.rl.SetPrompt("value> ")
			raw, err := p.rl.Readline()
			p.rl.SetPrompt("resolve> ")
			if err != nil {
				return fmt.Errorf("prompt aborted: %w", err)
			}
			value, err := merge.ParseValue(c.Path, strings.TrimSpace(raw))
			if err != nil {
				fmt.Printf("  %v\n", err)
				continue
			}
			return merge.ApplyResolution(merged, c, value)
		case "s", "skip":
			return nil
		default:
			continue
		}
	}
}

func ownerNote(p types.Persona) string {
	if p == "" {
		return ""
	}
	return fmt.Sprintf("  (owned by %s)", p)
}
