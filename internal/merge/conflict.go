// Package merge implements persona-aware three-way merging of plan bundles:
// given a common ancestor and two divergent snapshots, it computes a merged
// document and hands irreconcilable paths to the conflict arbiter, which
// resolves them from declared section ownership or defers them as data.
package merge

import (
	"fmt"

	"github.com/planweave/planweave/internal/types"
)

// Strategy selects how conflicting paths are arbitrated.
type Strategy string

const (
	// StrategyAuto resolves conflicts from declared section ownership and
	// defers anything ownership cannot decide. This is the default.
	StrategyAuto Strategy = "auto"

	// StrategyOurs resolves every conflict to the ours-side value.
	StrategyOurs Strategy = "ours"

	// StrategyTheirs resolves every conflict to the theirs-side value.
	StrategyTheirs Strategy = "theirs"

	// StrategyBase resolves every conflict to the common-ancestor value.
	StrategyBase Strategy = "base"

	// StrategyManual defers every conflict regardless of ownership.
	StrategyManual Strategy = "manual"
)

// ParseStrategy validates a strategy name from user input.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyAuto, StrategyOurs, StrategyTheirs, StrategyBase, StrategyManual:
		return Strategy(s), nil
	case "":
		return StrategyAuto, nil
	default:
		return "", fmt.Errorf("unknown merge strategy %q (want auto, ours, theirs, base, or manual)", s)
	}
}

// OwnershipResolver maps a section path to its declared owning persona.
// Ownership is injected configuration: the arbiter never derives it.
// types.OwnershipMap satisfies this interface.
type OwnershipResolver interface {
	Owner(path string) (types.Persona, bool)
}

// Conflict is one path where ours and theirs both diverged from base in
// different ways. Values are the Go representations of the leaf (string,
// float64, bool, []string) or, for entity-level conflicts such as
// modify-versus-delete, *types.Feature / *types.Story (nil meaning deleted).
type Conflict struct {
	// Path is the dot-addressed location, keyed by normalized entity keys,
	// e.g. "features.ideintegration.title".
	Path string `json:"path"`

	// Base, Ours, Theirs are the three values at the path.
	Base   any `json:"base"`
	Ours   any `json:"ours"`
	Theirs any `json:"theirs"`

	// OursOwner and TheirsOwner record the declared owning persona of the
	// path on each side's manifest (empty when undeclared).
	OursOwner   types.Persona `json:"ours_owner,omitempty"`
	TheirsOwner types.Persona `json:"theirs_owner,omitempty"`

	// Strategy is the arbitration strategy that was applied.
	Strategy Strategy `json:"strategy"`

	// Resolution names how the conflict was settled (e.g. "ownership-ours",
	// "strategy-theirs", "manual"), empty while deferred.
	Resolution string `json:"resolution,omitempty"`

	// ResolvedValue is the final value, nil until resolved.
	ResolvedValue any `json:"resolved_value,omitempty"`

	// Deferred marks a conflict the arbiter could not settle. A
	// non-interactive merge with any deferred conflict remaining fails as a
	// whole; the engine never silently applies a guess.
	Deferred bool `json:"deferred"`
}

// Arbiter resolves or defers merge conflicts using the declared ownership of
// each side's edit.
type Arbiter struct {
	ours   OwnershipResolver
	theirs OwnershipResolver
}

// NewArbiter creates an Arbiter. Either resolver may be nil, meaning that
// side declares no ownership at all.
func NewArbiter(ours, theirs OwnershipResolver) *Arbiter {
	return &Arbiter{ours: ours, theirs: theirs}
}

// Resolve settles the conflict in place according to the strategy, filling
// in ownership metadata, the resolution, and the resolved value, or marking
// the conflict deferred.
//
// Under auto: if exactly one side has a declared owner for the path, that
// side's value wins; if both sides declare the same owner, ours wins (the
// tie-break favors the branch being merged into); if the sides declare
// different owners, or neither declares any, the conflict is deferred.
func (a *Arbiter) Resolve(c *Conflict, strategy Strategy) {
	c.Strategy = strategy

	c.OursOwner, c.TheirsOwner = a.owners(c.Path)

	switch strategy {
	case StrategyOurs:
		c.settle("strategy-ours", c.Ours)
	case StrategyTheirs:
		c.settle("strategy-theirs", c.Theirs)
	case StrategyBase:
		c.settle("strategy-base", c.Base)
	case StrategyManual:
		c.Deferred = true
	default: // StrategyAuto
		a.autoResolve(c)
	}
}

func (a *Arbiter) autoResolve(c *Conflict) {
	oursOwned := c.OursOwner != ""
	theirsOwned := c.TheirsOwner != ""

	switch {
	case oursOwned && !theirsOwned:
		c.settle("ownership-ours", c.Ours)
	case theirsOwned && !oursOwned:
		c.settle("ownership-theirs", c.Theirs)
	case oursOwned && theirsOwned && c.OursOwner == c.TheirsOwner:
		c.settle("ownership-tie-ours", c.Ours)
	default:
		// Different owners, or no ownership declared on either side:
		// not auto-resolvable.
		c.Deferred = true
	}
}

func (a *Arbiter) owners(path string) (ours, theirs types.Persona) {
	if a.ours != nil {
		if p, ok := a.ours.Owner(path); ok {
			ours = p
		}
	}
	if a.theirs != nil {
		if p, ok := a.theirs.Owner(path); ok {
			theirs = p
		}
	}
	return ours, theirs
}

func (c *Conflict) settle(resolution string, value any) {
	c.Resolution = resolution
	c.ResolvedValue = value
	c.Deferred = false
}

// SettleManually records an externally supplied resolution (interactive or
// scripted) for a deferred conflict.
func (c *Conflict) SettleManually(value any) {
	c.settle("manual", value)
}

// CountDeferred returns how many conflicts remain deferred.
func CountDeferred(conflicts []Conflict) int {
	n := 0
	for i := range conflicts {
		if conflicts[i].Deferred {
			n++
		}
	}
	return n
}
