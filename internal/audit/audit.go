// Package audit records what the reconciliation tooling decided and why:
// fuzzy key matches, duplicate merges, conflict arbitration outcomes, and
// rejected lock-gated writes. The trail answers "why did the merge pick that
// value" long after the run that picked it.
package audit

import (
	"context"
	"time"
)

// Event types recorded in the trail.
const (
	EventFuzzyMatch     = "fuzzy_match"
	EventDuplicateMerge = "duplicate_merge"
	EventArbitration    = "arbitration"
	EventLockDenied     = "lock_denied"
	EventLockAcquired   = "lock_acquired"
	EventLockReleased   = "lock_released"
	EventBundleWrite    = "bundle_write"
	EventCompare        = "compare"
)

// Event is one recorded decision.
type Event struct {
	// ID is assigned by the store.
	ID int64

	// RunID groups the events of one command invocation.
	RunID string

	// Type is one of the Event* constants.
	Type string

	// Path is the bundle path the decision concerns, when it has one.
	Path string

	// Detail is a human-readable account of the decision, e.g.
	// `fuzzy key match: "FEATURE-IDEINTEGRATION" ~ "041_IDE_INTEGRATION_SYSTEM"`.
	Detail string

	// Actor is who or what made the decision: a persona name, a merge
	// strategy, or the holder identity for lock events.
	Actor string

	// CreatedAt is when the event was recorded.
	CreatedAt time.Time
}

// Filter narrows a trail query. Zero fields match everything.
type Filter struct {
	RunID string
	Type  string
	Limit int
}

// Recorder accepts audit events. Recording must never block or fail the
// operation being audited, so implementations swallow their own errors and
// callers fire events without checking.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Nop is a Recorder that discards everything. It stands in wherever a trail
// is not configured, so engine call sites never nil-check.
type Nop struct{}

func (Nop) Record(ctx context.Context, e Event) {}
