package merge

import (
	"fmt"
	"reflect"

	"github.com/planweave/planweave/internal/match"
	"github.com/planweave/planweave/internal/normalize"
	"github.com/planweave/planweave/internal/types"
)

// Engine performs the three-way bundle merge.
type Engine struct {
	matcher *match.Matcher
}

// NewEngine creates a merge engine using the given matcher for entity
// alignment across the three snapshots.
func NewEngine(m *match.Matcher) *Engine {
	return &Engine{matcher: m}
}

// Options configures one merge invocation.
type Options struct {
	// Strategy selects conflict arbitration. Empty means auto.
	Strategy Strategy

	// OursOwners and TheirsOwners are the declared ownership maps of each
	// side's edit, supplied externally via the project manifests.
	OursOwners   OwnershipResolver
	TheirsOwners OwnershipResolver
}

// Merge combines ours and theirs using their common ancestor base. Keys are
// normalized first, so structurally equivalent entities authored under
// different raw keys are treated as the same path. For every leaf path with
// base value b, ours value o, theirs value t:
//
//	o == t          -> take o
//	o == b, t != b  -> theirs changed, take t
//	t == b, o != b  -> ours changed, take o
//	otherwise       -> conflict, handed to the arbiter
//
// List-valued fields merge as sets: additions by either side are unioned, an
// element removed by one side stays removed, removed by both stays removed.
//
// The merged bundle is returned together with every conflict encountered,
// resolved or deferred. While any conflict is deferred the merged bundle
// carries the ours-side value at that path as a placeholder and must not be
// persisted; callers either fail the merge or settle the conflicts and apply
// the resolutions.
func (e *Engine) Merge(base, ours, theirs *types.Bundle, opts Options) (*types.Bundle, []Conflict, error) {
	sides := []struct {
		name   string
		bundle *types.Bundle
	}{{"base", base}, {"ours", ours}, {"theirs", theirs}}
	for _, s := range sides {
		if s.bundle == nil {
			return nil, nil, fmt.Errorf("%s bundle is nil", s.name)
		}
		if err := s.bundle.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%s bundle is malformed: %w", s.name, err)
		}
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyAuto
	}

	run := &mergeRun{
		arbiter:  NewArbiter(opts.OursOwners, opts.TheirsOwners),
		strategy: strategy,
	}

	merged := &types.Bundle{Version: ours.Version}

	merged.Idea = run.mergeIdea(base.Idea, ours.Idea, theirs.Idea)
	merged.Metadata = run.mergeMetadata(base.Metadata, ours.Metadata, theirs.Metadata)
	merged.Features = run.mergeFeatures(e.matcher, base.Features, ours.Features, theirs.Features)
	merged.Clarifications = mergeClarifications(base.Clarifications, ours.Clarifications, theirs.Clarifications)

	return merged, run.conflicts, nil
}

// mergeRun accumulates conflicts for one invocation.
type mergeRun struct {
	arbiter   *Arbiter
	strategy  Strategy
	conflicts []Conflict
}

// scalar applies the tri-state rule at one leaf path, returning the merged
// value. Conflicting paths go through the arbiter; a deferred conflict
// leaves the ours value in place as a placeholder.
func (r *mergeRun) scalar(path string, b, o, t any) any {
	if reflect.DeepEqual(o, t) {
		return o
	}
	if reflect.DeepEqual(o, b) {
		return t
	}
	if reflect.DeepEqual(t, b) {
		return o
	}

	c := Conflict{Path: path, Base: b, Ours: o, Theirs: t}
	r.arbiter.Resolve(&c, r.strategy)
	r.conflicts = append(r.conflicts, c)
	if c.Deferred {
		return o
	}
	return c.ResolvedValue
}

func (r *mergeRun) mergeIdea(b, o, t *types.IdeaBlock) *types.IdeaBlock {
	get := func(i *types.IdeaBlock) (string, string) {
		if i == nil {
			return "", ""
		}
		return i.Title, i.Context
	}
	bTitle, bCtx := get(b)
	oTitle, oCtx := get(o)
	tTitle, tCtx := get(t)

	title, _ := r.scalar("idea.title", bTitle, oTitle, tTitle).(string)
	context, _ := r.scalar("idea.context", bCtx, oCtx, tCtx).(string)

	if title == "" && context == "" {
		return nil
	}
	return &types.IdeaBlock{Title: title, Context: context}
}

func (r *mergeRun) mergeMetadata(b, o, t types.Metadata) types.Metadata {
	out := types.Metadata{}
	out.Stage, _ = r.scalar("metadata.stage", b.Stage, o.Stage, t.Stage).(types.Stage)
	out.Provenance, _ = r.scalar("metadata.provenance", b.Provenance, o.Provenance, t.Provenance).(string)

	// Timestamps are bookkeeping, not content: creation survives from the
	// oldest record, update time is stamped by the store on save.
	out.CreatedAt = o.CreatedAt
	if !b.CreatedAt.IsZero() {
		out.CreatedAt = b.CreatedAt
	}
	return out
}

// featureGroup aligns one logical feature across the three snapshots.
// Any of the three may be nil.
type featureGroup struct {
	key    string // normalized path key
	base   *types.Feature
	ours   *types.Feature
	theirs *types.Feature
}

func (r *mergeRun) mergeFeatures(m *match.Matcher, base, ours, theirs []types.Feature) []types.Feature {
	groups := alignFeatures(m, base, ours, theirs)

	var out []types.Feature
	for _, g := range groups {
		if f, keep := r.mergeFeatureGroup(m, g); keep {
			out = append(out, f)
		}
	}
	return out
}

// alignFeatures groups features across the three snapshots by equivalent
// keys: ours and theirs are matched against base first, then the leftovers
// against each other. Output order is deterministic: base order, then
// ours-side additions, then theirs-only additions.
func alignFeatures(m *match.Matcher, base, ours, theirs []types.Feature) []featureGroup {
	resBO := m.MatchFeatures(base, ours)
	resBT := m.MatchFeatures(base, theirs)

	oursByBase := make(map[*types.Feature]*types.Feature, len(resBO.Pairs))
	for _, p := range resBO.Pairs {
		oursByBase[p.A] = p.B
	}
	theirsByBase := make(map[*types.Feature]*types.Feature, len(resBT.Pairs))
	for _, p := range resBT.Pairs {
		theirsByBase[p.A] = p.B
	}

	var groups []featureGroup
	for i := range base {
		bf := &base[i]
		groups = append(groups, featureGroup{
			key:    normalize.Key(bf.Key),
			base:   bf,
			ours:   oursByBase[bf],
			theirs: theirsByBase[bf],
		})
	}

	// Features with no base counterpart: pair ours-only against
	// theirs-only so both-sides additions merge instead of duplicating.
	oursOnly := derefFeatures(resBO.OnlyB)
	theirsOnly := derefFeatures(resBT.OnlyB)
	resOT := m.MatchFeatures(oursOnly, theirsOnly)

	theirsForOurs := make(map[*types.Feature]*types.Feature, len(resOT.Pairs))
	for _, p := range resOT.Pairs {
		theirsForOurs[p.A] = p.B
	}
	for i := range oursOnly {
		of := &oursOnly[i]
		groups = append(groups, featureGroup{
			key:    normalize.Key(of.Key),
			ours:   of,
			theirs: theirsForOurs[of],
		})
	}
	for _, tf := range resOT.OnlyB {
		groups = append(groups, featureGroup{
			key:    normalize.Key(tf.Key),
			theirs: tf,
		})
	}

	return groups
}

func derefFeatures(ptrs []*types.Feature) []types.Feature {
	out := make([]types.Feature, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// mergeFeatureGroup merges one aligned group. The second return value is
// false when the feature is absent from the merged result.
func (r *mergeRun) mergeFeatureGroup(m *match.Matcher, g featureGroup) (types.Feature, bool) {
	path := "features." + g.key

	switch {
	case g.base != nil && g.ours == nil && g.theirs == nil:
		// Removed by both sides.
		return types.Feature{}, false

	case g.base != nil && g.ours == nil:
		// Removed by ours. If theirs left it untouched the removal wins;
		// if theirs modified it, this is a modify-versus-delete conflict.
		if !featureModified(g.base, g.theirs) {
			return types.Feature{}, false
		}
		return r.entityConflict(path, g.base, nil, g.theirs)

	case g.base != nil && g.theirs == nil:
		if !featureModified(g.base, g.ours) {
			return types.Feature{}, false
		}
		return r.entityConflict(path, g.base, g.ours, nil)

	case g.base == nil && g.ours == nil:
		// Added by theirs only.
		return *g.theirs, true

	case g.base == nil && g.theirs == nil:
		// Added by ours only.
		return *g.ours, true
	}

	// Present in ours and theirs (base may be nil when both sides added
	// an equivalent entity independently).
	var baseF types.Feature
	if g.base != nil {
		baseF = *g.base
	}

	out := types.Feature{}
	out.Key = g.ours.Key
	out.Title, _ = r.scalar(path+".title", baseF.Title, g.ours.Title, g.theirs.Title).(string)
	out.Confidence, _ = r.scalar(path+".confidence", baseF.Confidence, g.ours.Confidence, g.theirs.Confidence).(float64)
	out.Draft, _ = r.scalar(path+".draft", baseF.Draft, g.ours.Draft, g.theirs.Draft).(bool)
	out.Outcomes = mergeSet(baseF.Outcomes, g.ours.Outcomes, g.theirs.Outcomes)
	out.Acceptance = mergeSet(baseF.Acceptance, g.ours.Acceptance, g.theirs.Acceptance)
	out.Constraints = mergeSet(baseF.Constraints, g.ours.Constraints, g.theirs.Constraints)
	out.Stories = r.mergeStories(m, path, baseF.Stories, g.ours.Stories, g.theirs.Stories)
	return out, true
}

// entityConflict arbitrates a modify-versus-delete conflict. The resolved
// value is the surviving entity, or nil for deletion.
func (r *mergeRun) entityConflict(path string, base, ours, theirs *types.Feature) (types.Feature, bool) {
	c := Conflict{Path: path, Base: base, Ours: ours, Theirs: theirs}
	r.arbiter.Resolve(&c, r.strategy)
	r.conflicts = append(r.conflicts, c)

	chosen := ours
	if !c.Deferred {
		chosen, _ = c.ResolvedValue.(*types.Feature)
	}
	if chosen == nil {
		return types.Feature{}, false
	}
	return *chosen, true
}

func (r *mergeRun) mergeStories(m *match.Matcher, featurePath string, base, ours, theirs []types.Story) []types.Story {
	groups := alignStories(m, base, ours, theirs)

	var out []types.Story
	for _, g := range groups {
		if s, keep := r.mergeStoryGroup(featurePath, g); keep {
			out = append(out, s)
		}
	}
	return out
}

type storyGroup struct {
	key    string
	base   *types.Story
	ours   *types.Story
	theirs *types.Story
}

func alignStories(m *match.Matcher, base, ours, theirs []types.Story) []storyGroup {
	resBO := m.MatchStories(base, ours)
	resBT := m.MatchStories(base, theirs)

	oursByBase := make(map[*types.Story]*types.Story, len(resBO.Pairs))
	for _, p := range resBO.Pairs {
		oursByBase[p.A] = p.B
	}
	theirsByBase := make(map[*types.Story]*types.Story, len(resBT.Pairs))
	for _, p := range resBT.Pairs {
		theirsByBase[p.A] = p.B
	}

	var groups []storyGroup
	for i := range base {
		bs := &base[i]
		groups = append(groups, storyGroup{
			key:    normalize.Key(bs.Key),
			base:   bs,
			ours:   oursByBase[bs],
			theirs: theirsByBase[bs],
		})
	}

	oursOnly := derefStories(resBO.OnlyB)
	theirsOnly := derefStories(resBT.OnlyB)
	resOT := m.MatchStories(oursOnly, theirsOnly)

	theirsForOurs := make(map[*types.Story]*types.Story, len(resOT.Pairs))
	for _, p := range resOT.Pairs {
		theirsForOurs[p.A] = p.B
	}
	for i := range oursOnly {
		os := &oursOnly[i]
		groups = append(groups, storyGroup{
			key:    normalize.Key(os.Key),
			ours:   os,
			theirs: theirsForOurs[os],
		})
	}
	for _, ts := range resOT.OnlyB {
		groups = append(groups, storyGroup{
			key:    normalize.Key(ts.Key),
			theirs: ts,
		})
	}

	return groups
}

func derefStories(ptrs []*types.Story) []types.Story {
	out := make([]types.Story, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

func (r *mergeRun) mergeStoryGroup(featurePath string, g storyGroup) (types.Story, bool) {
	path := featurePath + ".stories." + g.key

	switch {
	case g.base != nil && g.ours == nil && g.theirs == nil:
		return types.Story{}, false

	case g.base != nil && g.ours == nil:
		if !storyModified(g.base, g.theirs) {
			return types.Story{}, false
		}
		return r.storyEntityConflict(path, g.base, nil, g.theirs)

	case g.base != nil && g.theirs == nil:
		if !storyModified(g.base, g.ours) {
			return types.Story{}, false
		}
		return r.storyEntityConflict(path, g.base, g.ours, nil)

	case g.base == nil && g.ours == nil:
		return *g.theirs, true

	case g.base == nil && g.theirs == nil:
		return *g.ours, true
	}

	var baseS types.Story
	if g.base != nil {
		baseS = *g.base
	}

	out := types.Story{}
	out.Key = g.ours.Key
	out.Title, _ = r.scalar(path+".title", baseS.Title, g.ours.Title, g.theirs.Title).(string)
	out.Confidence, _ = r.scalar(path+".confidence", baseS.Confidence, g.ours.Confidence, g.theirs.Confidence).(float64)
	out.Draft, _ = r.scalar(path+".draft", baseS.Draft, g.ours.Draft, g.theirs.Draft).(bool)
	out.Acceptance = mergeSet(baseS.Acceptance, g.ours.Acceptance, g.theirs.Acceptance)
	out.Tags = mergeSet(baseS.Tags, g.ours.Tags, g.theirs.Tags)
	return out, true
}

func (r *mergeRun) storyEntityConflict(path string, base, ours, theirs *types.Story) (types.Story, bool) {
	c := Conflict{Path: path, Base: base, Ours: ours, Theirs: theirs}
	r.arbiter.Resolve(&c, r.strategy)
	r.conflicts = append(r.conflicts, c)

	chosen := ours
	if !c.Deferred {
		chosen, _ = c.ResolvedValue.(*types.Story)
	}
	if chosen == nil {
		return types.Story{}, false
	}
	return *chosen, true
}

// mergeSet performs the three-way set merge on a list-valued field. An
// element in base survives only if neither side removed it; an element
// absent from base is an addition and is kept. Order is deterministic:
// surviving base elements first, then ours additions, then theirs additions.
func mergeSet(base, ours, theirs []string) []string {
	inBase := toSet(base)
	inOurs := toSet(ours)
	inTheirs := toSet(theirs)

	var out []string
	seen := make(map[string]struct{})
	add := func(s string) {
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	for _, s := range base {
		_, o := inOurs[s]
		_, t := inTheirs[s]
		if o && t {
			add(s)
		}
	}
	for _, s := range ours {
		if _, b := inBase[s]; !b {
			add(s)
		}
	}
	for _, s := range theirs {
		if _, b := inBase[s]; !b {
			add(s)
		}
	}
	return out
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, s := range list {
		set[s] = struct{}{}
	}
	return set
}

// mergeClarifications unions the append-only logs: base entries in order,
// then ours additions, then theirs additions, keyed by entry ID.
func mergeClarifications(base, ours, theirs []types.Clarification) []types.Clarification {
	seen := make(map[string]struct{}, len(base))
	var out []types.Clarification
	add := func(c types.Clarification) {
		if _, dup := seen[c.ID]; dup {
			return
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	for _, c := range base {
		add(c)
	}
	for _, c := range ours {
		add(c)
	}
	for _, c := range theirs {
		add(c)
	}
	return out
}

// featureModified reports whether a feature's content diverged from base,
// ignoring the raw key (different producers may spell the same entity's key
// differently).
func featureModified(base, other *types.Feature) bool {
	if base == nil || other == nil {
		return base != other
	}
	if base.Title != other.Title ||
		base.Confidence != other.Confidence ||
		base.Draft != other.Draft {
		return true
	}
	if !sameSet(base.Outcomes, other.Outcomes) ||
		!sameSet(base.Acceptance, other.Acceptance) ||
		!sameSet(base.Constraints, other.Constraints) {
		return true
	}
	if len(base.Stories) != len(other.Stories) {
		return true
	}
	for i := range base.Stories {
		if storyModified(&base.Stories[i], &other.Stories[i]) {
			return true
		}
	}
	return false
}

func storyModified(base, other *types.Story) bool {
	if base == nil || other == nil {
		return base != other
	}
	return base.Title != other.Title ||
		base.Confidence != other.Confidence ||
		base.Draft != other.Draft ||
		!sameSet(base.Acceptance, other.Acceptance) ||
		!sameSet(base.Tags, other.Tags)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := toSet(a)
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
