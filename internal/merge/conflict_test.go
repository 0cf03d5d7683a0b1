package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/internal/types"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"auto", StrategyAuto, false},
		{"ours", StrategyOurs, false},
		{"theirs", StrategyTheirs, false},
		{"base", StrategyBase, false},
		{"manual", StrategyManual, false},
		{"", StrategyAuto, false},
		{"rebase", "", true},
		{"OURS", "", true},
	}

	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestArbiterFixedStrategies(t *testing.T) {
	mk := func() *Conflict {
		return &Conflict{Path: "features.checkout.title", Base: "b", Ours: "o", Theirs: "t"}
	}

	a := NewArbiter(nil, nil)

	c := mk()
	a.Resolve(c, StrategyOurs)
	assert.False(t, c.Deferred)
	assert.Equal(t, "o", c.ResolvedValue)
	assert.Equal(t, "strategy-ours", c.Resolution)

	c = mk()
	a.Resolve(c, StrategyTheirs)
	assert.Equal(t, "t", c.ResolvedValue)

	c = mk()
	a.Resolve(c, StrategyBase)
	assert.Equal(t, "b", c.ResolvedValue)

	c = mk()
	a.Resolve(c, StrategyManual)
	assert.True(t, c.Deferred)
	assert.Empty(t, c.Resolution)
	assert.Nil(t, c.ResolvedValue)
}

func TestArbiterAutoOwnership(t *testing.T) {
	path := "features.checkout.confidence"
	owned := types.OwnershipMap{"product": {"features.checkout"}}
	otherOwned := types.OwnershipMap{"architect": {"features.checkout"}}

	tests := []struct {
		name         string
		ours, theirs OwnershipResolver
		wantDeferred bool
		wantRes      string
		wantValue    any
	}{
		{"only ours owned", owned, nil, false, "ownership-ours", 0.8},
		{"only theirs owned", nil, owned, false, "ownership-theirs", 0.6},
		{"same owner ties to ours", owned, owned, false, "ownership-tie-ours", 0.8},
		{"different owners defer", owned, otherOwned, true, "", nil},
		{"no owners defer", nil, nil, true, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Conflict{Path: path, Base: 0.5, Ours: 0.8, Theirs: 0.6}
			NewArbiter(tt.ours, tt.theirs).Resolve(c, StrategyAuto)

			assert.Equal(t, tt.wantDeferred, c.Deferred)
			assert.Equal(t, tt.wantRes, c.Resolution)
			assert.Equal(t, tt.wantValue, c.ResolvedValue)
		})
	}
}

func TestArbiterRecordsOwners(t *testing.T) {
	c := &Conflict{Path: "features.checkout.title", Base: "b", Ours: "o", Theirs: "t"}
	NewArbiter(
		types.OwnershipMap{"product": {"features.checkout"}},
		types.OwnershipMap{"architect": {"features"}},
	).Resolve(c, StrategyManual)

	assert.Equal(t, types.Persona("product"), c.OursOwner)
	assert.Equal(t, types.Persona("architect"), c.TheirsOwner)
	assert.True(t, c.Deferred, "manual defers even with owners recorded")
}

func TestSettleManually(t *testing.T) {
	c := &Conflict{Path: "features.checkout.title", Base: "b", Ours: "o", Theirs: "t"}
	NewArbiter(nil, nil).Resolve(c, StrategyAuto)
	require.True(t, c.Deferred)

	c.SettleManually("picked by hand")
	assert.False(t, c.Deferred)
	assert.Equal(t, "manual", c.Resolution)
	assert.Equal(t, "picked by hand", c.ResolvedValue)
}

func TestCountDeferred(t *testing.T) {
	conflicts := []Conflict{
		{Deferred: true},
		{Deferred: false},
		{Deferred: true},
	}
	assert.Equal(t, 2, CountDeferred(conflicts))
	assert.Zero(t, CountDeferred(nil))
}
