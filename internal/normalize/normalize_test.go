package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain lowercase", "auth", "auth"},
		{"mixed case", "AuthFlow", "authflow"},
		{"underscores stripped", "ide_integration_system", "ideintegrationsystem"},
		{"hyphens stripped", "ide-integration", "ideintegration"},
		{"ordinal prefix with underscore", "041_ide_integration", "ideintegration"},
		{"ordinal prefix with hyphen", "12-payment-flow", "paymentflow"},
		{"bare ordinal prefix", "7retry", "retry"},
		{"only digits", "12345", ""},
		{"empty", "", ""},
		{"separators only", "_-_", ""},
		{"unicode passes through", "café_menu", "cafémenu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.raw))
		})
	}
}

// Normalization must be idempotent: re-normalizing an already canonical key
// changes nothing.
func TestKeyIdempotent(t *testing.T) {
	raws := []string{
		"041_IDE_INTEGRATION_SYSTEM",
		"FEATURE-IDEINTEGRATION",
		"payment-flow",
		"",
		"plain",
	}
	for _, raw := range raws {
		once := Key(raw)
		assert.Equal(t, once, Key(once), "Key should be idempotent for %q", raw)
	}
}

func TestHasOrdinalPrefix(t *testing.T) {
	assert.True(t, HasOrdinalPrefix("041_foo"))
	assert.True(t, HasOrdinalPrefix("12-bar"))
	assert.True(t, HasOrdinalPrefix("7baz"))
	assert.False(t, HasOrdinalPrefix("foo_041"))
	assert.False(t, HasOrdinalPrefix("feature-x"))
	assert.False(t, HasOrdinalPrefix(""))
}

func TestFuzzyConfigValidate(t *testing.T) {
	require.NoError(t, DefaultFuzzyConfig().Validate())

	bad := DefaultFuzzyConfig()
	bad.MaxShortRatio = 1.5
	assert.Error(t, bad.Validate())

	bad = DefaultFuzzyConfig()
	bad.MinRawLength = 0
	assert.Error(t, bad.Validate())
}

func TestFuzzyPrefixEquivalent(t *testing.T) {
	fp, err := NewFuzzyPrefix(DefaultFuzzyConfig())
	require.NoError(t, err)

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{
			// Code-derived class-name key vs. numbered directory name.
			name: "abbreviated vs ordinal-prefixed",
			a:    "FEATURE-IDEINTEGRATION",
			b:    "041_IDE_INTEGRATION_SYSTEM",
			want: true,
		},
		{
			name: "symmetric",
			a:    "041_IDE_INTEGRATION_SYSTEM",
			b:    "FEATURE-IDEINTEGRATION",
			want: true,
		},
		{
			name: "no ordinal prefix on either side",
			a:    "FEATURE-IDEINTEGRATION",
			b:    "IDE_INTEGRATION_SYSTEM",
			want: false,
		},
		{
			name: "too short",
			a:    "01_auth",
			b:    "authx",
			want: false,
		},
		{
			name: "length difference too small",
			a:    "041_payment_flows",
			b:    "payment_flow",
			want: false,
		},
		{
			name: "identical normalized keys are not fuzzy matches",
			a:    "041_ide_integration",
			b:    "ide-integration",
			want: false,
		},
		{
			name: "unrelated keys",
			a:    "041_ide_integration_system",
			b:    "billing_reconciliation_core",
			want: false,
		},
		{
			name: "suffix containment",
			a:    "041_extended_search_indexing_pipeline",
			b:    "STORY-INDEXINGPIPELINE",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fp.Equivalent(tt.a, tt.b))
		})
	}
}

func TestFuzzyPrefixZeroConfigUsesDefaults(t *testing.T) {
	fp, err := NewFuzzyPrefix(FuzzyConfig{})
	require.NoError(t, err)
	assert.True(t, fp.Equivalent("FEATURE-IDEINTEGRATION", "041_IDE_INTEGRATION_SYSTEM"))
}

func TestExactEquivalence(t *testing.T) {
	assert.True(t, Exact.Equivalent("041_ide_integration", "IDE-Integration"))
	assert.False(t, Exact.Equivalent("ide_integration", "ide_integrations"))
}
