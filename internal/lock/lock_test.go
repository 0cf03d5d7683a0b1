package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planweave/planweave/internal/types"
)

func manager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(filepath.Join(t.TempDir(), "locks.json"))
}

func TestAcquireAndList(t *testing.T) {
	m := manager(t)

	l, err := m.Acquire("features.checkout", "architect", "alice@dev:100")
	require.NoError(t, err)
	assert.Equal(t, "features.checkout", l.Path)
	assert.Equal(t, types.Persona("architect"), l.Persona)
	assert.False(t, l.AcquiredAt.IsZero())

	locks, err := m.List()
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, "alice@dev:100", locks[0].Holder)
}

// The pre-write gate: a write touching a section locked by another persona
// is rejected, with the error naming the current owner; nothing is modified.
func TestCheckRejectsOverlappingWrite(t *testing.T) {
	m := manager(t)

	_, err := m.Acquire("features.checkout", "architect", "alice@dev:100")
	require.NoError(t, err)

	err = m.Check([]string{"features.checkout.stories.guest.title"}, "product")
	require.Error(t, err)

	var locked *AlreadyLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, "alice@dev:100", locked.Lock.Holder)
	assert.Equal(t, types.Persona("architect"), locked.Lock.Persona)
	assert.Contains(t, err.Error(), "alice@dev:100")

	// The same write by the holding persona passes.
	assert.NoError(t, m.Check([]string{"features.checkout.stories.guest.title"}, "architect"))

	// Disjoint sections are never blocked.
	assert.NoError(t, m.Check([]string{"features.billing.title"}, "product"))
}

// A lock taken under one producer's key spelling covers the same entity
// addressed under another's: overlap is computed on normalized keys.
func TestLocksMatchAcrossKeySpellings(t *testing.T) {
	m := manager(t)

	_, err := m.Acquire("features.041_checkout", "architect", "alice@dev:100")
	require.NoError(t, err)

	// The unprefixed spelling addresses the same section.
	err = m.Check([]string{"features.checkout.title"}, "product")
	var locked *AlreadyLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, "features.041_checkout", locked.Lock.Path)

	// So does a differently separated one.
	_, err = m.Acquire("features.CHECK-OUT", "product", "bob@dev:200")
	require.ErrorAs(t, err, &locked)

	// Release accepts any spelling of the held section.
	require.NoError(t, m.Release("features.checkout", "architect"))
	assert.NoError(t, m.Check([]string{"features.checkout.title"}, "product"))
}

func TestCheckCoversBothDirections(t *testing.T) {
	m := manager(t)

	_, err := m.Acquire("features.checkout.title", "architect", "alice@dev:100")
	require.NoError(t, err)

	// A whole-section write overlaps a lock held deeper inside it.
	err = m.Check([]string{"features.checkout"}, "product")
	var locked *AlreadyLockedError
	require.ErrorAs(t, err, &locked)
}

func TestAcquireConflicts(t *testing.T) {
	m := manager(t)

	_, err := m.Acquire("features.checkout", "architect", "alice@dev:100")
	require.NoError(t, err)

	// Another persona cannot lock inside the held section.
	_, err = m.Acquire("features.checkout.stories.guest", "product", "bob@dev:200")
	var locked *AlreadyLockedError
	require.ErrorAs(t, err, &locked)

	// The identical path cannot be re-acquired, even by the same persona.
	_, err = m.Acquire("features.checkout", "architect", "alice@dev:100")
	require.ErrorAs(t, err, &locked)

	// The same persona may hold overlapping but distinct sections.
	_, err = m.Acquire("features.checkout.stories.guest", "architect", "alice@dev:100")
	assert.NoError(t, err)
}

func TestRelease(t *testing.T) {
	m := manager(t)

	_, err := m.Acquire("features.checkout", "architect", "alice@dev:100")
	require.NoError(t, err)

	// Wrong persona cannot release.
	err = m.Release("features.checkout", "product")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "held by persona architect")

	require.NoError(t, m.Release("features.checkout", "architect"))

	locks, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, locks)

	assert.Error(t, m.Release("features.checkout", "architect"), "double release fails")
}

// Administrative release works regardless of holder, so a crashed process
// cannot wedge the bundle forever.
func TestForceRelease(t *testing.T) {
	m := manager(t)

	_, err := m.Acquire("features.checkout", "architect", "ghost@gone:999")
	require.NoError(t, err)

	released, err := m.ForceRelease("features.checkout")
	require.NoError(t, err)
	assert.Equal(t, "ghost@gone:999", released.Holder)

	assert.NoError(t, m.Check([]string{"features.checkout.title"}, "product"))

	_, err = m.ForceRelease("features.checkout")
	assert.Error(t, err)
}

// Lock exclusivity: two different personas can never both hold locks that
// cover the same path.
func TestLockExclusivity(t *testing.T) {
	m := manager(t)

	paths := []string{
		"features.checkout",
		"features.checkout.title",
		"features.checkout.stories.guest",
		"features.billing",
	}
	personas := []types.Persona{"architect", "product"}

	for _, p := range paths {
		for _, persona := range personas {
			m.Acquire(p, persona, string(persona)+"@dev:1")
		}
	}

	locks, err := m.List()
	require.NoError(t, err)
	for i, a := range locks {
		for _, b := range locks[i+1:] {
			if a.Persona != b.Persona {
				assert.False(t, a.Covers(b.Path),
					"personas %s and %s hold overlapping locks %q and %q",
					a.Persona, b.Persona, a.Path, b.Path)
			}
		}
	}
}

func TestMissingTableIsEmpty(t *testing.T) {
	m := manager(t)

	locks, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, locks)
	assert.NoError(t, m.Check([]string{"features.checkout"}, "architect"))
}

func TestCorruptTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locks.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	m := NewManager(path)
	_, err := m.List()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt lock table")

	var locked *AlreadyLockedError
	assert.False(t, errors.As(err, &locked))
}

func TestDefaultHolder(t *testing.T) {
	h := DefaultHolder()
	assert.Contains(t, h, "@")
	assert.Contains(t, h, ":")
}
