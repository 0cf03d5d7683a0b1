// Package lock implements advisory section locks over a plan bundle. Locks
// are persona-scoped and path-based: a lock on "features.checkout" covers
// every path underneath it, and writes that touch a section locked by another
// persona are rejected before anything is modified. Locks never expire on
// their own; they are held until released.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/planweave/planweave/internal/normalize"
	"github.com/planweave/planweave/internal/types"
)

// SectionLock is one held lock in the lock table.
type SectionLock struct {
	// Path is the dot-addressed section the lock covers, e.g.
	// "features.checkout" or "features.checkout.stories.guest".
	Path string `json:"path"`

	// Persona is the role holding the lock. Overlap checks are scoped to
	// personas: a persona never blocks itself on overlapping sections.
	Persona types.Persona `json:"persona"`

	// Holder identifies the acquiring process, typically user@host:pid.
	Holder     string    `json:"holder"`
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Covers reports whether the lock's section contains the target path,
// in either direction: locking "features.checkout" blocks a write to
// "features.checkout.title", and locking "features.checkout.title" blocks
// a whole-section write to "features.checkout". Both paths are canonicalized
// first, so a lock taken under one producer's key spelling still covers the
// same entity addressed under another's.
func (l SectionLock) Covers(path string) bool {
	lp, tp := canonicalPath(l.Path), canonicalPath(path)
	return types.PathCovers(lp, tp) || types.PathCovers(tp, lp)
}

// canonicalPath normalizes the key segment after each "features" or
// "stories" segment, so "features.041_checkout.title" and
// "features.checkout.title" address the same section. Overlap and equality
// checks always run on canonical paths.
func canonicalPath(path string) string {
	segs := strings.Split(path, ".")
	for i := 0; i < len(segs)-1; i++ {
		if segs[i] == "features" || segs[i] == "stories" {
			segs[i+1] = normalize.Key(segs[i+1])
			i++
		}
	}
	return strings.Join(segs, ".")
}

// AlreadyLockedError reports a section that could not be acquired or written
// because an overlapping lock is held. It names the owner so the caller can
// negotiate a release.
type AlreadyLockedError struct {
	Path string
	Lock SectionLock
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("section %q is locked by %s (persona %s, since %s)",
		e.Lock.Path, e.Lock.Holder, e.Lock.Persona,
		e.Lock.AcquiredAt.Format(time.RFC3339))
}

// Manager persists the lock table as a JSON file and enforces overlap rules.
// Every operation re-reads the table, so concurrent processes sharing the
// file observe each other's locks.
type Manager struct {
	path string
}

// NewManager creates a Manager backed by the lock table at path. A missing
// file is an empty table.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// DefaultHolder builds the user@host:pid identity for locks acquired by this
// process.
func DefaultHolder() string {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s@%s:%d", user, hostname, os.Getpid())
}

// Acquire takes a lock on the section for the persona. It fails with
// *AlreadyLockedError if another persona holds an overlapping lock, or if
// the same section (under any key spelling) is already locked by anyone,
// including the requesting persona; locks are not reentrant.
func (m *Manager) Acquire(path string, persona types.Persona, holder string) (*SectionLock, error) {
	locks, err := m.load()
	if err != nil {
		return nil, err
	}

	for _, l := range locks {
		if canonicalPath(l.Path) == canonicalPath(path) {
			return nil, &AlreadyLockedError{Path: path, Lock: l}
		}
		if l.Persona != persona && l.Covers(path) {
			return nil, &AlreadyLockedError{Path: path, Lock: l}
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	acquired := SectionLock{
		Path:       path,
		Persona:    persona,
		Holder:     holder,
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now().UTC(),
	}

	locks = append(locks, acquired)
	if err := m.save(locks); err != nil {
		return nil, err
	}
	return &acquired, nil
}

// Release removes the lock on the exact path, provided the requesting persona
// holds it. Releasing a lock held by someone else requires ForceRelease.
func (m *Manager) Release(path string, persona types.Persona) error {
	locks, err := m.load()
	if err != nil {
		return err
	}

	for i, l := range locks {
		if canonicalPath(l.Path) != canonicalPath(path) {
			continue
		}
		if l.Persona != persona {
			return fmt.Errorf("lock on %q is held by persona %s, not %s (use a forced release)",
				path, l.Persona, persona)
		}
		return m.save(append(locks[:i], locks[i+1:]...))
	}
	return fmt.Errorf("no lock held on %q", path)
}

// ForceRelease removes the lock on the exact path regardless of who holds
// it. Administrative release is always permitted: a crashed or absent holder
// must never wedge the bundle, since locks have no expiry.
func (m *Manager) ForceRelease(path string) (*SectionLock, error) {
	locks, err := m.load()
	if err != nil {
		return nil, err
	}

	for i, l := range locks {
		if canonicalPath(l.Path) == canonicalPath(path) {
			if err := m.save(append(locks[:i], locks[i+1:]...)); err != nil {
				return nil, err
			}
			return &l, nil
		}
	}
	return nil, fmt.Errorf("no lock held on %q", path)
}

// Check is the pre-write gate. It verifies that none of the paths the write
// will touch overlaps a lock held by another persona, and returns
// *AlreadyLockedError on the first collision. Callers run Check before
// modifying anything, so a rejected write leaves the bundle untouched.
func (m *Manager) Check(paths []string, persona types.Persona) error {
	locks, err := m.load()
	if err != nil {
		return err
	}

	for _, p := range paths {
		for _, l := range locks {
			if l.Persona != persona && l.Covers(p) {
				return &AlreadyLockedError{Path: p, Lock: l}
			}
		}
	}
	return nil
}

// List returns every held lock, sorted by path for stable output.
func (m *Manager) List() ([]SectionLock, error) {
	locks, err := m.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].Path < locks[j].Path })
	return locks, nil
}

func (m *Manager) load() ([]SectionLock, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lock table: %w", err)
	}

	var locks []SectionLock
	if err := json.Unmarshal(data, &locks); err != nil {
		return nil, fmt.Errorf("corrupt lock table %s: %w", m.path, err)
	}
	return locks, nil
}

func (m *Manager) save(locks []SectionLock) error {
	data, err := json.MarshalIndent(locks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock table: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write lock table: %w", err)
	}
	return nil
}
