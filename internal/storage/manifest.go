package storage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/planweave/planweave/internal/types"
)

// Manifest is the project manifest: the declared collaborator personas and
// which bundle sections each one owns. Ownership drives conflict arbitration
// and lock scoping; it is configuration, never inferred from edits.
type Manifest struct {
	// Project is the human-readable project name.
	Project string `yaml:"project"`

	// Personas lists the declared roles, in declaration order.
	Personas []PersonaDecl `yaml:"personas,omitempty"`
}

// PersonaDecl declares one persona and the section paths it owns.
type PersonaDecl struct {
	// Name is the persona identifier, e.g. "product" or "architect".
	Name types.Persona `yaml:"name"`

	// Owns lists the dot-addressed section paths this persona authors,
	// e.g. "idea" or "features.checkout".
	Owns []string `yaml:"owns,omitempty"`
}

// Ownership flattens the manifest into the ownership map consumed by the
// conflict arbiter.
func (m *Manifest) Ownership() types.OwnershipMap {
	out := make(types.OwnershipMap, len(m.Personas))
	for _, p := range m.Personas {
		if len(p.Owns) > 0 {
			out[p.Name] = p.Owns
		}
	}
	return out
}

// Persona returns the declared persona by name.
func (m *Manifest) Persona(name types.Persona) (PersonaDecl, bool) {
	for _, p := range m.Personas {
		if p.Name == name {
			return p, true
		}
	}
	return PersonaDecl{}, false
}

// Validate checks the manifest for empty or duplicate persona names.
func (m *Manifest) Validate() error {
	seen := make(map[types.Persona]bool, len(m.Personas))
	for _, p := range m.Personas {
		if p.Name == "" {
			return fmt.Errorf("manifest declares a persona with no name")
		}
		if seen[p.Name] {
			return fmt.Errorf("manifest declares persona %q twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// LoadManifest reads and validates the project manifest at path. A missing
// manifest is not an error: it yields an empty manifest, meaning no personas
// and no declared ownership.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// SaveManifest writes the manifest to path.
func SaveManifest(path string, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func starterManifest(name string) *Manifest {
	return &Manifest{Project: name}
}
