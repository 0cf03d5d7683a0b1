package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/planweave/planweave/internal/types"
)

// LoadBundle reads and validates the plan bundle at path. The schema version
// gate runs before full validation so an unsupported document is rejected
// with a version error rather than a confusing field error.
func LoadBundle(path string) (*types.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle: %w", err)
	}

	var b types.Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bundle %s: %w", path, err)
	}

	if err := types.ValidateSchemaVersion(b.Version); err != nil {
		return nil, fmt.Errorf("bundle %s: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("bundle %s is malformed: %w", path, err)
	}
	return &b, nil
}

// SaveBundle validates and writes the bundle, stamping UpdatedAt (and
// CreatedAt on first save). The write goes through a temp file and rename so
// a crash mid-write never leaves a truncated bundle behind.
func SaveBundle(path string, b *types.Bundle) error {
	if err := types.ValidateSchemaVersion(b.Version); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("refusing to save malformed bundle: %w", err)
	}

	now := time.Now().UTC()
	if b.Metadata.CreatedAt.IsZero() {
		b.Metadata.CreatedAt = now
	}
	b.Metadata.UpdatedAt = now

	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".bundle-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp bundle: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace bundle: %w", err)
	}
	return nil
}

// UpdateBundle is the read-modify-write primitive for bundle edits: load,
// apply fn, save. When fn returns an error nothing is written, so a failed
// edit never leaves a half-applied bundle behind.
func (p Project) UpdateBundle(fn func(*types.Bundle) error) error {
	b, err := LoadBundle(p.BundlePath())
	if err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return err
	}
	return SaveBundle(p.BundlePath(), b)
}

func starterBundle(name string) *types.Bundle {
	return &types.Bundle{
		Version: "v1.0.0",
		Idea:    &types.IdeaBlock{Title: name},
		Metadata: types.Metadata{
			Stage:      types.StageDraft,
			Provenance: "manual",
		},
	}
}
