// Package storage handles the on-disk layout of a planweave project: the
// .planweave directory with the plan bundle, the project manifest, the lock
// table, and the audit database.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ProjectDirName is the per-project directory holding all planweave state.
	ProjectDirName = ".planweave"

	bundleFileName   = "bundle.yaml"
	manifestFileName = "manifest.yaml"
	lockFileName     = "locks.json"
	auditFileName    = "audit.db"
)

// Project locates the files of one planweave project.
type Project struct {
	// Root is the project root directory (the parent of .planweave).
	Root string
}

// BundlePath returns the path of the plan bundle document.
func (p Project) BundlePath() string {
	return filepath.Join(p.Root, ProjectDirName, bundleFileName)
}

// ManifestPath returns the path of the project manifest.
func (p Project) ManifestPath() string {
	return filepath.Join(p.Root, ProjectDirName, manifestFileName)
}

// LockPath returns the path of the section lock table.
func (p Project) LockPath() string {
	return filepath.Join(p.Root, ProjectDirName, lockFileName)
}

// AuditPath returns the path of the audit trail database.
func (p Project) AuditPath() string {
	return filepath.Join(p.Root, ProjectDirName, auditFileName)
}

// DiscoverProject finds the planweave project for the current directory.
// The PLANWEAVE_DIR environment variable overrides discovery, which allows
// test isolation. Discovery checks the current directory only; it does not
// walk up the tree, so a nested checkout never silently uses a parent
// project's bundle.
func DiscoverProject() (Project, error) {
	if root := os.Getenv("PLANWEAVE_DIR"); root != "" {
		return projectAt(root)
	}

	dir, err := os.Getwd()
	if err != nil {
		return Project{}, fmt.Errorf("failed to get current directory: %w", err)
	}
	return projectAt(dir)
}

func projectAt(root string) (Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Project{}, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(filepath.Join(abs, ProjectDirName))
	if err != nil || !info.IsDir() {
		return Project{}, fmt.Errorf(
			"no %s directory found in %s\n"+
				"  Run 'planweave init' to initialize a project here",
			ProjectDirName, abs)
	}
	return Project{Root: abs}, nil
}

// InitProject creates the .planweave directory with a starter bundle and
// manifest. It fails if the project is already initialized.
func InitProject(root, name string) (Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Project{}, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return Project{}, fmt.Errorf("project directory does not exist: %s", abs)
	}

	dir := filepath.Join(abs, ProjectDirName)
	p := Project{Root: abs}

	if _, err := os.Stat(p.BundlePath()); err == nil {
		return Project{}, fmt.Errorf("project already initialized: %s exists", p.BundlePath())
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Project{}, fmt.Errorf("failed to create %s directory: %w", ProjectDirName, err)
	}

	if name == "" {
		name = filepath.Base(abs)
	}
	if err := SaveBundle(p.BundlePath(), starterBundle(name)); err != nil {
		return Project{}, err
	}
	if err := SaveManifest(p.ManifestPath(), starterManifest(name)); err != nil {
		return Project{}, err
	}
	return p, nil
}
