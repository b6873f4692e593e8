// Package workspace locates the state root that scopes all job and
// mode-state documents.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Marker is the directory name that identifies a project-local state root.
const Marker = ".sisyphus"

// EnvStateDir overrides discovery entirely when set.
const EnvStateDir = "SISYPHUS_STATE_DIR"

// ErrNotFound indicates no state root could be located.
var ErrNotFound = errors.New("no state root found")

// Find locates the state root for startDir.
//
// Resolution order: SISYPHUS_STATE_DIR, then the nearest enclosing
// directory containing a .sisyphus marker, then ~/.sisyphus. The home
// fallback means Find only fails when the home directory is unknown.
// Does not resolve symlinks to stay consistent with os.Getwd().
func Find(startDir string) (string, error) {
	if dir := os.Getenv(EnvStateDir); dir != "" {
		return filepath.Abs(dir)
	}

	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	current := absDir
	for {
		marker := filepath.Join(current, Marker)
		if info, err := os.Stat(marker); err == nil && info.IsDir() {
			return marker, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return filepath.Join(home, Marker), nil
}

// FindFromCwd locates the state root from the current working directory.
func FindFromCwd() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return Find(cwd)
}

// EnsureRoot resolves the state root and creates it if missing.
func EnsureRoot(startDir string) (string, error) {
	root, err := Find(startDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", fmt.Errorf("creating state root: %w", err)
	}
	return root, nil
}

// ResolvePath resolves a caller-supplied file path against workDir.
// Absolute paths pass through unchanged. workDir defaults to cwd.
func ResolvePath(path, workDir string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path must not be empty")
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if workDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		workDir = cwd
	}
	return filepath.Clean(filepath.Join(workDir, path)), nil
}
