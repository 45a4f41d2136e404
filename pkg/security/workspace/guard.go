// Package workspace enforces session working-area boundaries on file
// system operations. Generated test scripts run arbitrary code inside
// their working directory, so anything the runner reads back out of it
// (reports, artifact files) must resolve to a real path inside that
// directory rather than escaping through symlinks or traversal.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Guard restricts file paths to a single session working area.
type Guard struct {
	root string // Absolute, symlink-resolved working-area root
}

// NewGuard creates a guard for the given directory. The directory must
// exist; its path is made absolute and symlinks are resolved once so
// later checks compare like with like.
func NewGuard(dir string) (*Guard, error) {
	if dir == "" {
		return nil, fmt.Errorf("working directory cannot be empty")
	}

	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	evalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate working directory symlinks: %w", err)
	}

	return &Guard{root: evalPath}, nil
}

// Root returns the resolved working-area root.
func (g *Guard) Root() string {
	return g.root
}

// Validate checks that the given path resolves inside the working area.
// Relative paths are interpreted against the root.
func (g *Guard) Validate(path string) error {
	resolved, err := g.Resolve(path)
	if err != nil {
		return err
	}
	if !g.contains(resolved) {
		return fmt.Errorf("path '%s' is outside the working area", path)
	}
	return nil
}

// Resolve converts a path to an absolute, symlink-resolved form within
// the working-area context. Paths that do not exist yet resolve through
// their nearest existing parent, so writes can be validated too.
func (g *Guard) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	absPath := filepath.Clean(path)
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(g.root, absPath)
	}

	evalPath, err := filepath.EvalSymlinks(absPath)
	if err == nil {
		return evalPath, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	// The file does not exist yet. Resolve the nearest existing parent
	// and re-append the remainder.
	parent := filepath.Dir(absPath)
	rest := filepath.Base(absPath)
	for parent != filepath.Dir(parent) {
		evalParent, parentErr := filepath.EvalSymlinks(parent)
		if parentErr == nil {
			return filepath.Join(evalParent, rest), nil
		}
		if !os.IsNotExist(parentErr) {
			return "", fmt.Errorf("failed to resolve path: %w", parentErr)
		}
		rest = filepath.Join(filepath.Base(parent), rest)
		parent = filepath.Dir(parent)
	}
	return absPath, nil
}

// contains reports whether the resolved absolute path is the root or a
// descendant of it.
func (g *Guard) contains(absPath string) bool {
	if absPath == g.root {
		return true
	}
	return strings.HasPrefix(absPath, g.root+string(filepath.Separator))
}
