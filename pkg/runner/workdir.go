package runner

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	scriptFileName = "generated.spec.ts"
	configFileName = "playwright.config.ts"
	reportFileName = "report.json"
)

// Workdir is the isolated per-session filesystem namespace holding the
// generated script, its run configuration, and produced artifacts. Each
// session gets its own directory so concurrent runs never contend on
// the same files.
type Workdir struct {
	root string
}

// NewWorkdir creates the working directory for a session under baseDir.
func NewWorkdir(baseDir, sessionID string) (*Workdir, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	root := filepath.Join(baseDir, "pilot-run-"+sessionID)
	if err := os.MkdirAll(filepath.Join(root, "artifacts"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	return &Workdir{root: root}, nil
}

// Root returns the working directory path.
func (w *Workdir) Root() string {
	return w.root
}

// WriteScript materializes the script source and returns its path.
func (w *Workdir) WriteScript(source string) (string, error) {
	path := filepath.Join(w.root, scriptFileName)
	if err := os.WriteFile(path, []byte(source), 0o600); err != nil {
		return "", fmt.Errorf("failed to write script: %w", err)
	}
	return path, nil
}

// WriteConfig materializes the run configuration and returns its path.
func (w *Workdir) WriteConfig(source string) (string, error) {
	path := filepath.Join(w.root, configFileName)
	if err := os.WriteFile(path, []byte(source), 0o600); err != nil {
		return "", fmt.Errorf("failed to write run configuration: %w", err)
	}
	return path, nil
}

// ReportPath returns where the execution tool is expected to write its
// structured report.
func (w *Workdir) ReportPath() string {
	return filepath.Join(w.root, reportFileName)
}

// Remove deletes the working directory tree. It is safe to call on
// every exit path, including after a partial setup.
func (w *Workdir) Remove() error {
	if w == nil || w.root == "" {
		return nil
	}
	return os.RemoveAll(w.root)
}
