package runner

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"

	"github.com/entrhq/pilot/pkg/security/workspace"
	"github.com/entrhq/pilot/pkg/types"
)

// Artifact filename patterns recognized during collection.
var (
	screenshotGlob = glob.MustCompile("*.{png,jpg,jpeg}")
	videoGlob      = glob.MustCompile("*.{webm,mp4}")
	traceGlob      = glob.MustCompile("*{trace,trace.zip,.zip}")
)

// collectArtifacts walks the working area and groups produced files by
// kind. Paths are returned relative to the working area root, sorted for
// stable output. Files the execution tool wrote that match no pattern
// are ignored, as is anything that resolves outside the working area
// (the script runs arbitrary code and may plant escaping symlinks).
func collectArtifacts(root string) types.Artifacts {
	artifacts := types.Artifacts{
		Screenshots: []string{},
		Videos:      []string{},
		Traces:      []string{},
	}

	guard, guardErr := workspace.NewGuard(root)
	if guardErr != nil {
		return artifacts
	}

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if guard.Validate(path) != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		name := d.Name()
		switch {
		case screenshotGlob.Match(name):
			artifacts.Screenshots = append(artifacts.Screenshots, rel)
		case videoGlob.Match(name):
			artifacts.Videos = append(artifacts.Videos, rel)
		case traceGlob.Match(name):
			artifacts.Traces = append(artifacts.Traces, rel)
		}
		return nil
	})

	sort.Strings(artifacts.Screenshots)
	sort.Strings(artifacts.Videos)
	sort.Strings(artifacts.Traces)
	return artifacts
}
