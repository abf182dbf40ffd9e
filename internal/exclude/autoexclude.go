// Package exclude detects directories that hold installed or generated Python
// code rather than project sources.
package exclude

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// AutoExcludeResult contains the directories to exclude and why.
type AutoExcludeResult struct {
	// Directories to exclude, relative to the project root, in discovery order.
	Directories []string
	// Reasons maps each directory to why it was excluded.
	Reasons map[string]string
}

// Contains reports whether rel, a slash- or OS-separated path relative to
// the project root, is an excluded directory or lies inside one.
func (r *AutoExcludeResult) Contains(rel string) bool {
	if r == nil {
		return false
	}
	rel = filepath.Clean(filepath.FromSlash(rel))
	for _, dir := range r.Directories {
		if rel == dir || strings.HasPrefix(rel, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// buildDirs are generated next to a Python project marker by packaging and
// test tooling.
var buildDirs = []string{"build", "dist", ".eggs", ".tox", ".nox"}

// projectMarkers identify the root of a Python distribution.
var projectMarkers = map[string]bool{
	"setup.py":       true,
	"setup.cfg":      true,
	"pyproject.toml": true,
}

// neverDescend are skipped during detection regardless of markers.
var neverDescend = map[string]bool{
	"node_modules":  true,
	"site-packages": true,
	"__pycache__":   true,
	".git":          true,
}

// DetectAutoExcludes walks projectRoot looking for marker files:
//   - pyvenv.cfg marks its directory as a virtual environment
//   - setup.py, setup.cfg or pyproject.toml mark existing build, dist, .eggs,
//     .tox, .nox and *.egg-info siblings as generated
//   - Cargo.toml (mixed Rust extension projects) marks an existing target/
//
// Only file-existence checks are used, so detection never guesses.
func DetectAutoExcludes(projectRoot string) *AutoExcludeResult {
	result := &AutoExcludeResult{
		Directories: []string{},
		Reasons:     make(map[string]string),
	}

	add := func(dir, reason string) {
		if !slices.Contains(result.Directories, dir) {
			result.Directories = append(result.Directories, dir)
			result.Reasons[dir] = reason
		}
	}

	_ = filepath.WalkDir(projectRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || path == projectRoot {
			return nil
		}
		relPath, err := filepath.Rel(projectRoot, path)
		if err != nil {
			return nil
		}

		if d.IsDir() {
			if result.Contains(relPath) || neverDescend[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		relDir := filepath.Dir(relPath)
		sibling := func(name string) string {
			if relDir == "." {
				return name
			}
			return filepath.Join(relDir, name)
		}

		switch name := d.Name(); {
		case name == "pyvenv.cfg":
			add(relDir, "Python virtual environment (pyvenv.cfg detected)")

		case projectMarkers[name]:
			for _, dir := range buildDirs {
				if rel := sibling(dir); dirExists(filepath.Join(projectRoot, rel)) {
					add(rel, "Python build output ("+name+" detected)")
				}
			}
			entries, _ := os.ReadDir(filepath.Join(projectRoot, relDir))
			for _, e := range entries {
				if e.IsDir() && strings.HasSuffix(e.Name(), ".egg-info") {
					add(sibling(e.Name()), "Python package metadata ("+name+" detected)")
				}
			}

		case name == "Cargo.toml":
			if rel := sibling("target"); dirExists(filepath.Join(projectRoot, rel)) {
				add(rel, "Rust build artifacts (Cargo.toml detected)")
			}
		}
		return nil
	})

	return result
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
