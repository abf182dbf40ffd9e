// Package discover finds the Python source files under a path.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/touml/touml/internal/exclude"
)

// DefaultExtensions are the file extensions scanned when none are configured.
var DefaultExtensions = []string{".py"}

// Options controls which files Find returns.
type Options struct {
	// Extensions to include, with the leading dot. Empty means DefaultExtensions.
	Extensions []string
	// ExcludeDirs are globs matched against a directory's path relative to
	// the root and against its base name. A trailing "/**" is ignored.
	ExcludeDirs []string
	// ExcludeFiles are globs matched against a file's relative path and base name.
	ExcludeFiles []string
	// AutoExclude skips virtual environments and build output found by
	// exclude.DetectAutoExcludes.
	AutoExclude bool
}

// Find returns the matching files under root in lexical order. When root is
// a regular file it is returned as-is, whatever its extension. Hidden
// directories and __pycache__ are always skipped.
func Find(root string, opts Options) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	for _, p := range append(slices.Clone(opts.ExcludeDirs), opts.ExcludeFiles...) {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	var auto *exclude.AutoExcludeResult
	if opts.AutoExclude {
		auto = exclude.DetectAutoExcludes(root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel := relativePath(path, root)

		if d.IsDir() {
			if shouldExcludeDir(rel, d.Name(), opts.ExcludeDirs) || auto.Contains(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !slices.Contains(exts, filepath.Ext(path)) {
			return nil
		}
		if shouldExcludeFile(rel, d.Name(), opts.ExcludeFiles) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}

// relativePath returns path relative to root using forward slashes.
func relativePath(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func shouldExcludeDir(rel, base string, patterns []string) bool {
	if strings.HasPrefix(base, ".") || base == "__pycache__" {
		return true
	}
	for _, pattern := range patterns {
		dirPattern := strings.TrimSuffix(filepath.ToSlash(pattern), "/**")
		if matchPath(dirPattern, rel, base) {
			return true
		}
	}
	return false
}

func shouldExcludeFile(rel, base string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchPath(filepath.ToSlash(pattern), rel, base) {
			return true
		}
	}
	return false
}

func matchPath(pattern, rel, base string) bool {
	if ok, _ := doublestar.Match(pattern, rel); ok {
		return true
	}
	ok, _ := doublestar.Match(pattern, base)
	return ok
}

// Dirs returns root and every directory below it that Find would descend
// into, in lexical order. When root is a file its parent directory is
// returned.
func Dirs(root string, opts Options) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{filepath.Dir(root)}, nil
	}

	var auto *exclude.AutoExcludeResult
	if opts.AutoExclude {
		auto = exclude.DetectAutoExcludes(root)
	}

	dirs := []string{root}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root || !d.IsDir() {
			return nil
		}
		rel := relativePath(path, root)
		if shouldExcludeDir(rel, d.Name(), opts.ExcludeDirs) || auto.Contains(rel) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(dirs)
	return dirs, nil
}
