// Package filter drops classes whose name or ancestry matches exclusion globs.
package filter

import (
	"fmt"
	"iter"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/touml/touml/internal/extract"
)

// PatternError reports a malformed glob.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid glob pattern %q", e.Pattern)
}

// Filter holds validated class-name and base-class exclusion patterns.
// The zero value and a nil *Filter keep everything.
type Filter struct {
	names []string
	bases []string
}

// New validates the patterns and returns a Filter.
//
// A class is dropped when any names pattern matches its own name, or when any
// bases pattern matches its own name or one of its parents.
func New(names, bases []string) (*Filter, error) {
	for _, p := range append(append([]string(nil), names...), bases...) {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p}
		}
	}
	return &Filter{names: names, bases: bases}, nil
}

// Keep reports whether c survives the filter.
func (f *Filter) Keep(c *extract.ClassInfo) bool {
	if f == nil || c == nil {
		return c != nil
	}
	if matchAny(f.names, c.Name) || matchAny(f.bases, c.Name) {
		return false
	}
	for _, parent := range c.Parents {
		if matchAny(f.bases, parent) {
			return false
		}
	}
	return true
}

// Apply returns the classes of seq that extracted cleanly and survive the
// filter. Extraction failures are dropped.
func (f *Filter) Apply(seq iter.Seq2[*extract.ClassInfo, error]) []*extract.ClassInfo {
	return f.ApplyFunc(seq, nil)
}

// ApplyFunc is Apply with a hook that sees every dropped extraction failure.
func (f *Filter) ApplyFunc(seq iter.Seq2[*extract.ClassInfo, error], onError func(error)) []*extract.ClassInfo {
	var kept []*extract.ClassInfo
	for c, err := range seq {
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		if f.Keep(c) {
			kept = append(kept, c)
		}
	}
	return kept
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
