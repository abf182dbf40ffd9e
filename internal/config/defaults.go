package config

import "slices"

// ValidLineEndings are the accepted values of line_ending.
var ValidLineEndings = []string{"lf", "crlf", "native"}

// IsValidLineEnding reports whether s names a supported line ending.
func IsValidLineEnding(s string) bool {
	return slices.Contains(ValidLineEndings, s)
}

// DefaultConfig returns configuration with sensible defaults.
// These defaults are used when no config file exists or when
// config file is missing specific fields.
func DefaultConfig() *Config {
	autoExclude := true
	return &Config{
		ExcludeNames: []string{},
		ExcludeBases: []string{},
		ExcludeDirs:  []string{},
		ExcludeFiles: []string{},
		AutoExclude:  &autoExclude,
		Extensions:   []string{".py"},
		LineEnding:   "lf",
		Indent:       4,
		Jobs:         0,
	}
}

// Merge merges loaded config with defaults.
// Values from loaded config take precedence over defaults.
// Returns a new Config with merged values.
func Merge(loaded, defaults *Config) *Config {
	return &Config{
		ExcludeNames: mergeList(loaded.ExcludeNames, defaults.ExcludeNames),
		ExcludeBases: mergeList(loaded.ExcludeBases, defaults.ExcludeBases),
		ExcludeDirs:  mergeList(loaded.ExcludeDirs, defaults.ExcludeDirs),
		ExcludeFiles: mergeList(loaded.ExcludeFiles, defaults.ExcludeFiles),
		AutoExclude:  mergeValue(loaded.AutoExclude, defaults.AutoExclude, nil),
		Extensions:   mergeList(loaded.Extensions, defaults.Extensions),
		LineEnding:   mergeValue(loaded.LineEnding, defaults.LineEnding, ""),
		Indent:       mergeValue(loaded.Indent, defaults.Indent, 0),
		Jobs:         mergeValue(loaded.Jobs, defaults.Jobs, 0),
		Output:       mergeValue(loaded.Output, defaults.Output, ""),
		Cache:        mergeValue(loaded.Cache, defaults.Cache, false),
	}
}

// mergeList uses loaded if it has entries, otherwise defaults.
func mergeList(loaded, defaults []string) []string {
	if len(loaded) > 0 {
		return slices.Clone(loaded)
	}
	return slices.Clone(defaults)
}

// mergeValue uses loaded unless it equals zero.
func mergeValue[T comparable](loaded, defaults, zero T) T {
	if loaded != zero {
		return loaded
	}
	return defaults
}
