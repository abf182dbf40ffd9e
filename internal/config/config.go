// Package config loads touml settings from .touml/config.yaml and from the
// [tool.touml] table of pyproject.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the touml configuration file
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the touml configuration directory
const ConfigDirName = ".touml"

// PyprojectFileName is the Python project file that may carry a [tool.touml] table.
const PyprojectFileName = "pyproject.toml"

// Config holds all touml configuration.
type Config struct {
	// ExcludeNames drops classes whose name matches.
	ExcludeNames []string `yaml:"exclude_names" toml:"exclude_names"`
	// ExcludeBases drops classes whose name or any parent matches.
	ExcludeBases []string `yaml:"exclude_bases" toml:"exclude_bases"`
	// ExcludeDirs and ExcludeFiles are path globs applied during discovery.
	ExcludeDirs  []string `yaml:"exclude_dirs" toml:"exclude_dirs"`
	ExcludeFiles []string `yaml:"exclude_files" toml:"exclude_files"`
	// AutoExclude skips virtual environments and build output. Nil means true.
	AutoExclude *bool    `yaml:"auto_exclude,omitempty" toml:"auto_exclude"`
	Extensions  []string `yaml:"extensions" toml:"extensions"`
	LineEnding  string   `yaml:"line_ending" toml:"line_ending"`
	// Indent is the number of spaces per indentation level.
	Indent int `yaml:"indent" toml:"indent"`
	// Jobs bounds parallel file processing; 0 means GOMAXPROCS.
	Jobs int `yaml:"jobs" toml:"jobs"`
	// Output is a directory (receives output.mmd) or a file path.
	Output string `yaml:"output,omitempty" toml:"output"`
	// Cache keeps rendered blocks in .touml/cache.db between runs.
	Cache bool `yaml:"cache" toml:"cache"`
}

// AutoExcludeEnabled reports whether automatic exclusion is on.
func (c *Config) AutoExcludeEnabled() bool {
	return c.AutoExclude == nil || *c.AutoExclude
}

// ErrConfigNotFound is returned when no config file can be found
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// Load resolves configuration for workDir. Settings from the nearest
// pyproject.toml [tool.touml] table are applied over the defaults, then the
// nearest .touml/config.yaml is applied over those.
func Load(workDir string) (*Config, error) {
	cfg := DefaultConfig()

	if path, err := FindPyproject(workDir); err == nil {
		loaded, found, err := LoadPyproject(path)
		if err != nil {
			return nil, err
		}
		if found {
			cfg = Merge(loaded, cfg)
		}
	}

	if configDir, err := FindConfigDir(workDir); err == nil {
		loaded, err := readYAML(filepath.Join(configDir, ConfigFileName))
		if err != nil {
			return nil, err
		}
		if loaded != nil {
			cfg = Merge(loaded, cfg)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads config from a specific YAML file.
// Merges loaded config with defaults and validates the result.
func LoadFromPath(path string) (*Config, error) {
	loaded, err := readYAML(path)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		return DefaultConfig(), nil
	}

	merged := Merge(loaded, DefaultConfig())
	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// readYAML returns nil, nil when the file does not exist.
func readYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return loaded, nil
}

// LoadPyproject decodes the [tool.touml] table of a pyproject.toml file.
// found is false when the table is absent.
func LoadPyproject(path string) (cfg *Config, found bool, err error) {
	var doc struct {
		Tool struct {
			Touml Config `toml:"touml"`
		} `toml:"tool"`
	}
	md, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return nil, false, fmt.Errorf("parsing %s: %w", path, err)
	}
	if !md.IsDefined("tool", "touml") {
		return nil, false, nil
	}
	return &doc.Tool.Touml, true, nil
}

// FindConfigDir locates the .touml directory by walking up from startDir.
// Returns the path to the .touml directory if found.
func FindConfigDir(startDir string) (string, error) {
	return findUp(startDir, func(dir string) (string, bool) {
		configDir := filepath.Join(dir, ConfigDirName)
		info, err := os.Stat(configDir)
		return configDir, err == nil && info.IsDir()
	})
}

// FindPyproject locates the nearest pyproject.toml by walking up from startDir.
func FindPyproject(startDir string) (string, error) {
	return findUp(startDir, func(dir string) (string, bool) {
		path := filepath.Join(dir, PyprojectFileName)
		info, err := os.Stat(path)
		return path, err == nil && !info.IsDir()
	})
}

func findUp(startDir string, probe func(dir string) (string, bool)) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	// A file path starts the search in its directory.
	if info, err := os.Stat(absDir); err == nil && !info.IsDir() {
		absDir = filepath.Dir(absDir)
	}

	currentDir := absDir
	for {
		if found, ok := probe(currentDir); ok {
			return found, nil
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// EnsureConfigDir creates the .touml directory if it doesn't exist.
// Returns the path to the .touml directory.
func EnsureConfigDir(workDir string) (string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)

	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	return configDir, nil
}

// Validate checks that config values are valid.
// Returns an error if validation fails.
func Validate(cfg *Config) error {
	for _, group := range []struct {
		key      string
		patterns []string
	}{
		{"exclude_names", cfg.ExcludeNames},
		{"exclude_bases", cfg.ExcludeBases},
		{"exclude_dirs", cfg.ExcludeDirs},
		{"exclude_files", cfg.ExcludeFiles},
	} {
		for _, p := range group.patterns {
			if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
				return fmt.Errorf("%w: %s contains invalid glob %q", ErrInvalidConfig, group.key, p)
			}
		}
	}

	if !IsValidLineEnding(cfg.LineEnding) {
		return fmt.Errorf("%w: line_ending must be one of %v, got %q",
			ErrInvalidConfig, ValidLineEndings, cfg.LineEnding)
	}

	if cfg.Indent < 0 {
		return fmt.Errorf("%w: indent must be non-negative, got %d", ErrInvalidConfig, cfg.Indent)
	}

	if cfg.Jobs < 0 {
		return fmt.Errorf("%w: jobs must be non-negative, got %d", ErrInvalidConfig, cfg.Jobs)
	}

	for _, ext := range cfg.Extensions {
		if len(ext) < 2 || ext[0] != '.' {
			return fmt.Errorf("%w: extensions must start with a dot, got %q", ErrInvalidConfig, ext)
		}
	}

	return nil
}

// SaveDefault writes the default configuration to .touml/config.yaml in workDir.
// Creates the .touml directory if it doesn't exist.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	header := "# touml configuration\n# The same keys are accepted under [tool.touml] in pyproject.toml.\n\n"
	data = append([]byte(header), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return configPath, nil
}
