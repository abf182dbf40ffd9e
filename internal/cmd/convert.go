package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/touml/touml/internal/cache"
	"github.com/touml/touml/internal/config"
	"github.com/touml/touml/internal/diagram"
	"github.com/touml/touml/internal/discover"
	"github.com/touml/touml/internal/pipeline"
)

// DefaultOutputName is the file written when the output is a directory.
const DefaultOutputName = "output.mmd"

// convertFlags are the conversion flags shared by the root and watch commands.
type convertFlags struct {
	output        string
	excludeNames  []string
	excludeBases  []string
	excludeDirs   []string
	excludeFiles  []string
	extensions    []string
	jobs          int
	lineEnding    string
	indent        int
	noAutoExclude bool
	cache         bool
}

func (f *convertFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.output, "output", "o", "", "Output file, or directory to receive "+DefaultOutputName+" (default: stdout)")
	fs.StringSliceVar(&f.excludeNames, "exclude-names", nil, "Glob patterns of class names to drop (repeatable or comma-separated)")
	fs.StringSliceVar(&f.excludeBases, "exclude-bases", nil, "Glob patterns of base classes; matching classes and their subclasses are dropped")
	fs.StringSliceVar(&f.excludeDirs, "exclude-dirs", nil, "Glob patterns of directories to skip")
	fs.StringSliceVar(&f.excludeFiles, "exclude-files", nil, "Glob patterns of files to skip")
	fs.StringSliceVar(&f.extensions, "extensions", nil, "File extensions to scan (default: .py)")
	fs.IntVarP(&f.jobs, "jobs", "j", 0, "Files converted in parallel (0 = one per CPU)")
	fs.StringVar(&f.lineEnding, "line-ending", "", "Line ending: lf, crlf or native (default: lf)")
	fs.IntVar(&f.indent, "indent", 0, "Spaces per indentation level (default: 4)")
	fs.BoolVar(&f.noAutoExclude, "no-auto-exclude", false, "Scan virtual environments and build output too")
	fs.BoolVar(&f.cache, "cache", false, "Keep rendered classes in .touml/cache.db between runs")
}

// apply overrides cfg with the flags that were set on the command line.
// Exclusion patterns are added to the configured ones.
func (f *convertFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("output") {
		cfg.Output = f.output
	}
	if fs.Changed("exclude-names") {
		cfg.ExcludeNames = append(cfg.ExcludeNames, f.excludeNames...)
	}
	if fs.Changed("exclude-bases") {
		cfg.ExcludeBases = append(cfg.ExcludeBases, f.excludeBases...)
	}
	if fs.Changed("exclude-dirs") {
		cfg.ExcludeDirs = append(cfg.ExcludeDirs, f.excludeDirs...)
	}
	if fs.Changed("exclude-files") {
		cfg.ExcludeFiles = append(cfg.ExcludeFiles, f.excludeFiles...)
	}
	if fs.Changed("extensions") {
		cfg.Extensions = f.extensions
	}
	if fs.Changed("jobs") {
		cfg.Jobs = f.jobs
	}
	if fs.Changed("line-ending") {
		cfg.LineEnding = strings.ToLower(f.lineEnding)
	}
	if fs.Changed("indent") {
		cfg.Indent = f.indent
	}
	if fs.Changed("no-auto-exclude") {
		on := !f.noAutoExclude
		cfg.AutoExclude = &on
	}
	if fs.Changed("cache") {
		cfg.Cache = f.cache
	}
}

// settings is the resolved configuration for one run.
type settings struct {
	target   string
	cfg      *config.Config
	convert  pipeline.Options
	discover discover.Options
}

func loadConfig(target string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load(target)
}

// resolveSettings loads configuration for target and applies the command line.
func resolveSettings(fs *pflag.FlagSet, flags *convertFlags, target string) (*settings, error) {
	cfg, err := loadConfig(target)
	if err != nil {
		return nil, err
	}
	flags.apply(fs, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	eol, err := diagram.LineEnding(cfg.LineEnding)
	if err != nil {
		return nil, err
	}

	return &settings{
		target: target,
		cfg:    cfg,
		convert: pipeline.Options{
			ExcludeNames: cfg.ExcludeNames,
			ExcludeBases: cfg.ExcludeBases,
			Diagram: diagram.Options{
				EOL:    eol,
				Indent: strings.Repeat(" ", cfg.Indent),
			},
			Jobs: cfg.Jobs,
		},
		discover: discover.Options{
			Extensions:   cfg.Extensions,
			ExcludeDirs:  cfg.ExcludeDirs,
			ExcludeFiles: cfg.ExcludeFiles,
			AutoExclude:  cfg.AutoExcludeEnabled(),
		},
	}, nil
}

// resolveOutput maps the configured output to a file path. An existing
// directory receives DefaultOutputName; any other path must have an existing
// parent directory. "" and "-" mean stdout and resolve to "".
func resolveOutput(path string) (string, error) {
	if path == "" || path == "-" {
		return "", nil
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, DefaultOutputName), nil
	}
	parent := filepath.Dir(path)
	info, err := os.Stat(parent)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("output directory %s does not exist", parent)
	}
	return path, nil
}

// projectDir is the directory that holds .touml for target: the nearest
// existing one, otherwise target itself (or its directory for a file).
func projectDir(target string) (string, error) {
	if dir, err := config.FindConfigDir(target); err == nil {
		return filepath.Dir(dir), nil
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("failed to access %s: %w", target, err)
	}
	if !info.IsDir() {
		return filepath.Dir(target), nil
	}
	return target, nil
}

// openCache opens the persistent block cache when it is enabled.
// It returns nil, nil otherwise.
func openCache(s *settings) (*cache.Cache, error) {
	if !s.cfg.Cache {
		return nil, nil
	}
	root, err := projectDir(s.target)
	if err != nil {
		return nil, err
	}
	dir, err := config.EnsureConfigDir(root)
	if err != nil {
		return nil, err
	}
	c, err := cache.Open(dir, cache.DefaultSize)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return c, nil
}

// summary describes a finished conversion.
type summary struct {
	Files   int
	Classes int
	Skipped []string
	Output  string // "" when written to stdout
}

// convert renders every file selected by s into one document and writes it
// to the configured output, or to stdout.
func convert(ctx context.Context, s *settings, stdout io.Writer) (*summary, error) {
	out, err := resolveOutput(s.cfg.Output)
	if err != nil {
		return nil, err
	}

	files, err := discover.Find(s.target, s.discover)
	if err != nil {
		return nil, err
	}

	conv, err := pipeline.NewConverter(s.convert)
	if err != nil {
		return nil, err
	}
	res, err := conv.ConvertFiles(ctx, files)
	if err != nil {
		return nil, err
	}
	doc := conv.Document(res.Blocks)

	if out == "" {
		if _, err := io.WriteString(stdout, doc); err != nil {
			return nil, fmt.Errorf("writing diagram: %w", err)
		}
	} else if err := os.WriteFile(out, []byte(doc), 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", out, err)
	}

	return &summary{
		Files:   res.Converted,
		Classes: len(res.Blocks),
		Skipped: res.Skipped,
		Output:  out,
	}, nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) == 1 {
		target = args[0]
	}

	s, err := resolveSettings(cmd.Flags(), &rootFlags, target)
	if err != nil {
		return err
	}

	c, err := openCache(s)
	if err != nil {
		return err
	}
	defer c.Close()

	s.convert.Cache = c
	s.convert.Logger = newLogger(cmd.ErrOrStderr(), slog.LevelWarn)

	sum, err := convert(cmd.Context(), s, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if sum.Output != "" {
		printSuccess(cmd.ErrOrStderr(), "wrote %d classes from %d files to %s", sum.Classes, sum.Files, sum.Output)
	}
	if len(sum.Skipped) > 0 {
		printWarning(cmd.ErrOrStderr(), "skipped %d unreadable files", len(sum.Skipped))
	}
	return nil
}
