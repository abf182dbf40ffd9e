// Package pipeline runs Python sources through parse, extraction, filtering
// and rendering, one file at a time or many files in parallel.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/touml/touml/internal/cache"
	"github.com/touml/touml/internal/diagram"
	"github.com/touml/touml/internal/extract"
	"github.com/touml/touml/internal/filter"
	"github.com/touml/touml/internal/parser"
	"github.com/touml/touml/internal/pyast"
)

// Options configures a Converter.
type Options struct {
	// ExcludeNames and ExcludeBases are class globs (see package filter).
	ExcludeNames []string
	ExcludeBases []string
	Diagram      diagram.Options
	// Jobs bounds parallel file conversion; 0 or less means GOMAXPROCS.
	Jobs   int
	Logger *slog.Logger
	// Cache, when set, memoises rendered blocks by source content.
	Cache *cache.Cache
}

// Converter turns Python source into Mermaid class blocks.
// It is safe for concurrent use.
type Converter struct {
	opts        Options
	filter      *filter.Filter
	logger      *slog.Logger
	fingerprint string
}

// NewConverter validates the exclusion patterns and returns a Converter.
func NewConverter(opts Options) (*Converter, error) {
	f, err := filter.New(opts.ExcludeNames, opts.ExcludeBases)
	if err != nil {
		return nil, err
	}
	if opts.Diagram.EOL == "" || opts.Diagram.Indent == "" {
		def := diagram.DefaultOptions()
		if opts.Diagram.EOL == "" {
			opts.Diagram.EOL = def.EOL
		}
		if opts.Diagram.Indent == "" {
			opts.Diagram.Indent = def.Indent
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Converter{
		opts:   opts,
		filter: f,
		logger: logger,
		fingerprint: fmt.Sprintf("%q|%q|%q|%q",
			opts.ExcludeNames, opts.ExcludeBases, opts.Diagram.EOL, opts.Diagram.Indent),
	}, nil
}

// Options returns the converter's effective options.
func (c *Converter) Options() Options {
	return c.opts
}

// ConvertSource returns one rendered block per surviving class of src, in
// source order. name labels errors and log records and may be empty.
//
// A syntax error fails the whole source. Classes that fail extraction are
// dropped and logged at debug level.
func (c *Converter) ConvertSource(ctx context.Context, name string, src []byte) ([]string, error) {
	key := cache.Key(src, c.fingerprint)
	if blocks, ok := c.opts.Cache.Get(key); ok {
		c.logger.Debug("cache hit", "file", name, "classes", len(blocks))
		return blocks, nil
	}

	mod, err := Lower(ctx, name, src)
	if err != nil {
		return nil, err
	}

	classes := c.filter.ApplyFunc(extract.Scan(mod), func(err error) {
		attrs := []any{"file", name, "error", err}
		var ce *extract.ClassError
		if errors.As(err, &ce) {
			attrs = append(attrs, "class", ce.Class, "line", ce.Line)
		}
		c.logger.Debug("skipping class", attrs...)
	})

	blocks := make([]string, 0, len(classes))
	for _, cls := range classes {
		blocks = append(blocks, diagram.RenderClass(cls, c.opts.Diagram))
	}

	if err := c.opts.Cache.Put(key, blocks); err != nil {
		c.logger.Warn("cache write failed", "file", name, "error", err)
	}
	return blocks, nil
}

// Lower parses src and lowers it to the typed syntax tree. name labels
// errors and may be empty.
func Lower(ctx context.Context, name string, src []byte) (*pyast.Module, error) {
	p := parser.NewParser()
	defer p.Close()

	result, err := p.Parse(ctx, src)
	if err != nil {
		var pe *parser.ParseError
		if errors.As(err, &pe) {
			pe.File = name
		}
		return nil, err
	}
	defer result.Close()
	result.FilePath = name

	return pyast.Lower(result)
}

// Extracted is one class extraction outcome: either Class or Err is set.
type Extracted struct {
	Class *extract.ClassInfo
	Err   error
}

// Extract returns every class of src in source order, failures included,
// without filtering.
func Extract(ctx context.Context, name string, src []byte) ([]Extracted, error) {
	mod, err := Lower(ctx, name, src)
	if err != nil {
		return nil, err
	}
	var out []Extracted
	for cls, err := range extract.Scan(mod) {
		out = append(out, Extracted{Class: cls, Err: err})
	}
	return out, nil
}

// ConvertFile reads path and converts it. An unreadable file yields a
// *parser.FileReadError.
func (c *Converter) ConvertFile(ctx context.Context, path string) ([]string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &parser.FileReadError{Path: path, Err: err}
	}
	return c.ConvertSource(ctx, path, src)
}

// Result is the outcome of converting a set of files.
type Result struct {
	// Blocks holds every rendered class, grouped by file in input order.
	Blocks []string
	// Converted counts files that were parsed successfully.
	Converted int
	// Skipped lists files that could not be read.
	Skipped []string
}

// ConvertFiles converts paths in parallel and assembles the blocks in the
// order of paths. Unreadable files are logged and skipped. Any other error
// (a syntax error in any file) cancels the remaining work and is returned.
func (c *Converter) ConvertFiles(ctx context.Context, paths []string) (*Result, error) {
	res := &Result{}
	if len(paths) == 0 {
		return res, nil
	}

	jobs := c.opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Each goroutine writes only its own index.
	perFile := make([][]string, len(paths))
	skipped := make([]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(paths)))

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			blocks, err := c.ConvertFile(gctx, path)
			if err != nil {
				var readErr *parser.FileReadError
				if errors.As(err, &readErr) {
					c.logger.Warn("skipping unreadable file", "file", path, "error", readErr.Err)
					skipped[i] = true
					return nil
				}
				return err
			}
			c.logger.Debug("converted file", "file", path, "classes", len(blocks))
			perFile[i] = blocks
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, blocks := range perFile {
		if skipped[i] {
			res.Skipped = append(res.Skipped, paths[i])
			continue
		}
		res.Converted++
		res.Blocks = append(res.Blocks, blocks...)
	}
	return res, nil
}

// Document renders blocks as a complete diagram using the converter's
// line ending and indentation.
func (c *Converter) Document(blocks []string) string {
	return diagram.Document(blocks, c.opts.Diagram)
}

// PythonToMermaid converts a single source text with default formatting and
// returns the class blocks joined by blank lines, without the diagram header.
// ok is false when no class survives. A syntax error or a malformed pattern
// is returned as err.
func PythonToMermaid(ctx context.Context, src string, excludeNames, excludeBases []string) (body string, ok bool, err error) {
	conv, err := NewConverter(Options{ExcludeNames: excludeNames, ExcludeBases: excludeBases})
	if err != nil {
		return "", false, err
	}
	blocks, err := conv.ConvertSource(ctx, "", []byte(src))
	if err != nil {
		return "", false, err
	}
	if len(blocks) == 0 {
		return "", false, nil
	}
	eol := conv.opts.Diagram.EOL
	return strings.Join(blocks, eol+eol), true, nil
}
