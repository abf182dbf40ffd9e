// Package mcp provides an MCP (Model Context Protocol) server for touml.
// Agents can convert Python source or files to Mermaid class diagrams and
// inspect extracted classes through MCP tools instead of the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/touml/touml/internal/discover"
	"github.com/touml/touml/internal/extract"
	"github.com/touml/touml/internal/pipeline"
)

// Version is reported to MCP clients.
const Version = "1.0.0"

// Server wraps the MCP server with touml-specific functionality
type Server struct {
	mcpServer    *server.MCPServer
	base         pipeline.Options
	discover     discover.Options
	root         string
	tools        map[string]bool
	lastActivity time.Time
	timeout      time.Duration
	mu           sync.RWMutex
}

// Config holds server configuration
type Config struct {
	Tools   []string      // Which tools to expose (empty = all)
	Timeout time.Duration // Inactivity timeout (0 = no timeout)

	// Root resolves relative paths given to touml_convert_path.
	// Defaults to the working directory.
	Root string

	// Convert supplies defaults for every call. Exclusion patterns passed to a
	// tool are added to these.
	Convert  pipeline.Options
	Discover discover.Options
}

// AllTools lists all available tools
var AllTools = []string{"touml_convert", "touml_convert_path", "touml_classes"}

// New creates a new MCP server for touml
func New(cfg Config) (*Server, error) {
	root := cfg.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		root = wd
	}

	// Fail early on bad configured patterns.
	if _, err := pipeline.NewConverter(cfg.Convert); err != nil {
		return nil, fmt.Errorf("invalid exclusion patterns: %w", err)
	}

	mcpServer := server.NewMCPServer(
		"touml",
		Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcpServer:    mcpServer,
		base:         cfg.Convert,
		discover:     cfg.Discover,
		root:         root,
		tools:        make(map[string]bool),
		lastActivity: time.Now(),
		timeout:      cfg.Timeout,
	}

	toolsToRegister := cfg.Tools
	if len(toolsToRegister) == 0 {
		toolsToRegister = AllTools
	}

	for _, toolName := range toolsToRegister {
		if err := s.registerTool(toolName); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", toolName, err)
		}
		s.tools[toolName] = true
	}

	return s, nil
}

// registerTool registers a single tool with the MCP server
func (s *Server) registerTool(name string) error {
	switch name {
	case "touml_convert":
		return s.registerConvertTool()
	case "touml_convert_path":
		return s.registerConvertPathTool()
	case "touml_classes":
		return s.registerClassesTool()
	default:
		return fmt.Errorf("unknown tool: %s", name)
	}
}

// ServeStdio serves MCP over stdin/stdout until ctx is cancelled, the
// client disconnects or the inactivity timeout expires.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve is ServeStdio over arbitrary streams.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.timeout > 0 {
		go s.timeoutChecker(ctx, cancel)
	}

	err := server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// timeoutChecker cancels the server once it has been idle for too long.
func (s *Server) timeoutChecker(ctx context.Context, cancel context.CancelFunc) {
	interval := min(s.timeout/2, 30*time.Second)
	if interval <= 0 {
		interval = s.timeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.idleFor() > s.timeout {
			fmt.Fprintf(os.Stderr, "touml serve: timeout after %v of inactivity\n", s.timeout)
			cancel()
			return
		}
	}
}

func (s *Server) idleFor() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastActivity)
}

// updateActivity updates the last activity timestamp
func (s *Server) updateActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// ListTools returns the registered tools in sorted order.
func (s *Server) ListTools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]string, 0, len(s.tools))
	for t := range s.tools {
		tools = append(tools, t)
	}
	slices.Sort(tools)
	return tools
}

// ToolSchema describes a tool's name, description, and parameters.
type ToolSchema struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Parameters  []ParameterSchema `json:"parameters" yaml:"parameters"`
}

// ParameterSchema describes a single tool parameter.
type ParameterSchema struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
}

const (
	descConvert     = "Convert Python source text to a Mermaid class diagram."
	descConvertPath = "Convert a Python file or every Python file under a directory to one Mermaid class diagram."
	descClasses     = "List the classes extracted from Python source, including classes that could not be extracted and why."

	descExcludeNames = "Comma-separated globs; classes whose name matches are dropped"
	descExcludeBases = "Comma-separated globs; classes whose name or any parent matches are dropped"
)

// toolSchemaRegistry holds the schema definitions for all tools.
// These mirror the mcp.NewTool() definitions in the register*Tool() functions.
var toolSchemaRegistry = map[string]ToolSchema{
	"touml_convert": {
		Name:        "touml_convert",
		Description: descConvert,
		Parameters: []ParameterSchema{
			{Name: "source", Type: "string", Description: "Python source code", Required: true},
			{Name: "exclude_names", Type: "string", Description: descExcludeNames},
			{Name: "exclude_bases", Type: "string", Description: descExcludeBases},
		},
	},
	"touml_convert_path": {
		Name:        "touml_convert_path",
		Description: descConvertPath,
		Parameters: []ParameterSchema{
			{Name: "path", Type: "string", Description: "File or directory, relative to the server root", Required: true},
			{Name: "exclude_names", Type: "string", Description: descExcludeNames},
			{Name: "exclude_bases", Type: "string", Description: descExcludeBases},
			{Name: "exclude_dirs", Type: "string", Description: "Comma-separated directory globs to skip"},
			{Name: "exclude_files", Type: "string", Description: "Comma-separated file globs to skip"},
			{Name: "format", Type: "string", Description: "Output format: text (default) or json"},
		},
	},
	"touml_classes": {
		Name:        "touml_classes",
		Description: descClasses,
		Parameters: []ParameterSchema{
			{Name: "source", Type: "string", Description: "Python source code", Required: true},
		},
	},
}

// ToolSchemas returns the schema of every available tool in AllTools order.
func ToolSchemas() []ToolSchema {
	schemas := make([]ToolSchema, 0, len(AllTools))
	for _, name := range AllTools {
		schemas = append(schemas, toolSchemaRegistry[name])
	}
	return schemas
}

// GetToolSchemas returns schemas for all registered tools, sorted by name.
func (s *Server) GetToolSchemas() []ToolSchema {
	schemas := make([]ToolSchema, 0, len(s.tools))
	for _, name := range s.ListTools() {
		if schema, ok := toolSchemaRegistry[name]; ok {
			schemas = append(schemas, schema)
		}
	}
	return schemas
}

// CallTool dispatches a tool call by name with the given arguments.
// Returns the result text or an error.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	s.mu.RLock()
	registered := s.tools[name]
	s.mu.RUnlock()

	if !registered {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	switch name {
	case "touml_convert":
		source, _ := args["source"].(string)
		if source == "" {
			return "", fmt.Errorf("source parameter is required")
		}
		return s.executeConvert(ctx, source, stringList(args, "exclude_names"), stringList(args, "exclude_bases"))

	case "touml_convert_path":
		path, _ := args["path"].(string)
		if path == "" {
			return "", fmt.Errorf("path parameter is required")
		}
		format, _ := args["format"].(string)
		return s.executeConvertPath(ctx, convertPathRequest{
			path:         path,
			excludeNames: stringList(args, "exclude_names"),
			excludeBases: stringList(args, "exclude_bases"),
			excludeDirs:  stringList(args, "exclude_dirs"),
			excludeFiles: stringList(args, "exclude_files"),
			format:       format,
		})

	case "touml_classes":
		source, _ := args["source"].(string)
		if source == "" {
			return "", fmt.Errorf("source parameter is required")
		}
		return s.executeClasses(ctx, source)

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// registerConvertTool registers the touml_convert tool
func (s *Server) registerConvertTool() error {
	tool := mcp.NewTool("touml_convert",
		mcp.WithDescription(descConvert),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Python source code"),
		),
		mcp.WithString("exclude_names",
			mcp.Description(descExcludeNames),
		),
		mcp.WithString("exclude_bases",
			mcp.Description(descExcludeBases),
		),
	)

	s.mcpServer.AddTool(tool, s.handle("touml_convert"))
	return nil
}

// registerConvertPathTool registers the touml_convert_path tool
func (s *Server) registerConvertPathTool() error {
	tool := mcp.NewTool("touml_convert_path",
		mcp.WithDescription(descConvertPath),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File or directory, relative to the server root"),
		),
		mcp.WithString("exclude_names",
			mcp.Description(descExcludeNames),
		),
		mcp.WithString("exclude_bases",
			mcp.Description(descExcludeBases),
		),
		mcp.WithString("exclude_dirs",
			mcp.Description("Comma-separated directory globs to skip"),
		),
		mcp.WithString("exclude_files",
			mcp.Description("Comma-separated file globs to skip"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: text (default) or json"),
		),
	)

	s.mcpServer.AddTool(tool, s.handle("touml_convert_path"))
	return nil
}

// registerClassesTool registers the touml_classes tool
func (s *Server) registerClassesTool() error {
	tool := mcp.NewTool("touml_classes",
		mcp.WithDescription(descClasses),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Python source code"),
		),
	)

	s.mcpServer.AddTool(tool, s.handle("touml_classes"))
	return nil
}

// handle adapts CallTool to an MCP tool handler. Tool failures are reported
// as error results, not protocol errors.
func (s *Server) handle(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.updateActivity()

		result, err := s.CallTool(ctx, name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}

func (s *Server) converter(excludeNames, excludeBases []string) (*pipeline.Converter, error) {
	opts := s.base
	opts.ExcludeNames = append(slices.Clone(s.base.ExcludeNames), excludeNames...)
	opts.ExcludeBases = append(slices.Clone(s.base.ExcludeBases), excludeBases...)
	return pipeline.NewConverter(opts)
}

func (s *Server) executeConvert(ctx context.Context, source string, excludeNames, excludeBases []string) (string, error) {
	conv, err := s.converter(excludeNames, excludeBases)
	if err != nil {
		return "", err
	}
	blocks, err := conv.ConvertSource(ctx, "", []byte(source))
	if err != nil {
		return "", err
	}
	return conv.Document(blocks), nil
}

type convertPathRequest struct {
	path         string
	excludeNames []string
	excludeBases []string
	excludeDirs  []string
	excludeFiles []string
	format       string
}

// convertPathResult is the json form of touml_convert_path.
type convertPathResult struct {
	Diagram   string   `json:"diagram"`
	Files     int      `json:"files"`
	Classes   int      `json:"classes"`
	Skipped   []string `json:"skipped,omitempty"`
	Generated string   `json:"generated_at"`
}

func (s *Server) executeConvertPath(ctx context.Context, req convertPathRequest) (string, error) {
	if req.format != "" && req.format != "text" && req.format != "json" {
		return "", fmt.Errorf("unknown format %q (want text or json)", req.format)
	}

	path := req.path
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}

	opts := s.discover
	opts.ExcludeDirs = append(slices.Clone(opts.ExcludeDirs), req.excludeDirs...)
	opts.ExcludeFiles = append(slices.Clone(opts.ExcludeFiles), req.excludeFiles...)
	files, err := discover.Find(path, opts)
	if err != nil {
		return "", err
	}

	conv, err := s.converter(req.excludeNames, req.excludeBases)
	if err != nil {
		return "", err
	}
	res, err := conv.ConvertFiles(ctx, files)
	if err != nil {
		return "", err
	}
	doc := conv.Document(res.Blocks)

	if req.format != "json" {
		return doc, nil
	}
	skipped := make([]string, 0, len(res.Skipped))
	for _, p := range res.Skipped {
		skipped = append(skipped, s.relative(p))
	}
	return toJSON(convertPathResult{
		Diagram:   doc,
		Files:     res.Converted,
		Classes:   len(res.Blocks),
		Skipped:   skipped,
		Generated: time.Now().UTC().Format(time.RFC3339),
	})
}

// classView is the json form of one touml_classes entry.
type classView struct {
	Name    string       `json:"name"`
	Line    int          `json:"line"`
	Parents []string     `json:"parents,omitempty"`
	Fields  []fieldView  `json:"fields,omitempty"`
	Methods []methodView `json:"methods,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type fieldView struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Default string `json:"default,omitempty"`
}

type methodView struct {
	Name    string      `json:"name"`
	Args    []fieldView `json:"args"`
	Returns string      `json:"returns,omitempty"`
}

func (s *Server) executeClasses(ctx context.Context, source string) (string, error) {
	results, err := pipeline.Extract(ctx, "", []byte(source))
	if err != nil {
		return "", err
	}

	views := make([]classView, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			views = append(views, errorView(r.Err))
			continue
		}
		c := r.Class
		v := classView{Name: c.Name, Line: c.Line, Parents: c.Parents}
		for f := range c.Fields.All() {
			v.Fields = append(v.Fields, fieldView(f))
		}
		for m := range c.Methods.All() {
			mv := methodView{Name: m.Name, Returns: m.Returns, Args: []fieldView{}}
			for _, a := range m.Args {
				mv.Args = append(mv.Args, fieldView(a))
			}
			v.Methods = append(v.Methods, mv)
		}
		views = append(views, v)
	}
	return toJSON(views)
}

// Helper functions

func errorView(err error) classView {
	v := classView{Error: err.Error()}
	var ce *extract.ClassError
	if errors.As(err, &ce) {
		v.Name, v.Line, v.Error = ce.Class, ce.Line, ce.Err.Error()
	}
	return v
}

// stringList reads a comma-separated string argument. JSON arrays of strings
// are accepted too.
func stringList(args map[string]any, key string) []string {
	var parts []string
	switch v := args[key].(type) {
	case string:
		parts = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			if str, ok := item.(string); ok {
				parts = append(parts, str)
			}
		}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) relative(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func toJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
