package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/touml/touml/internal/mcp"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server for AI agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdin/stdout so agents can
convert Python source without spawning a process per call.

Exclusion settings from .touml/config.yaml or pyproject.toml apply to every
call; patterns passed to a tool are added to them.

Available Tools:
  touml_convert       Convert Python source text to a Mermaid class diagram
  touml_convert_path  Convert a file or directory under the working directory
  touml_classes       List the classes in Python source as JSON

Examples:
  touml serve --mcp                        # Start with all tools
  touml serve --mcp --tools convert        # Expose touml_convert only
  touml serve --mcp --timeout 30m          # Auto-stop after 30 minutes idle
  touml serve --list-tools                 # Show available tools`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveMCP       bool
	serveTools     string
	serveTimeout   string
	serveListTools bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "Start MCP server (stdio transport)")
	serveCmd.Flags().StringVar(&serveTools, "tools", "", "Comma-separated list of tools to expose (default: all)")
	serveCmd.Flags().StringVar(&serveTimeout, "timeout", "30m", "Inactivity timeout (0 for no timeout)")
	serveCmd.Flags().BoolVar(&serveListTools, "list-tools", false, "List available tools")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveListTools {
		listTools(cmd.OutOrStdout())
		return nil
	}

	if !serveMCP {
		return fmt.Errorf("use --mcp to start the MCP server, or --help for usage")
	}

	timeout, err := parseDuration(serveTimeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	// Configured exclusions become server-wide defaults.
	s, err := resolveSettings(cmd.Flags(), &convertFlags{}, ".")
	if err != nil {
		return err
	}
	s.convert.Logger = newLogger(cmd.ErrOrStderr(), slog.LevelWarn)

	server, err := mcp.New(mcp.Config{
		Tools:    parseTools(serveTools),
		Timeout:  timeout,
		Convert:  s.convert,
		Discover: s.discover,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Log startup info to stderr (stdout is for MCP protocol)
	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "touml serve: starting MCP server\n")
	fmt.Fprintf(stderr, "touml serve: tools: %v\n", server.ListTools())
	if timeout > 0 {
		fmt.Fprintf(stderr, "touml serve: timeout: %v\n", timeout)
	}

	err = server.ServeStdio(cmd.Context())
	fmt.Fprintf(stderr, "touml serve: shutting down\n")
	return err
}

func listTools(w io.Writer) {
	fmt.Fprintln(w, "Available MCP tools:")
	fmt.Fprintln(w)
	for _, schema := range mcp.ToolSchemas() {
		fmt.Fprintf(w, "  %-20s %s\n", schema.Name, schema.Description)
	}
}

// parseTools splits a comma-separated tool list. Names may omit the
// touml_ prefix (convert -> touml_convert).
func parseTools(s string) []string {
	var tools []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !strings.HasPrefix(t, "touml_") {
			t = "touml_" + t
		}
		tools = append(tools, t)
	}
	return tools
}

func parseDuration(s string) (time.Duration, error) {
	if s == "0" || s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
