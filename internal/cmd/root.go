// Package cmd contains all CLI commands for touml.
package cmd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Global flags
	verbose    bool
	configPath string
	noColor    bool
	forAgents  bool

	rootFlags convertFlags
)

// rootCmd converts a file or directory when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "touml [PATH]",
	Short: "Render Python class hierarchies as Mermaid class diagrams",
	Long: `touml reads Python source and writes a Mermaid classDiagram describing
every class it finds: fields, methods with their annotations, and the
inheritance edges between classes.

PATH is a Python file or a directory (default: the current directory).
Directories are searched recursively; hidden directories, __pycache__,
virtual environments and build output are skipped.

Configuration is read from .touml/config.yaml or the [tool.touml] table of
pyproject.toml. Flags override configured values; exclusion flags add to
the configured patterns.

Examples:
  touml src/                          # Print the diagram for src/
  touml src/ -o docs/                 # Write docs/output.mmd
  touml models.py -o models.mmd       # Convert a single file
  touml . --exclude-names 'Test*'     # Drop test classes
  touml . --exclude-bases Exception   # Drop exceptions and their subclasses
  touml watch src/ -o docs/classes.mmd

See 'touml <command> --help' for command-specific options.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runConvert,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("touml {{.Version}}\n")

	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: .touml/config.yaml or pyproject.toml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored messages")
	rootCmd.Flags().BoolVar(&forAgents, "for-agents", false, "Output machine-readable capability discovery JSON")

	rootFlags.register(rootCmd.Flags())

	// Set custom help function to intercept --for-agents flag
	originalHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if forAgents {
			outputAgentHelp(cmd)
			return
		}
		originalHelp(cmd, args)
	})
}

// newLogger writes structured logs to w. --verbose lowers the level to debug.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// CommandInfo represents a command for agent discovery
type CommandInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Usage       string        `json:"usage"`
	Flags       []FlagInfo    `json:"flags,omitempty"`
	Subcommands []CommandInfo `json:"subcommands,omitempty"`
}

// FlagInfo represents a command flag for agent discovery
type FlagInfo struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
}

// outputAgentHelp outputs machine-readable JSON describing all commands
func outputAgentHelp(cmd *cobra.Command) {
	root := buildCommandInfo(cmd.Root())

	output := map[string]any{
		"version":  Version,
		"usage":    root.Usage,
		"flags":    root.Flags,
		"commands": root.Subcommands,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(output)
}

// buildCommandInfo recursively builds command information for agent discovery
func buildCommandInfo(cmd *cobra.Command) CommandInfo {
	info := CommandInfo{
		Name:        cmd.Name(),
		Description: cmd.Short,
		Usage:       cmd.UseLine(),
	}

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		info.Flags = append(info.Flags, FlagInfo{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Description: f.Usage,
			Type:        f.Value.Type(),
			Default:     f.DefValue,
		})
	})

	for _, sub := range cmd.Commands() {
		if sub.Hidden || !sub.IsAvailableCommand() {
			continue
		}
		info.Subcommands = append(info.Subcommands, buildCommandInfo(sub))
	}

	return info
}
