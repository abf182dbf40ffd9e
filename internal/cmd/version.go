package cmd

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/touml/touml/internal/mcp"
)

// Version information, overridable at build time via -ldflags.
var (
	Version   = "0.3.0"
	GitCommit = ""
	BuildDate = ""
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "touml %s\n", color.New(color.FgGreen, color.Bold).Sprint(Version))
		if GitCommit != "" {
			fmt.Fprintf(out, "  commit:   %s\n", GitCommit)
		}
		if BuildDate != "" {
			fmt.Fprintf(out, "  built:    %s\n", BuildDate)
		}
		fmt.Fprintf(out, "  go:       %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "  mcp:      %s\n", mcp.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
