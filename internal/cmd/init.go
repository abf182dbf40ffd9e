package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/touml/touml/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Write a default .touml/config.yaml",
	Long: `Create the .touml directory and a config.yaml holding the default settings.

The same keys are accepted under [tool.touml] in pyproject.toml; a
.touml/config.yaml takes precedence when both exist.

Examples:
  touml init          # Initialize in current directory
  touml init --force  # Overwrite an existing config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	return initConfig(cmd, dir, initForce)
}

func initConfig(cmd *cobra.Command, dir string, force bool) error {
	configFile := filepath.Join(dir, config.ConfigDirName, config.ConfigFileName)

	_, err := os.Stat(configFile)
	if err == nil {
		if !force {
			fmt.Fprintf(cmd.OutOrStdout(), "Already initialized at %s\n", configFile)
			return nil
		}
		if err := os.Remove(configFile); err != nil {
			return fmt.Errorf("removing existing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking config path: %w", err)
	}

	path, err := config.SaveDefault(dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized touml config at %s\n", path)
	return nil
}
