package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/touml/touml/internal/cache"
	"github.com/touml/touml/internal/pipeline"
	"github.com/touml/touml/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [PATH]",
	Short: "Re-render the diagram whenever Python files change",
	Long: `Render PATH once, then keep the output file up to date as files are
created, edited or removed. Unchanged files are served from the block cache,
so only edited files are parsed again.

A render that fails (for example on a syntax error mid-edit) is logged and
the previous diagram is left in place.

Examples:
  touml watch src/ -o docs/classes.mmd
  touml watch . -o docs/ --exclude-dirs tests
  touml watch src/ -o out.mmd --idle-timeout 1h   # Stop after an hour without changes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var (
	watchFlags       convertFlags
	watchDebounce    time.Duration
	watchIdleTimeout string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags.register(watchCmd.Flags())
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Wait this long after the last change before rendering")
	watchCmd.Flags().StringVar(&watchIdleTimeout, "idle-timeout", "0", "Stop after this long without changes (0 for no timeout)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) == 1 {
		target = args[0]
	}

	s, err := resolveSettings(cmd.Flags(), &watchFlags, target)
	if err != nil {
		return err
	}
	out, err := resolveOutput(s.cfg.Output)
	if err != nil {
		return err
	}
	if out == "" {
		return errors.New("watch needs an output file, use -o")
	}

	idle, err := parseDuration(watchIdleTimeout)
	if err != nil {
		return fmt.Errorf("invalid idle timeout: %w", err)
	}

	c, err := openCache(s)
	if err != nil {
		return err
	}
	if c == nil {
		if c, err = cache.New(cache.DefaultSize); err != nil {
			return err
		}
	}
	defer c.Close()

	logger := newLogger(cmd.ErrOrStderr(), slog.LevelInfo)
	s.convert.Cache = c
	s.convert.Logger = logger

	conv, err := pipeline.NewConverter(s.convert)
	if err != nil {
		return err
	}

	w, err := watch.New(conv, watch.Config{
		Root:        target,
		Discover:    s.discover,
		Debounce:    watchDebounce,
		IdleTimeout: idle,
		Write:       watch.WriteFile(out),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	printSuccess(cmd.ErrOrStderr(), "watching %s, writing %s (Ctrl+C to stop)", target, out)
	if err := w.Run(cmd.Context()); err != nil {
		return err
	}

	st := w.Status()
	printSuccess(cmd.ErrOrStderr(), "stopped after %d renders", st.Renders)
	return nil
}
