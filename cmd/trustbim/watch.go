package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ersonp/trustbim/internal/application/handlers"
)

func newWatchCmd() *cobra.Command {
	var (
		flags    runFlags
		debounce = handlers.DefaultDebounce
	)

	cmd := &cobra.Command{
		Use:   "watch <patterns...>",
		Short: "Re-validate whenever records or rules change",
		Long: "Runs once, then watches the inputs and the rule catalog and runs again on every change.\n" +
			"A rule change reloads the catalog; a catalog that fails to compile keeps the previous one.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, flags, debounce)
		},
	}

	addRunFlags(cmd, &flags)
	cmd.Flags().DurationVar(&debounce, "debounce", handlers.DefaultDebounce, "Wait for further changes before re-running")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, flags runFlags, debounce time.Duration) error {
	ctx := cmd.Context()

	return withDeps(func(d *Deps) error {
		session, err := newRunSession(ctx, d, flags)
		if err != nil {
			return err
		}
		defer session.Close()

		runOnce := func(ctx context.Context) {
			result, err := session.Run(ctx, args)
			if err != nil {
				d.Logger.Error("run failed", zap.Error(err))
				return
			}
			rep := result.Report
			fmt.Printf("run %s: %d entities, %d mapped, %d for review, %d record errors\n",
				rep.RunID, rep.Entities, rep.Mapped, rep.ReviewQueue, rep.RecordErrors)
		}

		runOnce(ctx)

		rules := d.RulesPath()
		watched := append([]string{}, args...)
		if rules != "" && pathExists(rules) {
			watched = append(watched, rules)
		}

		watcher, err := handlers.NewWatcher(watched, debounce, d.Logger)
		if err != nil {
			return err
		}
		defer watcher.Close()

		fmt.Println("Watching for changes. Press Ctrl+C to stop.")

		outDir := session.opts.ReportDir
		err = watcher.Run(ctx, func(ctx context.Context, changed []string) error {
			changed = dropUnder(outDir, changed)
			if len(changed) == 0 {
				return nil
			}
			if touchesRules(rules, changed) {
				if err := session.Reload(); err != nil {
					d.Logger.Error("keeping previous rule catalog", zap.Error(err))
				} else {
					d.Logger.Info("rule catalog reloaded")
				}
			}
			runOnce(ctx)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

// dropUnder removes paths inside dir, so a run's own outputs do not trigger another run.
func dropUnder(dir string, paths []string) []string {
	if dir == "" {
		return paths
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return paths
	}
	prefix := abs + string(filepath.Separator)

	kept := paths[:0:0]
	for _, p := range paths {
		if !strings.HasPrefix(p, prefix) {
			kept = append(kept, p)
		}
	}
	return kept
}

// touchesRules reports whether any changed file is the rule catalog or lies inside it.
func touchesRules(rules string, changed []string) bool {
	if rules == "" {
		return false
	}
	info, err := os.Stat(rules)
	isDir := err == nil && info.IsDir()

	for _, path := range changed {
		if path == rules {
			return true
		}
		if isDir && strings.HasPrefix(path, rules+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
