package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/semmodel/source"
)

func watchCmd(flags *globalFlags) *cobra.Command {
	var excludes []string

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Regenerate models when requirements documents change",
		Long: `Watch monitors a directory tree and regenerates the model of every
requirements document that is created or whose content changes. Models are
written beside their source, or into store.output_dir when configured.
Documents present at start are not regenerated until they change.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			info, err := os.Stat(dir)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("not a directory: %s", dir)
			}

			a, err := newApp(flags, appOptions{controller: true})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			w, err := source.NewWatcher(source.WatchConfig{
				Debounce:    a.cfg.Watch.Debounce,
				Patterns:    a.cfg.Watch.Patterns,
				ExcludeDirs: excludes,
			}, dir, a.logger)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := w.Stop(); err != nil {
					a.logger.Warn("Failed to stop watcher", "error", err)
				}
			}()

			return watchLoop(ctx, a, w.Events())
		},
	}

	cmd.Flags().StringSliceVar(&excludes, "exclude", []string{"node_modules", "vendor"}, "Directory names to skip")
	return cmd
}

func watchLoop(ctx context.Context, a *app, events <-chan source.ChangeEvent) error {
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Received shutdown signal")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Op == source.OpDelete {
				a.logger.Info("Requirements removed", "path", ev.Path)
				continue
			}

			dest := modelPath(ev.AbsPath, a.cfg.Store.OutputDir)
			a.logger.Info("Regenerating model", "path", ev.Path, "op", ev.Op, "output", dest)
			res, err := generateOne(ctx, a.controller, ev.AbsPath, "", dest)
			if err != nil {
				a.logger.Error("Generate failed", "path", ev.Path, "error", err)
				continue
			}
			a.logger.Info("Model written",
				"path", ev.Path,
				"output", dest,
				"run_id", res.RunID,
				"termination", res.Termination,
				"caveat", res.Caveat)
		}
	}
}
