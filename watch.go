package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const watchDebounce = 300 * time.Millisecond

func (a *app) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Audit once, then again whenever a test file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&a.opts.dryRun, "dry-run", false, "report without modifying any file")
	return cmd
}

// watch runs an audit, then re-runs it after changes to candidate files
// settle, until ctx is done. Audits run on this goroutine one at a time.
func (a *app) watch(ctx context.Context, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	layout := a.config.Layout()
	for _, dir := range []string{layout.TestsDir, layout.SourcesDir} {
		if dir == "" {
			continue
		}
		if err := addWatchRecursive(watcher, filepath.Join(a.opts.root, dir)); err != nil {
			return err
		}
	}

	runOnce := func() {
		if _, err := a.audit(out); err != nil {
			a.logger.Error("audit failed", zap.Error(err))
		}
	}
	runOnce()

	trigger := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			relevant := strings.HasSuffix(ev.Name, layout.Extension)
			if ev.Has(fsnotify.Create) {
				// Files may land in a new directory before it is watched.
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = addWatchRecursive(watcher, ev.Name)
					relevant = true
				}
			}
			if !relevant {
				continue
			}
			a.logger.Debug("change detected", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case <-trigger:
			runOnce()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// addWatchRecursive watches root and every directory below it. A missing
// root is ignored.
func addWatchRecursive(w *fsnotify.Watcher, root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
