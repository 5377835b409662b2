// =============================================================================
// BBOX Fuel Dispense Analyzer - Watch Command
// =============================================================================
//
// COMMAND USAGE:
//   bbox-analyzer watch [--format xlsx]
//
// Analyzes every BBOX file already in the input directory, then waits for
// new ones. Each file is analyzed once, after writes to it have been quiet
// for the debounce interval, and merged into the same model. The report is
// rewritten in place after every file.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/report"
	"github.com/ginjaninja78/bbox-fuel-analyzer/internal/validation"
	"github.com/ginjaninja78/bbox-fuel-analyzer/pkg/utils"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Analyze BBOX files as they arrive in the input directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, cmd)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&formatFlag, "format", "", "Report format: xlsx, csv or xml (default from config)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", time.Second, "Quiet period before a changed file is analyzed")
}

func runWatch(ctx context.Context, cmd *cobra.Command) error {
	cfg := mainConfig
	name := cfg.ReportFormat
	if formatFlag != "" {
		name = formatFlag
	}
	format, err := report.ParseFormat(name)
	if err != nil {
		return err
	}

	fm := newFileManager(cfg)
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}
	eng := newEngine(ctx, cfg, nil)
	path := reportPath(cfg, format, "")

	w, err := newDirWatcher(fm, watchDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	w.OnReady = func(paths []string) {
		sum, err := eng.Run(ctx, fileSources(paths))
		if err != nil {
			return
		}
		for _, f := range sum.Failures {
			logger.Error("source failed", "source", f.Source, "error", f.Err)
		}
		if _, err := utils.WriteErrorLog(errorEntries(sum, nil), cfg.LogDir, sum.RunID); err != nil {
			logger.Error("failed to write error log", "error", err)
		}

		rows := eng.Rows()
		diags := validation.CheckRates(rows, plausibilityOptions(cfg))
		data := report.Data{RunID: sum.RunID, Rows: rows, Catalog: eng.Catalog(), Diagnostics: diags}
		if err := report.Write(format, path, data); err != nil {
			logger.Error("failed to write report", "path", path, "error", err)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d events, %d sources merged)\n",
			successStyle.Render("✓"), filepath.Base(path), len(rows), eng.Merged())
	}

	logger.Info("watching input directory", "dir", cfg.InputDir, "report", path)
	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// =============================================================================
// DIRECTORY WATCHER
// =============================================================================

// dirWatcher reports each matching file under a directory tree exactly once,
// after it has stopped changing.
type dirWatcher struct {
	fm       *utils.FileManager
	watcher  *fsnotify.Watcher
	debounce time.Duration

	// OnReady receives batches of paths. Calls are sequential.
	OnReady func(paths []string)

	mu      sync.Mutex
	seen    map[string]bool
	pending map[string]*time.Timer
	ready   chan string

	// done is closed by Close; it releases timers that fire late.
	done      chan struct{}
	closeOnce sync.Once
}

func newDirWatcher(fm *utils.FileManager, debounce time.Duration) (*dirWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &dirWatcher{
		fm:       fm,
		watcher:  fsw,
		debounce: debounce,
		seen:     make(map[string]bool),
		pending:  make(map[string]*time.Timer),
		ready:    make(chan string, 64),
		done:     make(chan struct{}),
	}, nil
}

// addTree watches dir and every directory below it, and returns the
// matching files already present.
func (w *dirWatcher) addTree(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		if w.fm.Matches(path) {
			found = append(found, path)
		}
		return nil
	})
	return found, err
}

// claim marks paths as seen and returns those that were not.
func (w *dirWatcher) claim(paths []string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var fresh []string
	for _, p := range paths {
		if !w.seen[p] {
			w.seen[p] = true
			fresh = append(fresh, p)
		}
	}
	return fresh
}

// touch (re)starts the quiet timer of path.
func (w *dirWatcher) touch(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[path] {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.enqueue(path)
	})
}

// enqueue hands path to Run, or drops it once the watcher is closed.
func (w *dirWatcher) enqueue(path string) {
	select {
	case w.ready <- path:
	case <-w.done:
	}
}

// Run processes the files already present, then watches until ctx is
// cancelled.
func (w *dirWatcher) Run(ctx context.Context) error {
	existing, err := w.addTree(w.fm.InputDir)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.fm.InputDir, err)
	}
	w.deliver(existing)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case path := <-w.ready:
			w.deliver([]string{path})

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if event.Has(fsnotify.Create) {
					files, err := w.addTree(event.Name)
					if err != nil {
						logger.Warn("failed to watch directory", "dir", event.Name, "error", err)
					}
					for _, f := range files {
						w.touch(f)
					}
				}
				continue
			}
			if w.fm.Matches(event.Name) {
				w.touch(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}

func (w *dirWatcher) deliver(paths []string) {
	fresh := w.claim(paths)
	if len(fresh) == 0 || w.OnReady == nil {
		return
	}
	w.OnReady(fresh)
}

// Close stops the watcher and any pending timers.
func (w *dirWatcher) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	w.mu.Lock()
	for _, t := range w.pending {
		t.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
