// Package filesystem reads declarations from a directory tree and watches it
// for changes.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/artpar/eventdsl/core/parser"
	"github.com/artpar/eventdsl/core/schema"
	"github.com/artpar/eventdsl/ports"
)

// Dir is a declaration source over every declaration file under Path.
type Dir struct {
	Path string
}

var _ ports.DeclarationSource = Dir{}

// Name identifies the source in logs.
func (d Dir) Name() string {
	return "dir:" + d.Path
}

// Load parses every declaration file under the directory. A single path
// to a file is also accepted.
func (d Dir) Load(ctx context.Context) ([]schema.TypeDeclaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(d.Path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return parser.ParseFile(d.Path)
	}
	return parser.ParseDir(d.Path)
}

// DefaultDebounce is the quiet period after the last change before the
// watcher fires.
const DefaultDebounce = 250 * time.Millisecond

// Watcher calls OnChange after declaration files under a directory change.
// Bursts of events (editor atomic saves, git checkouts) are coalesced.
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func(ctx context.Context)
	logger   zerolog.Logger

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher creates a watcher for root. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(root string, debounce time.Duration, onChange func(ctx context.Context), logger zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		onChange: onChange,
		logger:   logger.With().Str("component", "watcher").Str("path", root).Logger(),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start watches root and every directory below it.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.watcher = watcher

	err = filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go w.loop(ctx)

	w.logger.Info().Msg("watching declarations for changes")
	return nil
}

// Stop stops watching and waits for the watch goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
			<-w.done
		}
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug().
				Str("event", ev.Op.String()).
				Str("file", ev.Name).
				Msg("declaration changed")
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("file watcher error")

		case <-timer.C:
			w.onChange(ctx)

		case <-ctx.Done():
			return

		case <-w.stopCh:
			return
		}
	}
}

// relevant reports whether ev touches a declaration file. New directories
// are added to the watch set.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(ev.Name); err != nil {
				w.logger.Warn().Err(err).Str("dir", ev.Name).Msg("cannot watch new directory")
			}
			return true
		}
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return parser.HasExtension(ev.Name)
}
