// Package watcher monitors repository roots for filesystem changes with
// debouncing, so bursts of writes collapse into one change batch handed to
// the scan layer.
package watcher

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event is one debounced filesystem change.
type Event struct {
	// Path is the absolute path that changed
	Path string
	// Op is the raw fsnotify operation
	Op fsnotify.Op
	// Time records when the change was observed
	Time time.Time
}

// Handler receives debounced change batches.
type Handler func(events []Event)

// Watcher watches one or more directory trees and delivers debounced
// change batches to its handlers.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	handlers []Handler
	pending  []Event
	timer    *time.Timer
	started  bool
}

// New creates a watcher with the given debounce window.
func New(debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{fsw: fsw, debounce: debounce, log: log}, nil
}

// AddHandler registers a change handler. Handlers run on the watcher's
// event goroutine and must not block.
func (w *Watcher) AddHandler(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// AddRecursive watches root and every directory beneath it. Directories
// created later are picked up as their creation events arrive.
func (w *Watcher) AddRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

// Start runs the event loop until ctx is cancelled or the watcher is
// closed.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.observe(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// observe records one raw event and (re)arms the debounce timer.
func (w *Watcher) observe(ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Create) {
		// new directories must be watched for the recursion to hold
		if err := w.fsw.Add(ev.Name); err == nil {
			w.log.Debug("watching new path", "path", ev.Name)
		}
	}
	if ev.Op.Has(fsnotify.Chmod) && ev.Op&^fsnotify.Chmod == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, Event{Path: ev.Name, Op: ev.Op, Time: time.Now()})
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush hands the pending batch to every handler.
func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	handlers := make([]Handler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	w.log.Debug("change batch", "events", len(batch))
	for _, handler := range handlers {
		handler(batch)
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
