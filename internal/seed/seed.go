// Package seed watches a seed file on disk and keeps the registry in sync
// with it: servers added to the file are discovered and registered,
// servers removed from it are deregistered, and changed entries are
// rediscovered and re-registered.
package seed

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/petrel-dev/mcp-registry/internal/config"
)

// Applier is the subset of registry behavior the watcher needs: registering
// a newly seen server (or re-registering a changed one) and removing one
// that disappeared from the file.
type Applier interface {
	Apply(ctx context.Context, name string, cfg config.ServerConfig) error
	Remove(ctx context.Context, name string) error
}

// Watcher debounces fsnotify events on a seed file and reconciles the
// registry against it.
type Watcher struct {
	path    string
	applier Applier

	fsw  *fsnotify.Watcher
	last map[string]config.ServerConfig

	stop chan struct{}
}

// New loads path once (failing if it is invalid) and prepares a watcher
// that will reconcile future changes to it.
func New(path string, applier Applier) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	initial, err := config.LoadSeed(absPath)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:    absPath,
		applier: applier,
		fsw:     fsw,
		last:    initial.Enabled(),
		stop:    make(chan struct{}),
	}, nil
}

// Bootstrap applies the seed file's current contents. Call once at startup
// before Start, so the initial registration runs synchronously.
func (w *Watcher) Bootstrap(ctx context.Context) {
	for name, cfg := range w.last {
		if err := w.applier.Apply(ctx, name, cfg); err != nil {
			slog.Warn("seed: failed to register server", "server", name, "error", err)
		}
	}
}

// Start begins watching the seed file for changes.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.path); err != nil {
		return err
	}
	go w.loop(ctx)
	return nil
}

func (w *Watcher) Stop() {
	close(w.stop)
	w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	const debounce = 500 * time.Millisecond
	var timer *time.Timer

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() { w.reconcile(ctx) })
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("seed: watch error", "error", err)
		}
	}
}

func (w *Watcher) reconcile(ctx context.Context) {
	next, err := config.LoadSeed(w.path)
	if err != nil {
		slog.Warn("seed: reload failed, keeping previous state", "error", err)
		return
	}
	nextEnabled := next.Enabled()

	for name := range w.last {
		if _, ok := nextEnabled[name]; !ok {
			slog.Info("seed: removing server", "server", name)
			if err := w.applier.Remove(ctx, name); err != nil {
				slog.Warn("seed: failed to remove server", "server", name, "error", err)
			}
		}
	}

	for name, cfg := range nextEnabled {
		old, existed := w.last[name]
		if existed && sameConfig(old, cfg) {
			continue
		}
		slog.Info("seed: applying server", "server", name, "new", !existed)
		if err := w.applier.Apply(ctx, name, cfg); err != nil {
			slog.Warn("seed: failed to apply server", "server", name, "error", err)
		}
	}

	w.last = nextEnabled
}

func sameConfig(a, b config.ServerConfig) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return reflect.DeepEqual(aj, bj)
}
