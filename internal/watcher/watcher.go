// Package watcher detects new simulation result files, waits until they stop
// changing and dispatches each one to a bounded pool of conversion workers.
package watcher

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ganot/simcatalog/internal/converter"
	"github.com/ganot/simcatalog/internal/domain/simulation"
	"github.com/ganot/simcatalog/internal/notify"
)

// Converter is the conversion entry point used by the workers.
type Converter interface {
	Convert(ctx context.Context, sourcePath, id string) (*converter.Result, error)
	Supports(path string) bool
}

// Catalog is the part of the simulation service the watcher drives.
type Catalog interface {
	Get(ctx context.Context, id string) (*simulation.Simulation, error)
	Register(ctx context.Context, req simulation.RegisterRequest) (*simulation.Simulation, bool, error)
	Transition(ctx context.Context, id string, from, to simulation.Status, detail simulation.TransitionDetail) (*simulation.Simulation, error)
	RecordAttempt(ctx context.Context, id string, attempts int, detail string) error
	RecoverInterrupted(ctx context.Context) ([]string, error)
}

// Mirror copies converted datasets elsewhere after they become READY.
type Mirror interface {
	Mirror(ctx context.Context, id, datasetPath, metadataPath string) error
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithNotifier sends pipeline events to n.
func WithNotifier(n notify.Notifier) Option {
	return func(w *Watcher) { w.notifier = n }
}

// WithMirror uploads READY datasets through m.
func WithMirror(m Mirror) Option {
	return func(w *Watcher) { w.mirror = m }
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Processed     int64      `json:"processed"`
	Failed        int64      `json:"failed"`
	Quarantined   int64      `json:"quarantined"`
	Stabilizing   int        `json:"stabilizing"`
	InFlight      int        `json:"in_flight"`
	LastProcessed *time.Time `json:"last_processed,omitempty"`

	StorageFailures    int64      `json:"storage_failures"`
	LastStorageError   string     `json:"last_storage_error,omitempty"`
	LastStorageErrorAt *time.Time `json:"last_storage_error_at,omitempty"`
}

// observation is a stabilizing file's last seen size and mtime.
type observation struct {
	timer   *time.Timer
	size    int64
	modTime time.Time
}

// Watcher owns the per-path state machine from detection to dispatch.
type Watcher struct {
	cfg      Config
	conv     Converter
	catalog  Catalog
	notifier notify.Notifier
	mirror   Mirror
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	queue chan string

	mu       sync.Mutex
	closed   bool
	pending  map[string]*observation
	inflight map[string]struct{}
	stats    Stats
}

// New creates a watcher. Call Run to start it.
func New(cfg Config, conv Converter, catalog Catalog, logger *slog.Logger, opts ...Option) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	w := &Watcher{
		cfg:      cfg,
		conv:     conv,
		catalog:  catalog,
		logger:   logger,
		sleep:    sleepCtx,
		queue:    make(chan string, cfg.QueueSize),
		pending:  map[string]*observation{},
		inflight: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Stats returns a snapshot of the pipeline counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stats
	s.Stabilizing = len(w.pending)
	s.InFlight = len(w.inflight)
	if s.LastProcessed != nil {
		t := *s.LastProcessed
		s.LastProcessed = &t
	}
	if s.LastStorageErrorAt != nil {
		t := *s.LastStorageErrorAt
		s.LastStorageErrorAt = &t
	}
	return s
}

// Run recovers interrupted conversions, then watches the input directory
// until ctx is cancelled. In-flight conversions are abandoned on shutdown
// and recovered on the next start.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.InputDir, 0o755); err != nil {
		return fmt.Errorf("creating input dir: %w", err)
	}
	if _, err := w.catalog.RecoverInterrupted(ctx); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()

	var wg sync.WaitGroup
	wg.Add(w.cfg.Workers)
	for i := 0; i < w.cfg.Workers; i++ {
		go func() {
			defer wg.Done()
			w.work(ctx)
		}()
	}
	defer func() {
		w.shutdown()
		wg.Wait()
	}()

	if err := w.watchTree(fsw, w.cfg.InputDir); err != nil {
		return err
	}
	w.logger.Info("watching input directory", "dir", w.cfg.InputDir, "workers", w.cfg.Workers)

	var rescan <-chan time.Time
	if w.cfg.RescanInterval > 0 {
		ticker := time.NewTicker(w.cfg.RescanInterval)
		defer ticker.Stop()
		rescan = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			// Overflow drops events; the rescan picks up what was missed.
			w.logger.Warn("file watcher error", "error", err)
		case <-rescan:
			w.scan(w.cfg.InputDir)
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.watchTree(fsw, ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "dir", ev.Name, "error", err)
			}
			return
		}
		w.observe(ev.Name)
	case ev.Has(fsnotify.Rename), ev.Has(fsnotify.Remove):
		w.forget(ev.Name)
	}
}

// watchTree adds dir and its subdirectories to fsw and observes the files
// already present.
func (w *Watcher) watchTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != dir && w.skipDir(path) {
				return filepath.SkipDir
			}
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watching %s: %w", path, err)
			}
			return nil
		}
		w.observe(path)
		return nil
	})
}

// scan observes every candidate file under dir.
func (w *Watcher) scan(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		w.observe(path)
		return nil
	})
}

func (w *Watcher) skipDir(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	q, err := filepath.Abs(w.cfg.QuarantineDir)
	if err != nil {
		return false
	}
	p, err := filepath.Abs(path)
	return err == nil && p == q
}

// Ignored reports whether a path is never a conversion candidate: temporary
// files, hidden files and extensions without a registered reader.
func (w *Watcher) Ignored(path string) bool {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(lower, ".tmp"), strings.HasSuffix(lower, ".temp"), strings.HasSuffix(lower, "~"):
		return true
	}
	return !w.conv.Supports(path)
}

// observe moves a path into Stabilizing, or resets its timer if it is
// already there.
func (w *Watcher) observe(path string) {
	if w.Ignored(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, busy := w.inflight[path]; busy {
		return
	}
	if obs, ok := w.pending[path]; ok {
		obs.size = info.Size()
		obs.modTime = info.ModTime()
		obs.timer.Reset(w.cfg.Debounce)
		return
	}
	obs := &observation{size: info.Size(), modTime: info.ModTime()}
	obs.timer = time.AfterFunc(w.cfg.Debounce, func() { w.settle(path) })
	w.pending[path] = obs
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if obs, ok := w.pending[path]; ok {
		obs.timer.Stop()
		delete(w.pending, path)
	}
}

// settle runs when a path's debounce timer fires. The path is dispatched
// only if its size and mtime did not change during the interval.
func (w *Watcher) settle(path string) {
	info, statErr := os.Stat(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	obs, ok := w.pending[path]
	if !ok || w.closed {
		return
	}
	if statErr != nil {
		delete(w.pending, path)
		return
	}
	if info.Size() != obs.size || !info.ModTime().Equal(obs.modTime) {
		obs.size = info.Size()
		obs.modTime = info.ModTime()
		obs.timer.Reset(w.cfg.Debounce)
		return
	}

	select {
	case w.queue <- path:
		delete(w.pending, path)
		w.inflight[path] = struct{}{}
	default:
		// Queue full: stay stabilized and try again on the next tick.
		w.logger.Debug("dispatch queue full, deferring", "path", path)
		obs.timer.Reset(w.cfg.Debounce)
	}
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for path, obs := range w.pending {
		obs.timer.Stop()
		delete(w.pending, path)
	}
	close(w.queue)
}

func (w *Watcher) work(ctx context.Context) {
	for path := range w.queue {
		if ctx.Err() == nil {
			w.process(ctx, path)
		}
		w.mu.Lock()
		delete(w.inflight, path)
		w.mu.Unlock()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
