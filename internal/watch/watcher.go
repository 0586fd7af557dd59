// Package watch re-syncs entities whose content files change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kingrea/sectorpages/internal/snapshot"
	"github.com/kingrea/sectorpages/internal/taxonomy"
)

// DefaultDebounce is how long an entity must be quiet before it is handled.
const DefaultDebounce = 750 * time.Millisecond

// Handler processes a settled batch of changed entities. It runs on the
// watcher goroutine, so batches never overlap.
type Handler func(ctx context.Context, changed []*taxonomy.Entity)

// Stats tracks watcher activity.
type Stats struct {
	Events   int
	Ignored  int
	Batches  int
	Errors   int
	LastPath string
}

// Watcher watches every entity directory of a content tree.
type Watcher struct {
	layout   taxonomy.DirLayout
	entities []taxonomy.Entity
	byDir    map[string]int
	debounce time.Duration
	tick     time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[int]time.Time
	stats   Stats
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
			w.tick = max(d/5, 5*time.Millisecond)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New builds a watcher over entities laid out under layout.
func New(layout taxonomy.DirLayout, entities []taxonomy.Entity, opts ...Option) *Watcher {
	w := &Watcher{
		layout:   layout,
		entities: entities,
		byDir:    make(map[string]int, len(entities)),
		debounce: DefaultDebounce,
		tick:     100 * time.Millisecond,
		logger:   zap.NewNop(),
		pending:  map[int]time.Time{},
	}
	for _, opt := range opts {
		opt(w)
	}
	for i := range entities {
		w.byDir[filepath.Clean(layout.Dir(&entities[i]))] = i
	}
	return w
}

// Stats returns a copy of the activity counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run watches until ctx is cancelled. Directories that do not exist yet are
// skipped with a warning; run scaffold first to create them.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fsw.Close()

	watched := 0
	for dir := range w.byDir {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("directory not watched", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("watch: no entity directories could be watched under %s", w.layout.Root)
	}
	w.logger.Info("watching content", zap.Int("dirs", watched), zap.Duration("debounce", w.debounce))

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case now := <-ticker.C:
			if batch := w.settled(now); len(batch) > 0 {
				handle(ctx, batch)
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Events++
	w.stats.LastPath = event.Name
	if Ignored(event.Name) {
		w.stats.Ignored++
		return
	}
	idx, ok := w.byDir[filepath.Dir(filepath.Clean(event.Name))]
	if !ok {
		w.stats.Ignored++
		return
	}
	w.pending[idx] = time.Now()
	w.logger.Debug("content changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
}

// settled removes and returns entities quiet for the debounce window, in
// taxonomy order.
func (w *Watcher) settled(now time.Time) []*taxonomy.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ready []int
	for idx, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, idx)
			delete(w.pending, idx)
		}
	}
	if len(ready) == 0 {
		return nil
	}
	sort.Ints(ready)
	batch := make([]*taxonomy.Entity, 0, len(ready))
	for _, idx := range ready {
		batch = append(batch, &w.entities[idx])
	}
	w.stats.Batches++
	return batch
}

// Ignored reports whether a path is written by the tool itself: snapshots,
// optimized images and temp files. Reacting to them would loop.
func Ignored(path string) bool {
	base := filepath.Base(path)
	if base == snapshot.FileName || strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return true
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.HasSuffix(stem, "-optimized")
}
