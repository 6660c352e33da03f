package schema

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"reasoner/internal/logging"
)

// Live is an Oracle over the most recently loaded Graph. Lookups in flight
// during a Swap see either the old or the new graph, never a mix.
type Live struct {
	g atomic.Pointer[Graph]
}

// NewLive returns a Live oracle serving g.
func NewLive(g *Graph) *Live {
	l := &Live{}
	l.g.Store(g)
	return l
}

// Graph returns the graph currently served.
func (l *Live) Graph() *Graph { return l.g.Load() }

// Swap replaces the served graph.
func (l *Live) Swap(g *Graph) { l.g.Store(g) }

// Lookup implements Oracle.
func (l *Live) Lookup(ctx context.Context, label Label) (Concept, bool, error) {
	return l.g.Load().Lookup(ctx, label)
}

// Labels implements Oracle.
func (l *Live) Labels(ctx context.Context, kind Kind) ([]Label, error) {
	return l.g.Load().Labels(ctx, kind)
}

// ShardCount implements Oracle.
func (l *Live) ShardCount(ctx context.Context, label Label) (int64, error) {
	return l.g.Load().ShardCount(ctx, label)
}

// Watcher reloads a YAML schema definition into a Live oracle whenever the
// file changes. Rapid successive writes are coalesced into one reload.
type Watcher struct {
	path     string
	live     *Live
	debounce time.Duration
	onReload func(*Graph, error)
	log      *zap.Logger
}

// NewWatcher watches path and swaps every successfully parsed graph into
// live. onReload, if set, is called after each reload attempt; a failed
// parse leaves live unchanged.
func NewWatcher(path string, live *Live, onReload func(*Graph, error)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		live:     live,
		debounce: 200 * time.Millisecond,
		onReload: onReload,
		log:      logging.Get(logging.CategorySchema),
	}
}

// WithDebounce sets how long the file must stay quiet before a reload.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Run watches until ctx is done. The directory is watched rather than the
// file so that editors replacing the file by rename are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.log.Info("watching schema", zap.String("path", w.path))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
			w.log.Debug("schema file event", zap.String("op", ev.Op.String()))
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("schema watcher error", zap.Error(err))
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	g, err := LoadYAML(w.path)
	if err != nil {
		w.log.Warn("schema reload failed, keeping previous graph", zap.Error(err))
	} else {
		w.live.Swap(g)
		w.log.Info("schema reloaded", zap.Int("concepts", len(g.Concepts())))
	}
	if w.onReload != nil {
		w.onReload(g, err)
	}
}
