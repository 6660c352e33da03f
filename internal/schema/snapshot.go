package schema

import (
	"context"
	"fmt"
	"sync"

	"reasoner/internal/logging"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Snapshot caches lookups of an underlying Oracle. With pinning enabled, the
// first shard count read for a label is kept until Refresh, so one planning
// pass ranks candidates against a fixed view of the instance counts.
type Snapshot struct {
	base     Oracle
	concepts *lru.Cache[Label, lookupResult]
	pin      bool

	mu     sync.Mutex
	shards map[Label]int64
	labels map[Kind][]Label
}

type lookupResult struct {
	concept Concept
	found   bool
}

var _ Oracle = (*Snapshot)(nil)

// NewSnapshot wraps base with an LRU of the given size.
func NewSnapshot(base Oracle, size int, pinShardCounts bool) (*Snapshot, error) {
	cache, err := lru.New[Label, lookupResult](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache: %w", err)
	}
	return &Snapshot{
		base:     base,
		concepts: cache,
		pin:      pinShardCounts,
		shards:   make(map[Label]int64),
		labels:   make(map[Kind][]Label),
	}, nil
}

// Lookup implements Oracle.
func (s *Snapshot) Lookup(ctx context.Context, label Label) (Concept, bool, error) {
	if r, ok := s.concepts.Get(label); ok {
		return r.concept.Clone(), r.found, nil
	}
	c, found, err := s.base.Lookup(ctx, label)
	if err != nil {
		return Concept{}, false, err
	}
	s.concepts.Add(label, lookupResult{concept: c.Clone(), found: found})
	return c, found, nil
}

// Labels implements Oracle.
func (s *Snapshot) Labels(ctx context.Context, kind Kind) ([]Label, error) {
	s.mu.Lock()
	ls, ok := s.labels[kind]
	s.mu.Unlock()
	if ok {
		return append([]Label(nil), ls...), nil
	}
	ls, err := s.base.Labels(ctx, kind)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.labels[kind] = append([]Label(nil), ls...)
	s.mu.Unlock()
	return ls, nil
}

// ShardCount implements Oracle.
func (s *Snapshot) ShardCount(ctx context.Context, label Label) (int64, error) {
	if !s.pin {
		return s.base.ShardCount(ctx, label)
	}
	s.mu.Lock()
	n, ok := s.shards[label]
	s.mu.Unlock()
	if ok {
		return n, nil
	}
	n, err := s.base.ShardCount(ctx, label)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	if pinned, ok := s.shards[label]; ok {
		n = pinned
	} else {
		s.shards[label] = n
	}
	s.mu.Unlock()
	return n, nil
}

// Refresh drops every cached lookup and unpins shard counts.
func (s *Snapshot) Refresh() {
	s.concepts.Purge()
	s.mu.Lock()
	pinned := len(s.shards)
	s.shards = make(map[Label]int64)
	s.labels = make(map[Kind][]Label)
	s.mu.Unlock()
	logging.Get(logging.CategorySchema).Debug("snapshot refreshed", zap.Int("pinned_shard_counts", pinned))
}
