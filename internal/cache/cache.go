// Package cache reuses recorded answers of atoms. A lookup is served from an
// entry whose atom is the same up to renaming, or else from entries general
// enough to subsume it, filtered by the semantic difference.
package cache

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"reasoner/internal/answer"
	"reasoner/internal/atom"
	"reasoner/internal/equivalence"
	"reasoner/internal/logging"
	"reasoner/internal/semantic"
	"reasoner/internal/unify"
)

type entry struct {
	s       atom.Scoped
	hash    uint64
	answers []answer.Answer
}

// Stats counts lookups by outcome.
type Stats struct {
	Exact       int64
	Subsumptive int64
	Misses      int64
}

// Cache is a bounded answer cache. It is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, *entry]
	unifier *unify.Engine
	diff    *semantic.Computer
	log     *zap.Logger

	exact, subsumptive, misses atomic.Int64
}

// New returns a cache holding at most size atoms.
func New(u *unify.Engine, d *semantic.Computer, size int) (*Cache, error) {
	entries, err := lru.New[string, *entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create answer cache: %w", err)
	}
	return &Cache{
		entries: entries,
		unifier: u,
		diff:    d,
		log:     logging.Get(logging.CategoryCache),
	}, nil
}

func entryKey(s atom.Scoped) string {
	return s.Query.Key() + "#" + s.Atom.Key()
}

// Record stores the answers of s, replacing earlier answers of the same atom.
func (c *Cache) Record(ctx context.Context, s atom.Scoped, answers []answer.Answer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s = s.Normalized()
	c.entries.Add(entryKey(s), &entry{
		s:       s,
		hash:    equivalence.Structural.Hash(s),
		answers: slices.Clone(answers),
	})
	c.log.Debug("recorded", zap.Stringer("atom", s), zap.Int("answers", len(answers)))
	return nil
}

// Get returns answers to s from the cache. ok is false when no entry can
// answer s.
func (c *Cache) Get(ctx context.Context, s atom.Scoped) ([]answer.Answer, bool, error) {
	s = s.Normalized()
	hash := equivalence.Structural.Hash(s)
	keys := c.entries.Keys()

	for _, k := range keys {
		e, ok := c.entries.Peek(k)
		if !ok || e.hash != hash {
			continue
		}
		mu, err := c.unifier.Unify(ctx, s, e.s, unify.Exact)
		if err != nil {
			return nil, false, err
		}
		u, ok := mu.First()
		if !ok {
			continue
		}
		c.entries.Get(k)
		c.exact.Add(1)
		out := collect(e.answers, func(a answer.Answer) (answer.Answer, bool) { return u.UnUnify(a) })
		c.log.Debug("exact hit", zap.Stringer("atom", s), zap.Int("answers", len(out)))
		return out, true, nil
	}

	for _, k := range keys {
		e, ok := c.entries.Peek(k)
		if !ok {
			continue
		}
		out, found, err := c.subsume(ctx, s, e)
		if err != nil {
			return nil, false, err
		}
		if found {
			c.entries.Get(k)
			c.subsumptive.Add(1)
			c.log.Debug("subsumptive hit",
				zap.Stringer("atom", s),
				zap.Stringer("parent", e.s),
				zap.Int("answers", len(out)))
			return out, true, nil
		}
	}
	c.misses.Add(1)
	return nil, false, nil
}

func (c *Cache) subsume(ctx context.Context, s atom.Scoped, e *entry) ([]answer.Answer, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	mu, err := c.unifier.Unify(ctx, s, e.s, unify.Subsumptive)
	if err != nil {
		return nil, false, err
	}
	var (
		out   []answer.Answer
		found bool
	)
	for u := range mu.All() {
		found = true
		d, err := c.diff.Compute(ctx, s, e.s, u)
		if err != nil {
			return nil, false, err
		}
		out = append(out, collect(e.answers, func(a answer.Answer) (answer.Answer, bool) {
			return semantic.Propagate(a, u, d)
		})...)
	}
	return dedupe(out), found, nil
}

func collect(answers []answer.Answer, f func(answer.Answer) (answer.Answer, bool)) []answer.Answer {
	var out []answer.Answer
	for _, a := range answers {
		if got, ok := f(a); ok {
			out = append(out, got)
		}
	}
	return dedupe(out)
}

// dedupe removes repeated answers and orders them by key.
func dedupe(as []answer.Answer) []answer.Answer {
	slices.SortFunc(as, func(a, b answer.Answer) int { return strings.Compare(a.Key(), b.Key()) })
	return slices.CompactFunc(as, func(a, b answer.Answer) bool { return a.Key() == b.Key() })
}

// Stats returns the lookup counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Exact:       c.exact.Load(),
		Subsumptive: c.subsumptive.Load(),
		Misses:      c.misses.Load(),
	}
}

// Len returns the number of cached atoms.
func (c *Cache) Len() int { return c.entries.Len() }

// Purge drops every entry.
func (c *Cache) Purge() { c.entries.Purge() }
