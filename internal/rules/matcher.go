package rules

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reasoner/internal/atom"
	"reasoner/internal/logging"
	"reasoner/internal/unify"
)

// Match is a rule applicable to an atom with the unifiers from the atom to
// the rule's conclusion.
type Match struct {
	Rule     *Rule
	Unifiers []unify.Unifier
}

// Matcher unifies atoms against rule conclusions.
type Matcher struct {
	unifier     *unify.Engine
	parallelism int
	maxUnifiers int
	skipErrors  bool
	log         *zap.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithParallelism bounds the number of rules unified at once.
func WithParallelism(n int) Option {
	return func(m *Matcher) { m.parallelism = n }
}

// WithMaxUnifiers caps the unifiers taken from each rule; zero means all.
func WithMaxUnifiers(n int) Option {
	return func(m *Matcher) { m.maxUnifiers = n }
}

// WithSkipErrors logs and skips rules whose unification fails instead of
// failing the whole scan.
func WithSkipErrors(skip bool) Option {
	return func(m *Matcher) { m.skipErrors = skip }
}

// WithLogger replaces the rules category logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) { m.log = l }
}

// NewMatcher returns a Matcher using u.
func NewMatcher(u *unify.Engine, opts ...Option) *Matcher {
	m := &Matcher{unifier: u, parallelism: 4}
	for _, o := range opts {
		o(m)
	}
	if m.parallelism < 1 {
		m.parallelism = 1
	}
	if m.log == nil {
		m.log = logging.Get(logging.CategoryRules)
	}
	return m
}

// Applicable returns the rules whose conclusion can answer s, in the order
// given.
func (m *Matcher) Applicable(ctx context.Context, s atom.Scoped, rules []*Rule) ([]Match, error) {
	timer := logging.StartTimer(logging.CategoryRules, "Applicable")
	defer timer.Stop()

	if !s.Atom.IsRuleResolvable() {
		return nil, nil
	}

	found := make([][]unify.Unifier, len(rules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallelism)
	for i, r := range rules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			mu, err := m.unifier.Unify(gctx, s, r.Head(), unify.Rule)
			if err != nil {
				if m.skipErrors {
					m.log.Warn("skipping rule", zap.String("rule", r.Label), zap.Error(err))
					return nil
				}
				return fmt.Errorf("rule %s: %w", r.Label, err)
			}
			found[i] = mu.Collect(m.maxUnifiers)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Match
	for i, us := range found {
		if len(us) > 0 {
			out = append(out, Match{Rule: rules[i], Unifiers: us})
		}
	}
	m.log.Debug("applicable rules",
		zap.Stringer("atom", s),
		zap.Int("rules", len(rules)),
		zap.Int("matches", len(out)))
	return out, nil
}
