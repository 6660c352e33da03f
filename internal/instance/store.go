// Package instance keeps concrete things as Mangle facts and creates or
// finds the instances that satisfy resolved atoms.
package instance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/factstore"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"reasoner/internal/answer"
	"reasoner/internal/logging"
	"reasoner/internal/schema"
)

// Fact predicates.
var (
	isaPred        = ast.PredicateSym{Symbol: "isa", Arity: 2}         // isa(ID, Type)
	rolePlayerPred = ast.PredicateSym{Symbol: "role_player", Arity: 3} // role_player(Rel, Role, Player)
	hasPred        = ast.PredicateSym{Symbol: "has", Arity: 2}         // has(Owner, Attribute)
	valuePred      = ast.PredicateSym{Symbol: "value", Arity: 3}       // value(Attribute, Kind, Value)
)

// ErrFactLimit is returned when a write would exceed the configured limit.
var ErrFactLimit = errors.New("fact limit reached")

// Store is an instance oracle over an in-memory Mangle fact store.
type Store struct {
	mu    sync.Mutex
	facts factstore.FactStore
	h     *schema.Hierarchy
	newID func() string
	limit int
	count int
	log   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIDs replaces the id generator. The default mints random UUIDs.
func WithIDs(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithFactLimit bounds the number of stored facts; zero means unbounded.
func WithFactLimit(n int) Option {
	return func(s *Store) { s.limit = n }
}

// WithLogger replaces the instance category logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore returns an empty store validating against h.
func NewStore(h *schema.Hierarchy, opts ...Option) *Store {
	s := &Store{
		facts: factstore.NewSimpleInMemoryStore(),
		h:     h,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logging.Get(logging.CategoryInstance)
	}
	return s
}

// SequentialIDs returns a generator of ids prefix1, prefix2, ...
func SequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}

// Facts returns the number of stored facts.
func (s *Store) Facts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// add stores a fact. Callers hold s.mu.
func (s *Store) add(pred ast.PredicateSym, args ...ast.BaseTerm) error {
	if s.limit > 0 && s.count >= s.limit {
		return fmt.Errorf("%w: %d facts", ErrFactLimit, s.limit)
	}
	if s.facts.Add(ast.Atom{Predicate: pred, Args: args}) {
		s.count++
	}
	return nil
}

// scan calls fn with the string arguments of every pred fact whose
// arguments equal want where want is not empty.
func (s *Store) scan(pred ast.PredicateSym, want []string, fn func(args []ast.Constant) bool) error {
	stop := errors.New("stop")
	err := s.facts.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
		args := make([]ast.Constant, len(a.Args))
		for i, t := range a.Args {
			c, ok := t.(ast.Constant)
			if !ok {
				return nil
			}
			if i < len(want) && want[i] != "" && c.Symbol != want[i] {
				return nil
			}
			args[i] = c
		}
		if !fn(args) {
			return stop
		}
		return nil
	})
	if errors.Is(err, stop) {
		return nil
	}
	return err
}

// typeOf returns the type of id.
func (s *Store) typeOf(id string) (schema.Label, bool, error) {
	var out schema.Label
	found := false
	err := s.scan(isaPred, []string{id}, func(args []ast.Constant) bool {
		out, found = schema.Label(args[1].Symbol), true
		return false
	})
	return out, found, err
}

// Concept returns the thing with the given id.
func (s *Store) Concept(ctx context.Context, id string) (answer.Concept, bool, error) {
	if err := ctx.Err(); err != nil {
		return answer.Concept{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.concept(id)
}

func (s *Store) concept(id string) (answer.Concept, bool, error) {
	t, ok, err := s.typeOf(id)
	if err != nil || !ok {
		return answer.Concept{}, false, err
	}
	c := answer.Thing(id, t)
	err = s.scan(valuePred, []string{id}, func(args []ast.Constant) bool {
		c.Value = decodeValue(args[1].Symbol, args[2])
		return false
	})
	if err != nil {
		return answer.Concept{}, false, err
	}
	err = s.scan(rolePlayerPred, []string{id}, func(args []ast.Constant) bool {
		if c.RolePlayers == nil {
			c.RolePlayers = make(map[schema.Label][]string)
		}
		role := schema.Label(args[1].Symbol)
		c.RolePlayers[role] = append(c.RolePlayers[role], args[2].Symbol)
		return true
	})
	return c, true, err
}

// Instances returns the things of type label or one of its subtypes.
func (s *Store) Instances(ctx context.Context, label schema.Label) ([]answer.Concept, error) {
	subs, err := s.h.Subs(ctx, label)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, l := range subs {
		err := s.scan(isaPred, []string{"", string(l)}, func(args []ast.Constant) bool {
			ids = append(ids, args[0].Symbol)
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	out := make([]answer.Concept, 0, len(ids))
	for _, id := range ids {
		c, ok, err := s.concept(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Count returns the number of direct instances of label.
func (s *Store) Count(label schema.Label) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	err := s.scan(isaPred, []string{"", string(label)}, func([]ast.Constant) bool {
		n++
		return true
	})
	return n, err
}

// ShardCount implements schema.ShardCounter with live instance counts.
func (s *Store) ShardCount(ctx context.Context, label schema.Label) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.Count(label)
}

var _ schema.ShardCounter = (*Store)(nil)

// Value kinds of value facts.
const (
	kindString = "string"
	kindLong   = "long"
	kindDouble = "double"
	kindBool   = "boolean"
)

// encodeValue maps a normalised value onto a kind and a Mangle constant.
func encodeValue(v any) (string, ast.Constant, error) {
	switch x := v.(type) {
	case string:
		return kindString, ast.String(x), nil
	case int64:
		return kindLong, ast.Number(x), nil
	case float64:
		return kindDouble, ast.Float64(x), nil
	case bool:
		return kindBool, ast.String(strconv.FormatBool(x)), nil
	default:
		return "", ast.Constant{}, fmt.Errorf("unsupported attribute value %T", v)
	}
}

func decodeValue(kind string, c ast.Constant) any {
	switch kind {
	case kindLong:
		return c.NumValue
	case kindDouble:
		return math.Float64frombits(uint64(c.NumValue))
	case kindBool:
		return c.Symbol == "true"
	default:
		return c.Symbol
	}
}

// valueKey is a comparable form of an encoded value.
func valueKey(kind string, c ast.Constant) string {
	switch kind {
	case kindLong, kindDouble:
		return kind + ":" + strconv.FormatInt(c.NumValue, 10)
	default:
		return kind + ":" + c.Symbol
	}
}
