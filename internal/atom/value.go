package atom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Op is a value comparison operator.
type Op string

const (
	OpEq       Op = "=="
	OpNeq      Op = "!="
	OpGt       Op = ">"
	OpGte      Op = ">="
	OpLt       Op = "<"
	OpLte      Op = "<="
	OpContains Op = "contains"
	OpLike     Op = "like"
)

// ParseOp validates an operator string.
func ParseOp(s string) (Op, error) {
	switch op := Op(strings.TrimSpace(s)); op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpContains, OpLike:
		return op, nil
	case "=":
		return OpEq, nil
	default:
		return "", fmt.Errorf("unknown value operator %q", s)
	}
}

// ValuePredicate compares the value bound to a variable with a constant.
// Values are normalised to int64, float64, string or bool.
type ValuePredicate struct {
	V     Variable
	Op    Op
	Value any
}

// NewValuePredicate builds a normalised value predicate.
func NewValuePredicate(v Variable, op Op, value any) (ValuePredicate, error) {
	nv, err := NormalizeValue(value)
	if err != nil {
		return ValuePredicate{}, err
	}
	if op == OpLike {
		s, ok := nv.(string)
		if !ok {
			return ValuePredicate{}, fmt.Errorf("like needs a string pattern, got %T", nv)
		}
		if _, err := regexp.Compile(s); err != nil {
			return ValuePredicate{}, fmt.Errorf("invalid like pattern: %w", err)
		}
	}
	if op == OpContains {
		if _, ok := nv.(string); !ok {
			return ValuePredicate{}, fmt.Errorf("contains needs a string, got %T", nv)
		}
	}
	return ValuePredicate{V: v, Op: op, Value: nv}, nil
}

// NormalizeValue maps Go scalar values onto int64, float64, string or bool.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		return x, nil
	case bool:
		return x, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func valueKey(v any) string {
	switch x := v.(type) {
	case int64:
		return "n:" + strconv.FormatInt(x, 10)
	case float64:
		return "n:" + strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return "s:" + x
	case bool:
		return "b:" + strconv.FormatBool(x)
	default:
		return fmt.Sprintf("?:%v", x)
	}
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(v)
}

// CompareValues orders two values of the same family (numbers, strings or
// booleans). ok is false when the values are not comparable.
func CompareValues(a, b any) (cmp int, ok bool) {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return compareOrdered(x, y), true
		case float64:
			return compareOrdered(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return compareOrdered(x, float64(y)), true
		case float64:
			return compareOrdered(x, y), true
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	}
	return 0, false
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Satisfies reports whether value meets the predicate.
func (p ValuePredicate) Satisfies(value any) bool {
	nv, err := NormalizeValue(value)
	if err != nil {
		return false
	}
	switch p.Op {
	case OpContains:
		s, ok1 := nv.(string)
		sub, ok2 := p.Value.(string)
		return ok1 && ok2 && strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	case OpLike:
		s, ok1 := nv.(string)
		pat, ok2 := p.Value.(string)
		if !ok1 || !ok2 {
			return false
		}
		re, err := regexp.Compile(pat)
		return err == nil && re.MatchString(s)
	}
	c, ok := CompareValues(nv, p.Value)
	if !ok {
		return p.Op == OpNeq
	}
	switch p.Op {
	case OpEq:
		return c == 0
	case OpNeq:
		return c != 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

func (p ValuePredicate) isOrdering() bool {
	switch p.Op {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

func (p ValuePredicate) lowerBound() bool { return p.Op == OpGt || p.Op == OpGte }

// CompatibleWith reports whether some value can satisfy both p and q.
// Pattern predicates are treated as satisfiable alongside anything but a
// contradicting equality.
func (p ValuePredicate) CompatibleWith(q ValuePredicate) bool {
	if p.Op == OpEq {
		return q.Satisfies(p.Value)
	}
	if q.Op == OpEq {
		return p.Satisfies(q.Value)
	}
	if !p.isOrdering() || !q.isOrdering() {
		return true
	}
	if p.lowerBound() == q.lowerBound() {
		return true
	}
	lo, hi := p, q
	if !p.lowerBound() {
		lo, hi = q, p
	}
	c, ok := CompareValues(lo.Value, hi.Value)
	if !ok {
		return false
	}
	if lo.Op == OpGte && hi.Op == OpLte {
		return c <= 0
	}
	return c < 0
}

// Subsumes reports whether every value satisfying q also satisfies p, that
// is p is at least as general as q.
func (p ValuePredicate) Subsumes(q ValuePredicate) bool {
	if p.Op == q.Op && valueKey(p.Value) == valueKey(q.Value) {
		return true
	}
	if q.Op == OpEq {
		return p.Satisfies(q.Value)
	}
	c, ok := CompareValues(q.Value, p.Value)
	switch p.Op {
	case OpEq:
		return false
	case OpNeq:
		if q.Op == OpNeq || !ok {
			return q.Op == OpNeq && ok && c == 0
		}
		switch q.Op {
		case OpGt:
			return c >= 0
		case OpGte:
			return c > 0
		case OpLt:
			return c <= 0
		case OpLte:
			return c < 0
		}
		return false
	case OpGt:
		return ok && ((q.Op == OpGt && c >= 0) || (q.Op == OpGte && c > 0))
	case OpGte:
		return ok && (q.Op == OpGt || q.Op == OpGte) && c >= 0
	case OpLt:
		return ok && ((q.Op == OpLt && c <= 0) || (q.Op == OpLte && c < 0))
	case OpLte:
		return ok && (q.Op == OpLt || q.Op == OpLte) && c <= 0
	case OpContains:
		if q.Op != OpContains {
			return false
		}
		qs, _ := q.Value.(string)
		ps, _ := p.Value.(string)
		return strings.Contains(strings.ToLower(qs), strings.ToLower(ps))
	}
	return false
}
