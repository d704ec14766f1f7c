package datalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/reconkg/engine/internal/facts"
	"github.com/reconkg/engine/internal/kgerrors"
)

// EvalConfig bounds a Datalog evaluation run (spec §4.6.2).
type EvalConfig struct {
	MaxRules      int
	MaxIterations int
	MaxTuples     int
	TimeoutMs     int64
}

// DefaultEvalConfig mirrors spec §4.6.2's suggested defaults.
var DefaultEvalConfig = EvalConfig{
	MaxRules:      200,
	MaxIterations: 100,
	MaxTuples:     100000,
	TimeoutMs:     5000,
}

// Tuple is one instantiated row of a predicate's extension.
type Tuple []any

// FactDB holds the derived extension of every predicate, deduplicated by a
// canonical string key (spec §4.6 step 3, "no duplicate tuples").
type FactDB struct {
	tuples map[string]map[string]Tuple
}

// NewFactDB creates an empty FactDB.
func NewFactDB() *FactDB {
	return &FactDB{tuples: make(map[string]map[string]Tuple)}
}

// Add inserts tuple under predicate if not already present, reporting
// whether it was new.
func (db *FactDB) Add(predicate string, tuple Tuple) bool {
	set, ok := db.tuples[predicate]
	if !ok {
		set = make(map[string]Tuple)
		db.tuples[predicate] = set
	}
	key := tupleKey(tuple)
	if _, exists := set[key]; exists {
		return false
	}
	set[key] = tuple
	return true
}

// GetAll returns every tuple currently known for predicate.
func (db *FactDB) GetAll(predicate string) []Tuple {
	set := db.tuples[predicate]
	out := make([]Tuple, 0, len(set))
	for _, t := range set {
		out = append(out, t)
	}
	return out
}

// Count returns the total number of tuples across all predicates.
func (db *FactDB) Count() int {
	n := 0
	for _, set := range db.tuples {
		n += len(set)
	}
	return n
}

func tupleKey(tuple Tuple) string {
	parts := make([]string, len(tuple))
	for i, v := range tuple {
		parts[i] = fmt.Sprintf("%T:%v", v, v)
	}
	return strings.Join(parts, "\x1f")
}

// Binding maps a Datalog variable name to its bound constant value.
type Binding map[string]any

func (b Binding) clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Answer is one query's result set.
type Answer struct {
	Query   string
	Columns []string
	Tuples  [][]any
}

// Stats reports evaluation effort, surfaced for observability (spec §4.6.3).
type Stats struct {
	Iterations   int
	TotalDerived int
	ElapsedMs    int64
}

// EvalResult is the outcome of evaluating a Program to a fixed point and
// answering its queries.
type EvalResult struct {
	Answers []Answer
	Stats   Stats
}

// Evaluate runs the naive bottom-up fixed-point algorithm of spec §4.6:
// base facts and inline facts seed the FactDB, then rules with a non-empty
// body are applied repeatedly until no new tuple is derived (or a resource
// limit trips), and finally each query is answered against the fixed point.
func Evaluate(program *Program, baseFacts []facts.Fact, cfg EvalConfig) (*EvalResult, error) {
	start := time.Now()

	var realRules []Rule
	db := NewFactDB()

	for _, f := range baseFacts {
		db.Add(f.Predicate, Tuple(f.Values))
	}

	for _, r := range program.Rules {
		if len(r.Body) == 0 {
			db.Add(r.Head.Predicate, instantiateHead(r.Head, Binding{}))
			continue
		}
		realRules = append(realRules, r)
	}

	if int64(len(realRules)) > int64(cfg.MaxRules) {
		return nil, kgerrors.NewResource("rules", int64(len(realRules)), int64(cfg.MaxRules))
	}

	iterations := 0
	for {
		if cfg.TimeoutMs > 0 && time.Since(start).Milliseconds() > cfg.TimeoutMs {
			return nil, kgerrors.NewResource("time", time.Since(start).Milliseconds(), cfg.TimeoutMs)
		}
		iterations++
		if cfg.MaxIterations > 0 && iterations > cfg.MaxIterations {
			return nil, kgerrors.NewResource("iterations", int64(iterations), int64(cfg.MaxIterations))
		}

		changed := false
		for _, rule := range realRules {
			bindings, err := solve(rule.Body, db, Binding{})
			if err != nil {
				return nil, err
			}
			for _, b := range bindings {
				tuple := instantiateHead(rule.Head, b)
				if db.Add(rule.Head.Predicate, tuple) {
					changed = true
				}
				if cfg.MaxTuples > 0 && db.Count() > cfg.MaxTuples {
					return nil, kgerrors.NewResource("tuples", int64(db.Count()), int64(cfg.MaxTuples))
				}
			}
		}
		if !changed {
			break
		}
	}

	answers := make([]Answer, 0, len(program.Queries))
	for _, q := range program.Queries {
		columns := variableNames(q.Atom)
		rows := matchingTuples(q.Atom, db)
		answers = append(answers, Answer{Query: q.Atom.String(), Columns: columns, Tuples: rows})
	}

	return &EvalResult{
		Answers: answers,
		Stats: Stats{
			Iterations:   iterations,
			TotalDerived: db.Count(),
			ElapsedMs:    time.Since(start).Milliseconds(),
		},
	}, nil
}

// solve returns every binding (extending base) that satisfies every literal
// of body, evaluated left to right so earlier literals bind variables that
// later negation/comparison literals rely on (spec §4.6.1).
func solve(body []Literal, db *FactDB, base Binding) ([]Binding, error) {
	bindings := []Binding{base}
	for _, lit := range body {
		var next []Binding
		for _, b := range bindings {
			extended, err := solveLiteral(lit, db, b)
			if err != nil {
				return nil, err
			}
			next = append(next, extended...)
		}
		bindings = next
		if len(bindings) == 0 {
			return nil, nil
		}
	}
	return bindings, nil
}

func solveLiteral(lit Literal, db *FactDB, b Binding) ([]Binding, error) {
	if lit.Comparison != nil {
		ok, err := evalComparison(lit.Comparison, b)
		if err != nil {
			return nil, err
		}
		if lit.Negated {
			ok = !ok
		}
		if ok {
			return []Binding{b}, nil
		}
		return nil, nil
	}

	atom := *lit.Atom
	var matches []Binding
	for _, tuple := range db.GetAll(atom.Predicate) {
		if len(tuple) != len(atom.Args) {
			continue
		}
		extended, ok := unify(atom.Args, tuple, b)
		if ok {
			matches = append(matches, extended)
		}
	}

	if lit.Negated {
		if len(matches) > 0 {
			return nil, nil
		}
		return []Binding{b}, nil
	}
	return matches, nil
}

// matchingTuples returns every stored tuple for atom's predicate that
// unifies with atom, as full fact tuples rather than a bound-variable
// projection (spec §4.6 step 5: a query answers with matching full tuples,
// with Answer.Columns separately carrying the variable-name labels).
func matchingTuples(atom Atom, db *FactDB) [][]any {
	var rows [][]any
	for _, tuple := range db.GetAll(atom.Predicate) {
		if len(tuple) != len(atom.Args) {
			continue
		}
		if _, ok := unify(atom.Args, tuple, Binding{}); ok {
			rows = append(rows, []any(tuple))
		}
	}
	return rows
}

// unify attempts to match args against tuple under base, returning the
// extended binding on success.
func unify(args []Term, tuple Tuple, base Binding) (Binding, bool) {
	result := base.clone()
	for i, arg := range args {
		val := tuple[i]
		switch arg.Kind {
		case TermVariable:
			if arg.Anonymous {
				continue // matches anything, binds nothing
			}
			if bound, ok := result[arg.Name]; ok {
				if !valuesEqual(bound, val) {
					return nil, false
				}
				continue
			}
			result[arg.Name] = val
		case TermConstant:
			if !valuesEqual(arg.Value, val) {
				return nil, false
			}
		}
	}
	return result, true
}

func evalComparison(c *Comparison, b Binding) (bool, error) {
	left, err := resolveTerm(c.Left, b)
	if err != nil {
		return false, err
	}
	right, err := resolveTerm(c.Right, b)
	if err != nil {
		return false, err
	}

	switch c.Op {
	case OpEq:
		return valuesEqual(left, right), nil
	case OpNotEq:
		return !valuesEqual(left, right), nil
	case OpLt, OpGt, OpLtEq, OpGtEq:
		li, lok := asInt64(left)
		ri, rok := asInt64(right)
		if !lok || !rok {
			return false, nil // mixed/incomparable types never satisfy ordering (spec §4.6.1)
		}
		switch c.Op {
		case OpLt:
			return li < ri, nil
		case OpGt:
			return li > ri, nil
		case OpLtEq:
			return li <= ri, nil
		case OpGtEq:
			return li >= ri, nil
		}
	}
	return false, fmt.Errorf("unreachable comparison operator %q", c.Op)
}

func resolveTerm(t Term, b Binding) (any, error) {
	if t.Kind == TermConstant {
		return t.Value, nil
	}
	v, ok := b[t.Name]
	if !ok {
		return nil, kgerrors.NewParse(0, fmt.Sprintf("unbound variable %q in comparison", t.Name))
	}
	return v, nil
}

// valuesEqual applies spec §4.6.1's same-type-and-equal rule: values of
// differing Go types are never equal, even if numerically comparable.
func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	default:
		return a == b
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// instantiateHead builds the head atom's tuple under binding. A head
// variable left unbound falls back to its literal name, per spec §4.6 step
// 1's rule for inline facts with variable-looking heads.
func instantiateHead(atom Atom, binding Binding) Tuple {
	tuple := make(Tuple, len(atom.Args))
	for i, arg := range atom.Args {
		switch arg.Kind {
		case TermConstant:
			tuple[i] = arg.Value
		case TermVariable:
			if v, ok := binding[arg.Name]; ok {
				tuple[i] = v
			} else {
				tuple[i] = arg.Name
			}
		}
	}
	return tuple
}

// variableNames returns the distinct variable names of atom's args, in
// first-occurrence order, used as an answer's column labels.
func variableNames(atom Atom) []string {
	seen := make(map[string]bool)
	var names []string
	for _, arg := range atom.Args {
		if arg.Kind != TermVariable || arg.Anonymous {
			continue
		}
		if seen[arg.Name] {
			continue
		}
		seen[arg.Name] = true
		names = append(names, arg.Name)
	}
	return names
}
