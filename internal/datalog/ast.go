// Package datalog implements the hand-rolled parser (C7) and naive
// bottom-up fixed-point evaluator (C8) of spec §4.5/§4.6: rules of the form
// `head :- body.`, facts, and `?- atom.` queries over the facts the
// extractor (internal/facts) projects from the graph.
package datalog

import "fmt"

// TermKind distinguishes a Datalog variable from a constant, per spec §4.5's
// "Identifiers starting uppercase are variables".
type TermKind int

const (
	TermVariable TermKind = iota
	TermConstant
)

// Term is one argument of an atom: a tagged variable or constant, carried
// through parsing exactly as spec §4.5 requires ("a tagged variant").
type Term struct {
	Kind      TermKind
	Name      string // set when Kind == TermVariable
	Anonymous bool   // set when Kind == TermVariable and the source spelled it "_"
	Value     any    // string or int64, set when Kind == TermConstant
}

func (t Term) String() string {
	if t.Kind == TermVariable {
		if t.Anonymous {
			return "_"
		}
		return t.Name
	}
	return fmt.Sprintf("%v", t.Value)
}

// Atom is a predicate applied to a list of terms, e.g. service(H, S, tcp, P).
type Atom struct {
	Predicate string
	Args      []Term
}

func (a Atom) String() string {
	s := a.Predicate + "("
	for i, arg := range a.Args {
		if i > 0 {
			s += ", "
		}
		s += arg.String()
	}
	return s + ")"
}

// CompOp is one of the six comparison operators spec §4.5 grants.
type CompOp string

const (
	OpEq    CompOp = "="
	OpNotEq CompOp = "!="
	OpLt    CompOp = "<"
	OpGt    CompOp = ">"
	OpLtEq  CompOp = "<="
	OpGtEq  CompOp = ">="
)

// Comparison is a literal of the form `term op term`.
type Comparison struct {
	Left  Term
	Op    CompOp
	Right Term
}

// Literal is one element of a rule body: an (optionally negated) atom, or a
// comparison. Exactly one of Atom/Comparison is set.
type Literal struct {
	Negated    bool
	Atom       *Atom
	Comparison *Comparison
}

// Rule is `head :- body.`  An empty Body marks an inline fact (spec §4.6
// step 1's "rules with an empty body").
type Rule struct {
	Head Atom
	Body []Literal
}

// Query is `?- atom.`
type Query struct {
	Atom Atom
}

// Program is the full parse of a Datalog source: an ordered sequence of
// rules (including inline facts) and queries.
type Program struct {
	Rules    []Rule
	Queries  []Query
	Warnings []string
}
