package datalog

import (
	"testing"

	"github.com/reconkg/engine/internal/facts"
)

func TestParseProgramFactsRulesAndQuery(t *testing.T) {
	src := `
% a small transitive-closure program
edge("a", "b").
edge("b", "c").
edge("c", "d").

reachable(X, Y) :- edge(X, Y).
reachable(X, Y) :- edge(X, Z), reachable(Z, Y).

?- reachable("a", Y).
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(prog.Rules) != 5 {
		t.Fatalf("expected 5 rules (3 facts + 2 rules), got %d", len(prog.Rules))
	}
	if len(prog.Queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(prog.Queries))
	}
}

func TestEvaluateTransitiveClosure(t *testing.T) {
	src := `
edge("a", "b").
edge("b", "c").
edge("c", "d").

reachable(X, Y) :- edge(X, Y).
reachable(X, Y) :- edge(X, Z), reachable(Z, Y).

?- reachable("a", Y).
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	result, err := Evaluate(prog, nil, DefaultEvalConfig)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(result.Answers))
	}
	ans := result.Answers[0]
	if len(ans.Tuples) != 3 {
		t.Fatalf("expected reachable(a, Y) to have 3 solutions (b, c, d), got %d: %v", len(ans.Tuples), ans.Tuples)
	}
	got := make(map[string]bool)
	for _, row := range ans.Tuples {
		got[row[1].(string)] = true
	}
	for _, want := range []string{"b", "c", "d"} {
		if !got[want] {
			t.Fatalf("expected %q among reachable targets, got %v", want, ans.Tuples)
		}
	}
}

func TestEvaluateNegationAsFailure(t *testing.T) {
	src := `
host("h1").
host("h2").
scanned("h1").

unscanned(H) :- host(H), not scanned(H).

?- unscanned(H).
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	result, err := Evaluate(prog, nil, DefaultEvalConfig)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	ans := result.Answers[0]
	if len(ans.Tuples) != 1 || ans.Tuples[0][0] != "h2" {
		t.Fatalf("expected only h2 to be unscanned, got %v", ans.Tuples)
	}
}

func TestEvaluateComparison(t *testing.T) {
	src := `
port("h1", 22).
port("h1", 8080).
port("h1", 443).

highPort(H, P) :- port(H, P), P > 1000.

?- highPort(H, P).
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	result, err := Evaluate(prog, nil, DefaultEvalConfig)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	ans := result.Answers[0]
	if len(ans.Tuples) != 1 {
		t.Fatalf("expected exactly one high port, got %v", ans.Tuples)
	}
}

func TestEvaluateBaseFactsFromExtractor(t *testing.T) {
	src := `?- service(H, S, Transport, Port, AppProto, State).`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	base := []facts.Fact{
		{Predicate: "service", Values: []any{"host-1", "svc-1", "tcp", int64(22), "ssh", "open"}},
	}
	result, err := Evaluate(prog, base, DefaultEvalConfig)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Answers[0].Tuples) != 1 {
		t.Fatalf("expected 1 tuple echoing the seeded base fact, got %v", result.Answers[0].Tuples)
	}
}

func TestEvaluateAnonymousVariableMatchesAnyColumn(t *testing.T) {
	src := `
reachable(H,P,A) :- service(H,_,_,P,A,"open").

?- reachable(H,P,"http").
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	base := []facts.Fact{
		{Predicate: "service", Values: []any{"host-1", "svc-1", "tcp", int64(80), "http", "open"}},
		{Predicate: "service", Values: []any{"host-1", "svc-2", "tcp", int64(22), "ssh", "open"}},
	}
	result, err := Evaluate(prog, base, DefaultEvalConfig)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	ans := result.Answers[0]
	if len(ans.Tuples) != 1 {
		t.Fatalf("expected exactly one reachable http row, got %v", ans.Tuples)
	}
	if got := ans.Tuples[0]; got[0] != "host-1" || got[1] != int64(80) {
		t.Fatalf("expected (host-1, 80), got %v", got)
	}
}

func TestEvaluateQueryReturnsFullTuples(t *testing.T) {
	src := `?- service(H, S, Transport, Port, AppProto, State).`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	base := []facts.Fact{
		{Predicate: "service", Values: []any{"host-1", "svc-1", "tcp", int64(22), "ssh", "open"}},
	}
	result, err := Evaluate(prog, base, DefaultEvalConfig)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	ans := result.Answers[0]
	if len(ans.Columns) != 6 {
		t.Fatalf("expected 6 columns, got %v", ans.Columns)
	}
	if len(ans.Tuples) != 1 || len(ans.Tuples[0]) != 6 {
		t.Fatalf("expected one full 6-column tuple, got %v", ans.Tuples)
	}
	want := []any{"host-1", "svc-1", "tcp", int64(22), "ssh", "open"}
	for i, v := range want {
		if ans.Tuples[0][i] != v {
			t.Fatalf("tuple[%d] = %v, want %v", i, ans.Tuples[0][i], v)
		}
	}
}

func TestEvaluateMaxRulesExceeded(t *testing.T) {
	src := `
a(X) :- b(X).
c(X) :- d(X).
`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg := DefaultEvalConfig
	cfg.MaxRules = 1
	if _, err := Evaluate(prog, nil, cfg); err == nil {
		t.Fatalf("expected a resource error when rule count exceeds MaxRules")
	}
}

func TestParseRejectsMalformedProgram(t *testing.T) {
	cases := []string{
		`edge(a, b)`,       // missing trailing dot
		`edge(a, b) :-`,    // dangling :-
		`?- edge(a, b)`,    // query missing dot
		`edge(a, b) :- .`,  // empty body after :-
	}
	for _, src := range cases {
		if _, err := Parse(src); err == nil {
			t.Fatalf("expected parse error for %q", src)
		}
	}
}
