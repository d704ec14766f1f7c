// Package engine is the minimal public API for embedding the attack-data
// knowledge engine in a Go program without going through the reconkg CLI or
// its facade's JSON boundary.
//
// Most programmatic extensions should prefer the facade package's
// request/response contract, which is stable across versions; this package
// exists for callers that want direct, typed access to the graph store.
package engine

import (
	"context"
	"log/slog"

	"github.com/reconkg/engine/internal/datalog"
	"github.com/reconkg/engine/internal/facade"
	"github.com/reconkg/engine/internal/facts"
	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/graphquery"
	"github.com/reconkg/engine/internal/graphstore"
	"github.com/reconkg/engine/internal/normalize"
	"github.com/reconkg/engine/internal/rules"
)

// Core graph types for working with the property graph.
type (
	Node     = graphmodel.Node
	Edge     = graphmodel.Edge
	NodeKind = graphmodel.NodeKind
	EdgeKind = graphmodel.EdgeKind
)

// Node kind constants, per spec §3.1.
const (
	KindHost           = graphmodel.KindHost
	KindVHost          = graphmodel.KindVHost
	KindService        = graphmodel.KindService
	KindEndpoint       = graphmodel.KindEndpoint
	KindInput          = graphmodel.KindInput
	KindObservation    = graphmodel.KindObservation
	KindCredential     = graphmodel.KindCredential
	KindVulnerability  = graphmodel.KindVulnerability
	KindCVE            = graphmodel.KindCVE
	KindSvcObservation = graphmodel.KindSvcObservation
)

// Store is the embedded graph repository (C1-C3).
type Store = graphstore.Store

// Open opens (creating and migrating if necessary) the sqlite database at
// path. Most callers should follow Open with a call to (*Store).Migrate.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	return graphstore.Open(ctx, path, logger)
}

// OpenMemory opens an in-memory database, useful for tests and short-lived
// analyses that don't need to persist.
func OpenMemory(ctx context.Context, logger *slog.Logger) (*Store, error) {
	return graphstore.OpenMemory(ctx, logger)
}

// ParseResult and Normalize re-export the normalizer (C5) for callers
// building a ParseResult directly from a scan importer.
type ParseResult = normalize.ParseResult

func Normalize(ctx context.Context, store *Store, artifactID int64, pr ParseResult) (*normalize.NormalizeResult, error) {
	return normalize.Normalize(ctx, store, artifactID, pr)
}

// Traverse, ShortestPath, ReachableFrom, and RunPreset re-export the graph
// query engine (C4).
var (
	Traverse      = graphquery.Traverse
	ShortestPath  = graphquery.ShortestPath
	ReachableFrom = graphquery.ReachableFrom
	RunPreset     = graphquery.RunPreset
)

// ExtractAll and ExtractByPredicate re-export the fact extractor (C6).
var (
	ExtractAll        = facts.ExtractAll
	ExtractByPredicate = facts.ExtractByPredicate
)

// Fact is one extracted predicate tuple.
type Fact = facts.Fact

// ParseProgram and Evaluate re-export the Datalog parser and evaluator
// (C7/C8).
var (
	ParseProgram = datalog.Parse
	Evaluate     = datalog.Evaluate
)

type (
	Program        = datalog.Program
	EvalConfig     = datalog.EvalConfig
	EvalResult     = datalog.EvalResult
)

// DefaultEvalConfig mirrors spec §4.6.2's suggested resource limits.
var DefaultEvalConfig = datalog.DefaultEvalConfig

// RuleStore persists named Datalog programs (C9).
type RuleStore = rules.Store

func NewRuleStore(store *Store) *RuleStore { return rules.NewStore(store) }

// NewEngine wires a facade.Dispatcher with every core operation bound
// against store, the entry point for a process exposing the uniform
// request/response contract of spec §6.2.
func NewEngine(store *Store) *facade.Engine {
	return facade.NewEngine(store)
}
