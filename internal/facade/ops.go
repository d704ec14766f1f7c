package facade

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reconkg/engine/internal/datalog"
	"github.com/reconkg/engine/internal/facts"
	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/graphquery"
	"github.com/reconkg/engine/internal/graphstore"
	"github.com/reconkg/engine/internal/kgerrors"
	"github.com/reconkg/engine/internal/normalize"
	"github.com/reconkg/engine/internal/rules"
)

// Engine bundles the collaborators one facade instance dispatches against:
// the graph store and the rule store sharing its database handle.
type Engine struct {
	Store *graphstore.Store
	Rules *rules.Store
}

// NewEngine wires a Dispatcher covering every operation of spec §6.2 against
// store, grounded on the teacher's server.go pattern of one handler function
// per RPC operation registered against a shared backing store.
func NewEngine(store *graphstore.Store) *Engine {
	return &Engine{Store: store, Rules: rules.NewStore(store)}
}

// RegisterAll binds every core operation's Handler onto d.
func (e *Engine) RegisterAll(d *Dispatcher) {
	d.Register(OpMigrate, e.migrate)
	d.Register(OpNodeCreate, e.nodeCreate)
	d.Register(OpNodeUpsert, e.nodeUpsert)
	d.Register(OpNodeUpdateProps, e.nodeUpdateProps)
	d.Register(OpNodeDelete, e.nodeDelete)
	d.Register(OpNodeFindByID, e.nodeFindByID)
	d.Register(OpNodeFindByKind, e.nodeFindByKind)
	d.Register(OpNodeFindByNaturalKey, e.nodeFindByNaturalKey)
	d.Register(OpEdgeUpsert, e.edgeUpsert)
	d.Register(OpEdgeDelete, e.edgeDelete)
	d.Register(OpEdgeFindBySource, e.edgeFindBySource)
	d.Register(OpEdgeFindByTarget, e.edgeFindByTarget)
	d.Register(OpGraphTraverse, e.graphTraverse)
	d.Register(OpGraphReachableFrom, e.graphReachableFrom)
	d.Register(OpGraphShortestPath, e.graphShortestPath)
	d.Register(OpGraphRunPreset, e.graphRunPreset)
	d.Register(OpGraphStats, e.graphStats)
	d.Register(OpNormalize, e.normalize)
	d.Register(OpDatalogExtractFacts, e.datalogExtractFacts)
	d.Register(OpDatalogExtractByPredicate, e.datalogExtractByPredicate)
	d.Register(OpDatalogEvaluate, e.datalogEvaluate)
	d.Register(OpRulesSave, e.rulesSave)
	d.Register(OpRulesList, e.rulesList)
	d.Register(OpRulesFindByName, e.rulesFindByName)
	d.Register(OpRulesDelete, e.rulesDelete)
	d.Register(OpRulesSearch, e.rulesSearch)
	d.Register(OpQueryAttackPaths, e.queryAttackPaths)
}

func unmarshalArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), kgerrors.ErrBadRequest)
	}
	return nil
}

func (e *Engine) migrate(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := e.Store.Migrate(ctx); err != nil {
		return nil, err
	}
	if err := e.Rules.SeedPresets(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

type nodeArgs struct {
	Kind               graphmodel.NodeKind `json:"kind"`
	Props              map[string]any      `json:"props"`
	ParentID           string              `json:"parentId,omitempty"`
	EvidenceArtifactID *int64              `json:"evidenceArtifactId,omitempty"`
}

func (e *Engine) nodeCreate(ctx context.Context, args json.RawMessage) (any, error) {
	var a nodeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return e.Store.CreateNode(ctx, a.Kind, a.Props, a.ParentID, a.EvidenceArtifactID)
}

func (e *Engine) nodeUpsert(ctx context.Context, args json.RawMessage) (any, error) {
	var a nodeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return e.Store.UpsertNode(ctx, a.Kind, a.Props, a.ParentID, a.EvidenceArtifactID)
}

func (e *Engine) nodeUpdateProps(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		ID       string         `json:"id"`
		NewProps map[string]any `json:"newProps"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return e.Store.UpdateNodeProps(ctx, a.ID, a.NewProps)
}

func (e *Engine) nodeDelete(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		ID string `json:"id"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, e.Store.DeleteNode(ctx, a.ID)
}

func (e *Engine) nodeFindByID(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		ID string `json:"id"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return e.Store.FindByID(ctx, a.ID)
}

func (e *Engine) nodeFindByKind(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Kind   graphmodel.NodeKind `json:"kind"`
		Props  map[string]string   `json:"props,omitempty"`
		Limit  int                 `json:"limit,omitempty"`
		Offset int                 `json:"offset,omitempty"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return e.Store.FindByKind(ctx, graphstore.NodeFilter{Kind: a.Kind, Props: a.Props, Limit: a.Limit, Offset: a.Offset})
}

func (e *Engine) nodeFindByNaturalKey(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		NaturalKey string `json:"naturalKey"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return e.Store.FindByNaturalKey(ctx, a.NaturalKey)
}

type edgeArgs struct {
	Kind               graphmodel.EdgeKind `json:"kind"`
	SourceID           string              `json:"sourceId"`
	TargetID           string              `json:"targetId"`
	Props              map[string]any      `json:"props,omitempty"`
	EvidenceArtifactID *int64              `json:"evidenceArtifactId,omitempty"`
}

func (e *Engine) edgeUpsert(ctx context.Context, args json.RawMessage) (any, error) {
	var a edgeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return e.Store.UpsertEdge(ctx, a.Kind, a.SourceID, a.TargetID, a.Props, a.EvidenceArtifactID)
}

func (e *Engine) edgeDelete(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		ID string `json:"id"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, e.Store.DeleteEdge(ctx, a.ID)
}

func (e *Engine) edgeFindBySource(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		NodeID string              `json:"nodeId"`
		Kind   graphmodel.EdgeKind `json:"kind,omitempty"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return e.Store.EdgesFrom(ctx, a.NodeID, a.Kind)
}

func (e *Engine) edgeFindByTarget(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		NodeID string              `json:"nodeId"`
		Kind   graphmodel.EdgeKind `json:"kind,omitempty"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return e.Store.EdgesTo(ctx, a.NodeID, a.Kind)
}

func (e *Engine) graphTraverse(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		StartID   string                `json:"startId"`
		MaxDepth  int                   `json:"maxDepth,omitempty"`
		EdgeKinds []graphmodel.EdgeKind `json:"edgeKinds,omitempty"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return graphquery.Traverse(ctx, e.Store, a.StartID, a.MaxDepth, a.EdgeKinds)
}

func (e *Engine) graphReachableFrom(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		StartID    string              `json:"startId"`
		TargetKind graphmodel.NodeKind `json:"targetKind"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return graphquery.ReachableFrom(ctx, e.Store, a.StartID, a.TargetKind)
}

func (e *Engine) graphShortestPath(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		SourceID string `json:"sourceId"`
		TargetID string `json:"targetId"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return graphquery.ShortestPath(ctx, e.Store, a.SourceID, a.TargetID)
}

func (e *Engine) graphRunPreset(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Name   string            `json:"name"`
		Params map[string]string `json:"params,omitempty"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return graphquery.RunPreset(ctx, e.Store, a.Name, a.Params)
}

// graphStats backs graph.stats, a cheap introspection operation returning
// node counts by kind and edge counts by kind.
func (e *Engine) graphStats(ctx context.Context, _ json.RawMessage) (any, error) {
	return e.Store.Stats(ctx)
}

func (e *Engine) normalize(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		ArtifactID int64                 `json:"artifactId"`
		ParseResult normalize.ParseResult `json:"parseResult"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return normalize.Normalize(ctx, e.Store, a.ArtifactID, a.ParseResult)
}

func (e *Engine) datalogExtractFacts(ctx context.Context, _ json.RawMessage) (any, error) {
	return facts.ExtractAll(ctx, e.Store)
}

func (e *Engine) datalogExtractByPredicate(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Predicate string `json:"predicate"`
		Limit     int    `json:"limit,omitempty"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return facts.ExtractByPredicate(ctx, e.Store, a.Predicate, a.Limit)
}

func (e *Engine) datalogEvaluate(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Program   string           `json:"program"`
		BaseFacts []facts.Fact     `json:"baseFacts,omitempty"`
		Config    *datalog.EvalConfig `json:"config,omitempty"`
		SaveName  string           `json:"saveName,omitempty"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	prog, err := datalog.Parse(a.Program)
	if err != nil {
		return nil, err
	}
	cfg := datalog.DefaultEvalConfig
	if a.Config != nil {
		cfg = *a.Config
	}
	result, err := datalog.Evaluate(prog, a.BaseFacts, cfg)
	if err != nil {
		return nil, err
	}
	if a.SaveName != "" {
		if _, err := e.Rules.Save(ctx, a.SaveName, "", a.Program, rules.GeneratedByHuman); err != nil {
			return nil, err
		}
	}
	return struct {
		*datalog.EvalResult
		Warnings []string `json:"warnings,omitempty"`
	}{EvalResult: result, Warnings: prog.Warnings}, nil
}

func (e *Engine) rulesSave(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Name        string            `json:"name"`
		Description string            `json:"description,omitempty"`
		RuleText    string            `json:"ruleText"`
		GeneratedBy rules.GeneratedBy `json:"generatedBy,omitempty"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.GeneratedBy == "" {
		a.GeneratedBy = rules.GeneratedByHuman
	}
	return e.Rules.Save(ctx, a.Name, a.Description, a.RuleText, a.GeneratedBy)
}

func (e *Engine) rulesList(ctx context.Context, _ json.RawMessage) (any, error) {
	return e.Rules.List(ctx)
}

func (e *Engine) rulesFindByName(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Name string `json:"name"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return e.Rules.FindByName(ctx, a.Name)
}

func (e *Engine) rulesDelete(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Name string `json:"name"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, e.Rules.Delete(ctx, a.Name)
}

// queryAttackPaths resolves patternName against the rule store (covering
// both seeded presets and user-saved rules, spec §4.8), extracts the
// current graph's facts, and evaluates the named program against them.
func (e *Engine) queryAttackPaths(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		PatternName string              `json:"patternName"`
		Config      *datalog.EvalConfig `json:"config,omitempty"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	ruleText, err := e.Rules.ResolveRuleText(ctx, a.PatternName)
	if err != nil {
		return nil, err
	}
	prog, err := datalog.Parse(ruleText)
	if err != nil {
		return nil, err
	}
	base, err := facts.ExtractAll(ctx, e.Store)
	if err != nil {
		return nil, err
	}
	cfg := datalog.DefaultEvalConfig
	if a.Config != nil {
		cfg = *a.Config
	}
	result, err := datalog.Evaluate(prog, base, cfg)
	if err != nil {
		return nil, err
	}
	return struct {
		*datalog.EvalResult
		Warnings []string `json:"warnings,omitempty"`
	}{EvalResult: result, Warnings: prog.Warnings}, nil
}

func (e *Engine) rulesSearch(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Query string `json:"query"`
	}
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	return e.Rules.Search(ctx, a.Query)
}
