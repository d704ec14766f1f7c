// Package facade exposes the core's operations (spec §6.2) through one
// uniform Request/Response contract, grounded on the teacher's RPC
// protocol shape (internal/rpc/protocol.go): a string Operation, an
// untyped JSON args payload, and a Response that never leaks a Go error
// value or stack trace to the caller (spec §7's "facade translates each
// error kind into a textual message and a boolean isError flag").
package facade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reconkg/engine/internal/kgerrors"
)

// Operation names, one per row of spec §6.2's table.
const (
	OpMigrate             = "migrate"
	OpNodeCreate          = "node.create"
	OpNodeUpsert          = "node.upsert"
	OpNodeUpdateProps     = "node.updateProps"
	OpNodeDelete          = "node.delete"
	OpNodeFindByID        = "node.findById"
	OpNodeFindByKind      = "node.findByKind"
	OpNodeFindByNaturalKey = "node.findByNaturalKey"
	OpEdgeUpsert          = "edge.upsert"
	OpEdgeDelete          = "edge.delete"
	OpEdgeFindBySource    = "edge.findBySource"
	OpEdgeFindByTarget    = "edge.findByTarget"
	OpGraphTraverse       = "graph.traverse"
	OpGraphReachableFrom  = "graph.reachableFrom"
	OpGraphShortestPath   = "graph.shortestPath"
	OpGraphRunPreset      = "graph.runPreset"
	OpGraphStats          = "graph.stats"
	OpNormalize           = "normalize"
	OpDatalogExtractFacts = "datalog.extractFacts"
	OpDatalogExtractByPredicate = "datalog.extractFactsByPredicate"
	OpDatalogEvaluate     = "datalog.evaluate"
	OpRulesSave           = "rules.save"
	OpRulesList           = "rules.list"
	OpRulesFindByName     = "rules.findByName"
	OpRulesDelete         = "rules.delete"
	OpRulesSearch         = "rules.search"
	OpQueryAttackPaths    = "queryAttackPaths"
)

// Request is one facade call: an operation name plus its raw JSON args.
type Request struct {
	Operation string          `json:"operation"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// Response is the uniform reply: either Data is populated and IsError is
// false, or Message explains the failure and IsError is true. No Go error
// value, stack trace, or internal type name ever reaches this shape.
type Response struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	IsError bool            `json:"isError"`
}

// Handler serves one facade operation; Dispatch looks up the Handler
// registered under the Request's Operation name.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Dispatcher routes a Request to the Handler registered for its Operation.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher creates an empty Dispatcher; call Register for every
// operation the embedding binary supports.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register binds a Handler to an operation name, overwriting any prior
// registration (used by tests to stub a subset of operations).
func (d *Dispatcher) Register(operation string, h Handler) {
	d.handlers[operation] = h
}

// Dispatch executes req and always returns a well-formed Response: an
// unknown operation, a JSON-shape mismatch in args, or a handler error are
// all translated into Response{IsError: true}, never a panic or Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	h, ok := d.handlers[req.Operation]
	if !ok {
		return errorResponse(fmt.Errorf("operation %q: %w", req.Operation, kgerrors.ErrBadRequest))
	}

	result, err := h(ctx, req.Args)
	if err != nil {
		return errorResponse(err)
	}
	if result == nil {
		return Response{IsError: false}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(fmt.Errorf("marshal response: %w", kgerrors.ErrStorage))
	}
	return Response{Data: data, IsError: false}
}

// errorResponse translates err's kind (spec §7) into a textual message; the
// Go type and any wrapped detail stay server-side.
func errorResponse(err error) Response {
	return Response{Message: errorMessage(err), IsError: true}
}

// errorMessage renders err's kgerrors sentinel kind as user-facing text,
// falling back to a generic storage-fault message for anything unrecognized
// rather than leaking an internal error string.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, kgerrors.ErrValidation):
		return "validation failed: " + detailOrDefault(err, "one or more properties failed schema validation")
	case errors.Is(err, kgerrors.ErrDuplicateNaturalKey):
		return "a node with this natural key already exists"
	case errors.Is(err, kgerrors.ErrDuplicateName):
		return "a rule with this name already exists"
	case errors.Is(err, kgerrors.ErrNotFound):
		return "not found"
	case errors.Is(err, kgerrors.ErrBadRequest):
		return "bad request: " + detailOrDefault(err, "missing or invalid parameter")
	case errors.Is(err, kgerrors.ErrParse):
		return "datalog syntax error: " + detailOrDefault(err, "could not parse program")
	case errors.Is(err, kgerrors.ErrResource):
		return "resource limit exceeded: " + detailOrDefault(err, "evaluation aborted")
	case errors.Is(err, kgerrors.ErrMigration):
		return "migration failed"
	case errors.Is(err, kgerrors.ErrStorage):
		return "internal storage error"
	default:
		return "internal storage error"
	}
}

// detailOrDefault surfaces err's own message when it carries one, since the
// typed wrappers in kgerrors (ValidationError, ParseError, ResourceError)
// already strip anything database- or filesystem-specific.
func detailOrDefault(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
