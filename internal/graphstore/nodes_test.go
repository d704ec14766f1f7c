package graphstore

import (
	"context"
	"testing"

	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/kgerrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory(context.Background(), nil)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertNodeIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	props := map[string]any{"authorityKind": "IP", "authority": "10.0.0.5"}
	first, err := s.UpsertNode(ctx, graphmodel.KindHost, props, "", nil)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := s.UpsertNode(ctx, graphmodel.KindHost, map[string]any{"authorityKind": "IP", "authority": "10.0.0.5", "resolvedIpsJson": `["10.0.0.5"]`}, "", nil)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same node id, got %q and %q", first.ID, second.ID)
	}
	if second.Props["resolvedIpsJson"] != `["10.0.0.5"]` {
		t.Fatalf("expected merged prop to win, got %v", second.Props["resolvedIpsJson"])
	}

	nodes, err := s.FindByKind(ctx, NodeFilter{Kind: graphmodel.KindHost})
	if err != nil {
		t.Fatalf("FindByKind: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected exactly one host node after idempotent upsert, got %d", len(nodes))
	}
}

func TestCreateNodeRejectsMissingRequiredField(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateNode(ctx, graphmodel.KindHost, map[string]any{"authority": "10.0.0.5"}, "", nil)
	if !kgerrors.IsValidation(err) {
		t.Fatalf("expected validation error for missing authorityKind, got %v", err)
	}
}

func TestCreateNodeDuplicateNaturalKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	props := map[string]any{"authorityKind": "IP", "authority": "10.0.0.9"}
	if _, err := s.CreateNode(ctx, graphmodel.KindHost, props, "", nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := s.CreateNode(ctx, graphmodel.KindHost, props, "", nil)
	if !kgerrors.IsDuplicateNaturalKey(err) {
		t.Fatalf("expected duplicate natural key error, got %v", err)
	}
}

func TestDeleteNodeCascadesEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	host, err := s.UpsertNode(ctx, graphmodel.KindHost, map[string]any{"authorityKind": "IP", "authority": "10.0.0.1"}, "", nil)
	if err != nil {
		t.Fatalf("upsert host: %v", err)
	}
	svc, err := s.UpsertNode(ctx, graphmodel.KindService, map[string]any{
		"transport": "tcp", "port": float64(443), "appProto": "https",
		"protoConfidence": "high", "state": "open",
	}, host.ID, nil)
	if err != nil {
		t.Fatalf("upsert service: %v", err)
	}
	if _, err := s.UpsertEdge(ctx, graphmodel.EdgeHostService, host.ID, svc.ID, nil, nil); err != nil {
		t.Fatalf("upsert edge: %v", err)
	}

	if err := s.DeleteNode(ctx, host.ID); err != nil {
		t.Fatalf("delete host: %v", err)
	}

	edges, err := s.EdgesFrom(ctx, host.ID, "")
	if err != nil {
		t.Fatalf("EdgesFrom: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected cascade-deleted edges, found %d", len(edges))
	}
}

func TestFindByIDNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindByID(context.Background(), "does-not-exist")
	if !kgerrors.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
