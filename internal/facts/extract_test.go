package facts

import (
	"context"
	"testing"

	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/graphstore"
)

func TestExtractServiceJoinsHostID(t *testing.T) {
	ctx := context.Background()
	store, err := graphstore.OpenMemory(ctx, nil)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer store.Close()

	host, err := store.UpsertNode(ctx, graphmodel.KindHost, map[string]any{"authorityKind": "IP", "authority": "203.0.113.1"}, "", nil)
	if err != nil {
		t.Fatalf("upsert host: %v", err)
	}
	svc, err := store.UpsertNode(ctx, graphmodel.KindService, map[string]any{
		"transport": "tcp", "port": float64(22), "appProto": "ssh", "protoConfidence": "high", "state": "open",
	}, host.ID, nil)
	if err != nil {
		t.Fatalf("upsert service: %v", err)
	}
	if _, err := store.UpsertEdge(ctx, graphmodel.EdgeHostService, host.ID, svc.ID, nil, nil); err != nil {
		t.Fatalf("upsert edge: %v", err)
	}

	serviceFacts, err := ExtractByPredicate(ctx, store, "service", 0)
	if err != nil {
		t.Fatalf("ExtractByPredicate: %v", err)
	}
	if len(serviceFacts) != 1 {
		t.Fatalf("expected 1 service fact, got %d", len(serviceFacts))
	}
	f := serviceFacts[0]
	if f.Predicate != "service" || len(f.Values) != 6 {
		t.Fatalf("unexpected fact shape: %+v", f)
	}
	if f.Values[0] != host.ID || f.Values[1] != svc.ID {
		t.Fatalf("expected (hostId, id, ...) = (%s, %s), got %v", host.ID, svc.ID, f.Values)
	}
}

func TestExtractAllCoversEveryPredicate(t *testing.T) {
	ctx := context.Background()
	store, err := graphstore.OpenMemory(ctx, nil)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer store.Close()

	if _, err := store.UpsertNode(ctx, graphmodel.KindHost, map[string]any{"authorityKind": "IP", "authority": "203.0.113.2"}, "", nil); err != nil {
		t.Fatalf("upsert host: %v", err)
	}

	all, err := ExtractAll(ctx, store)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	found := false
	for _, f := range all {
		if f.Predicate == "host" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected at least one host fact in ExtractAll output")
	}
}

func TestExtractByPredicateUnknownPredicate(t *testing.T) {
	ctx := context.Background()
	store, err := graphstore.OpenMemory(ctx, nil)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer store.Close()

	if _, err := ExtractByPredicate(ctx, store, "not_a_predicate", 0); err == nil {
		t.Fatalf("expected error for unknown predicate")
	}
}
