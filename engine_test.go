package engine_test

import (
	"context"
	"testing"

	engine "github.com/reconkg/engine"
)

func TestOpenMemoryAndMigrate(t *testing.T) {
	ctx := context.Background()
	store, err := engine.OpenMemory(ctx, nil)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
}

func TestPublicAPIUpsertTraverseEvaluate(t *testing.T) {
	ctx := context.Background()
	store, err := engine.OpenMemory(ctx, nil)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	host, err := store.UpsertNode(ctx, engine.KindHost, map[string]any{"authorityKind": "IP", "authority": "198.51.100.7"}, "", nil)
	if err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}
	svc, err := store.UpsertNode(ctx, engine.KindService, map[string]any{
		"transport": "tcp", "port": float64(443), "appProto": "https", "protoConfidence": "high", "state": "open",
	}, host.ID, nil)
	if err != nil {
		t.Fatalf("UpsertNode service: %v", err)
	}
	if _, err := store.UpsertEdge(ctx, engine.EdgeKind("HOST_SERVICE"), host.ID, svc.ID, nil, nil); err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}

	hops, err := engine.Traverse(ctx, store, host.ID, 5, nil)
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if len(hops) != 1 || hops[0].Node.ID != svc.ID {
		t.Fatalf("expected exactly one hop to the service, got %+v", hops)
	}

	allFacts, err := engine.ExtractAll(ctx, store)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if len(allFacts) == 0 {
		t.Fatalf("expected at least one fact extracted")
	}

	prog, err := engine.ParseProgram(`?- host(H, A, K).`)
	if err != nil {
		t.Fatalf("ParseProgram: %v", err)
	}
	result, err := engine.Evaluate(prog, allFacts, engine.DefaultEvalConfig)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Answers) != 1 || len(result.Answers[0].Tuples) != 1 {
		t.Fatalf("expected one host fact answered back, got %+v", result.Answers)
	}
}
