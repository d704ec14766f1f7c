package graphquery

import (
	"context"
	"testing"

	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/graphstore"
)

func setupGraph(t *testing.T) (*graphstore.Store, *graphmodel.Node, *graphmodel.Node) {
	t.Helper()
	ctx := context.Background()
	s, err := graphstore.OpenMemory(ctx, nil)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	host, err := s.UpsertNode(ctx, graphmodel.KindHost, map[string]any{"authorityKind": "IP", "authority": "10.1.1.1"}, "", nil)
	if err != nil {
		t.Fatalf("upsert host: %v", err)
	}
	svc, err := s.UpsertNode(ctx, graphmodel.KindService, map[string]any{
		"transport": "tcp", "port": float64(80), "appProto": "http", "protoConfidence": "high", "state": "open",
	}, host.ID, nil)
	if err != nil {
		t.Fatalf("upsert service: %v", err)
	}
	if _, err := s.UpsertEdge(ctx, graphmodel.EdgeHostService, host.ID, svc.ID, nil, nil); err != nil {
		t.Fatalf("upsert edge: %v", err)
	}
	return s, host, svc
}

func TestTraverseExcludesStartNodeAndRespectsDepth(t *testing.T) {
	s, host, svc := setupGraph(t)
	ctx := context.Background()

	hops, err := Traverse(ctx, s, host.ID, 10, nil)
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}
	if len(hops) != 1 {
		t.Fatalf("expected exactly one hop (the service), got %d", len(hops))
	}
	if hops[0].Node.ID != svc.ID {
		t.Fatalf("expected hop to be the service node")
	}
	if hops[0].Depth != 1 {
		t.Fatalf("expected depth 1, got %d", hops[0].Depth)
	}

	shallow, err := Traverse(ctx, s, host.ID, 0, nil)
	if err != nil {
		t.Fatalf("Traverse with zero depth (defaults to 10): %v", err)
	}
	if len(shallow) != 1 {
		t.Fatalf("expected default max depth to still find the service, got %d hops", len(shallow))
	}
}

func TestShortestPathSameNode(t *testing.T) {
	s, host, _ := setupGraph(t)
	ctx := context.Background()

	path, err := ShortestPath(ctx, s, host.ID, host.ID)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if path.Length != 0 || len(path.Edges) != 0 || len(path.Nodes) != 1 {
		t.Fatalf("expected zero-length same-node path, got %+v", path)
	}
}

func TestShortestPathDisconnectedReturnsNil(t *testing.T) {
	s, host, _ := setupGraph(t)
	ctx := context.Background()

	other, err := s.UpsertNode(ctx, graphmodel.KindHost, map[string]any{"authorityKind": "IP", "authority": "10.2.2.2"}, "", nil)
	if err != nil {
		t.Fatalf("upsert other host: %v", err)
	}

	path, err := ShortestPath(ctx, s, host.ID, other.ID)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if path != nil {
		t.Fatalf("expected nil path for disconnected nodes, got %+v", path)
	}
}

func TestUnscannedServicesPreset(t *testing.T) {
	ctx := context.Background()
	s, err := graphstore.OpenMemory(ctx, nil)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	host, err := s.UpsertNode(ctx, graphmodel.KindHost, map[string]any{"authorityKind": "IP", "authority": "10.3.3.3"}, "", nil)
	if err != nil {
		t.Fatalf("upsert host: %v", err)
	}
	scanned, err := s.UpsertNode(ctx, graphmodel.KindService, map[string]any{
		"transport": "tcp", "port": float64(80), "appProto": "http", "protoConfidence": "high", "state": "open",
	}, host.ID, nil)
	if err != nil {
		t.Fatalf("upsert scanned service: %v", err)
	}
	unscanned, err := s.UpsertNode(ctx, graphmodel.KindService, map[string]any{
		"transport": "tcp", "port": float64(443), "appProto": "https", "protoConfidence": "high", "state": "open",
	}, host.ID, nil)
	if err != nil {
		t.Fatalf("upsert unscanned service: %v", err)
	}
	endpoint, err := s.UpsertNode(ctx, graphmodel.KindEndpoint, map[string]any{
		"baseUri": "http://10.3.3.3/", "method": "GET", "path": "/",
	}, scanned.ID, nil)
	if err != nil {
		t.Fatalf("upsert endpoint: %v", err)
	}
	if _, err := s.UpsertEdge(ctx, graphmodel.EdgeHostService, host.ID, scanned.ID, nil, nil); err != nil {
		t.Fatalf("upsert host->scanned edge: %v", err)
	}
	if _, err := s.UpsertEdge(ctx, graphmodel.EdgeHostService, host.ID, unscanned.ID, nil, nil); err != nil {
		t.Fatalf("upsert host->unscanned edge: %v", err)
	}
	if _, err := s.UpsertEdge(ctx, graphmodel.EdgeServiceEndpoint, scanned.ID, endpoint.ID, nil, nil); err != nil {
		t.Fatalf("upsert service->endpoint edge: %v", err)
	}

	rows, err := RunPreset(ctx, s, "unscanned_services", nil)
	if err != nil {
		t.Fatalf("RunPreset: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one unscanned service row, got %d: %v", len(rows), rows)
	}
	if rows[0]["serviceId"] != unscanned.ID {
		t.Fatalf("expected the unscanned service's row, got %v", rows[0])
	}
}

func TestReachableServicesRequiresHostID(t *testing.T) {
	s, _, _ := setupGraph(t)
	ctx := context.Background()

	_, err := RunPreset(ctx, s, "reachable_services", nil)
	if err == nil {
		t.Fatalf("expected BadRequest for missing hostId")
	}
}
