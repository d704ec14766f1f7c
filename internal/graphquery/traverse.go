// Package graphquery implements the bounded traversal, reachability,
// shortest-path, and preset analytical queries of spec §4.3 (C4). Traversal,
// reachability, and shortest path are host-language BFS over the graphstore
// repository per §9's authoritative choice between a recursive-CTE and
// host-language traversal; each preset is one SQL query (presets.go).
package graphquery

import (
	"context"

	"github.com/reconkg/engine/internal/graphmodel"
	"github.com/reconkg/engine/internal/graphstore"
)

// Hop is one node reached during a traversal, reported with its minimum
// edge-distance from the start node and the path that reached it.
type Hop struct {
	Node  *graphmodel.Node
	Depth int
	Path  []string // ordered node ids, start node inclusive
}

const defaultMaxDepth = 10

// Traverse runs a breadth-first search from startId following outgoing
// edges, optionally restricted to edgeKinds. A node is emitted at most once,
// at its minimum depth; cycles are avoided by rejecting any edge whose
// target already appears on the current path. The start node itself is
// never emitted (depth 0 is suppressed). Results are sorted by ascending
// depth, ties broken by discovery order (spec §4.3).
func Traverse(ctx context.Context, store *graphstore.Store, startID string, maxDepth int, edgeKinds []graphmodel.EdgeKind) ([]Hop, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	if _, err := store.FindByID(ctx, startID); err != nil {
		return nil, err
	}

	type frontierItem struct {
		nodeID string
		path   []string
	}

	visited := map[string]bool{startID: true}
	frontier := []frontierItem{{nodeID: startID, path: []string{startID}}}
	var hops []Hop

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []frontierItem
		for _, item := range frontier {
			neighbors, err := neighborsOf(ctx, store, item.nodeID, edgeKinds)
			if err != nil {
				return nil, err
			}
			for _, targetID := range neighbors {
				if pathContains(item.path, targetID) {
					continue // cycle avoidance: target already on this path
				}
				if visited[targetID] {
					continue // already emitted at a smaller or equal depth
				}
				visited[targetID] = true
				newPath := append(append([]string{}, item.path...), targetID)
				node, err := store.FindByID(ctx, targetID)
				if err != nil {
					return nil, err
				}
				hops = append(hops, Hop{Node: node, Depth: depth, Path: newPath})
				next = append(next, frontierItem{nodeID: targetID, path: newPath})
			}
		}
		frontier = next
	}

	return hops, nil
}

// ReachableFrom returns every node reachable from startId (excluding
// startId itself), optionally filtered to targetKind.
func ReachableFrom(ctx context.Context, store *graphstore.Store, startID string, targetKind graphmodel.NodeKind) ([]*graphmodel.Node, error) {
	hops, err := Traverse(ctx, store, startID, unboundedDepth(store), nil)
	if err != nil {
		return nil, err
	}
	var out []*graphmodel.Node
	for _, h := range hops {
		if targetKind != "" && h.Node.Kind != targetKind {
			continue
		}
		out = append(out, h.Node)
	}
	return out, nil
}

// unboundedDepth picks a depth large enough to cover any realistic graph
// without the caller needing to know its diameter; reachability has no
// depth bound in spec §4.3.
func unboundedDepth(store *graphstore.Store) int {
	return 1 << 20
}

func neighborsOf(ctx context.Context, store *graphstore.Store, nodeID string, edgeKinds []graphmodel.EdgeKind) ([]string, error) {
	if len(edgeKinds) == 0 {
		edges, err := store.EdgesFrom(ctx, nodeID, "")
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(edges))
		for i, e := range edges {
			ids[i] = e.TargetID
		}
		return ids, nil
	}

	var ids []string
	for _, k := range edgeKinds {
		edges, err := store.EdgesFrom(ctx, nodeID, k)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			ids = append(ids, e.TargetID)
		}
	}
	return ids, nil
}

func pathContains(path []string, id string) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}
